package s3fs

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ninelib/ninep/ninep"
)

func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeHandle buffers writes in memory and uploads the whole object on
// Sync/Close: S3 has no partial-write API, so every 9P write to an open
// file accumulates here until the client is done with it.
type writeHandle struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string

	buf    []byte
	synced bool
}

func (h *writeHandle) ReadAt(p []byte, off int64) (n int, err error) {
	return 0, ninep.ErrUnsupported
}

func (h *writeHandle) WriteAt(p []byte, off int64) (n int, err error) {
	end := off + int64(len(p))
	if end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[off:], p)
	h.synced = false
	return len(p), nil
}

func (h *writeHandle) Sync() error {
	if h.synced {
		return nil
	}
	_, err := h.client.PutObject(h.ctx, &s3.PutObjectInput{
		Bucket: &h.bucket,
		Key:    &h.key,
		Body:   bytes.NewReader(h.buf),
	})
	if err != nil {
		return mapAwsErrToNinep(err)
	}
	h.synced = true
	return nil
}

func (h *writeHandle) Close() error {
	return h.Sync()
}
