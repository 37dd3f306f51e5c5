// Implements a 9p file system backed by Amazon S3 (or any S3-compatible
// object store).
//
// The namespace is rooted at the bucket list: "/" lists buckets, each
// bucket directory lists the objects under it. Object storage has no real
// directory concept, so a directory there is any common prefix ending in
// "/" as reported by a delimited ListObjectsV2 call. With flatten enabled,
// the delimiter is dropped and every key in a bucket is shown directly
// under that bucket instead of being grouped by its "/" separated prefix.
package s3fs

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ninelib/ninep/ninep"
)

type Fs struct {
	client  *s3.Client
	flatten bool
}

var _ ninep.FileSystem = (*Fs)(nil)

// New builds an S3-backed file system. An empty endpoint uses AWS S3's
// default endpoint; any other value is treated as a custom (e.g. MinIO)
// S3-compatible endpoint.
func New(endpoint string, flatten bool) *Fs {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		panic(err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		}
	})
	return &Fs{client: client, flatten: flatten}
}

func splitBucketKey(path string) (bucket, key string) {
	parts := ninep.PathSplit(path)
	if len(parts) == 0 || parts[0] == "" {
		return "", ""
	}
	bucket = parts[0]
	if len(parts) > 1 {
		key = strings.Join(parts[1:], "/")
	}
	return bucket, key
}

func (f *Fs) MakeDir(ctx context.Context, path string, mode ninep.Mode) error {
	bucket, key := splitBucketKey(path)
	if bucket == "" {
		return ErrUseMkDirToCreateBucket
	}
	if key == "" {
		_, err := f.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &bucket})
		return mapAwsErrToNinep(err)
	}
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	_, err := f.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &bucket, Key: &key})
	return mapAwsErrToNinep(err)
}

func (f *Fs) CreateFile(ctx context.Context, path string, flag ninep.OpenMode, mode ninep.Mode) (ninep.FileHandle, error) {
	bucket, key := splitBucketKey(path)
	if bucket == "" || key == "" {
		return nil, ErrUseMkDirToCreateBucket
	}
	return &writeHandle{ctx: ctx, client: f.client, bucket: bucket, key: key}, nil
}

func (f *Fs) OpenFile(ctx context.Context, path string, flag ninep.OpenMode) (ninep.FileHandle, error) {
	bucket, key := splitBucketKey(path)
	if bucket == "" || key == "" {
		return nil, ErrMustOpenForReading
	}
	if !flag.IsReadable() {
		return &writeHandle{ctx: ctx, client: f.client, bucket: bucket, key: key}, nil
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, mapAwsErrToNinep(err)
	}
	defer out.Body.Close()
	data, err := readAll(out.Body)
	if err != nil {
		return nil, err
	}
	return &ninep.ReadOnlyMemoryFileHandle{Contents: data}, nil
}

func (f *Fs) ListDir(ctx context.Context, path string) iter.Seq2[os.FileInfo, error] {
	bucket, key := splitBucketKey(path)
	if bucket == "" {
		return f.listBuckets(ctx)
	}
	return f.listObjects(ctx, bucket, key)
}

func (f *Fs) listBuckets(ctx context.Context) iter.Seq2[os.FileInfo, error] {
	out, err := f.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return ninep.FileInfoErrorIterator(mapAwsErrToNinep(err))
	}
	return func(yield func(os.FileInfo, error) bool) {
		for _, b := range out.Buckets {
			if b.Name == nil {
				continue
			}
			created := time.Time{}
			if b.CreationDate != nil {
				created = *b.CreationDate
			}
			fi := &ninep.SimpleFileInfo{
				FIName:    *b.Name,
				FIMode:    fs.ModeDir | 0777,
				FIModTime: created,
			}
			if !yield(fi, nil) {
				return
			}
		}
	}
}

func (f *Fs) listObjects(ctx context.Context, bucket, prefix string) iter.Seq2[os.FileInfo, error] {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	input := &s3.ListObjectsV2Input{
		Bucket: &bucket,
		Prefix: &prefix,
	}
	if !f.flatten {
		delim := "/"
		input.Delimiter = &delim
	}
	return func(yield func(os.FileInfo, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(f.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, mapAwsErrToNinep(err))
				return
			}
			for _, cp := range page.CommonPrefixes {
				if cp.Prefix == nil {
					continue
				}
				name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
				if name == "" {
					continue
				}
				fi := &ninep.SimpleFileInfo{FIName: name, FIMode: fs.ModeDir | 0777}
				if !yield(fi, nil) {
					return
				}
			}
			for _, obj := range page.Contents {
				if obj.Key == nil || *obj.Key == prefix {
					continue
				}
				name := strings.TrimPrefix(*obj.Key, prefix)
				if name == "" || (!f.flatten && strings.Contains(name, "/")) {
					continue
				}
				fi := objectFileInfo(name, obj)
				if !yield(fi, nil) {
					return
				}
			}
		}
	}
}

func objectFileInfo(name string, obj types.Object) os.FileInfo {
	var (
		modTime time.Time
		size    int64
	)
	if obj.LastModified != nil {
		modTime = *obj.LastModified
	}
	if obj.Size != nil {
		size = *obj.Size
	}
	return &ninep.SimpleFileInfo{
		FIName:    name,
		FIMode:    0666,
		FIModTime: modTime,
		FISize:    size,
	}
}

func (f *Fs) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	bucket, key := splitBucketKey(path)
	if bucket == "" {
		return &ninep.SimpleFileInfo{FIName: "/", FIMode: fs.ModeDir | 0777}, nil
	}
	if key == "" {
		_, err := f.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket})
		if err != nil {
			return nil, mapAwsErrToNinep(err)
		}
		return &ninep.SimpleFileInfo{FIName: bucket, FIMode: fs.ModeDir | 0777}, nil
	}
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, mapAwsErrToNinep(err)
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	var modTime time.Time
	if out.LastModified != nil {
		modTime = *out.LastModified
	}
	name := key
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return &ninep.SimpleFileInfo{FIName: name, FIMode: 0666, FIModTime: modTime, FISize: size}, nil
}

func (f *Fs) WriteStat(ctx context.Context, path string, s ninep.Stat) error {
	// S3 objects carry no mutable metadata this layer exposes; renames and
	// mode/time changes aren't supported by the object store.
	if !s.NameNoTouch() || !s.ModeNoTouch() || !s.MtimeNoTouch() || !s.AtimeNoTouch() {
		return ninep.ErrUnsupported
	}
	return nil
}

func (f *Fs) Delete(ctx context.Context, path string) error {
	bucket, key := splitBucketKey(path)
	if bucket == "" {
		return ninep.ErrInvalidAccess
	}
	if key == "" {
		_, err := f.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: &bucket})
		return mapAwsErrToNinep(err)
	}
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	return mapAwsErrToNinep(err)
}
