package ninep

import (
	"context"
	"errors"
	"io"
	"iter"
	"log"
	"os"
	"testing"
)

var discardLog = log.New(io.Discard, "", 0)

// noFileSystem satisfies FileSystem without serving any real files; the
// Tauth/Tattach paths under test never call into the filesystem.
type noFileSystem struct{}

func (noFileSystem) MakeDir(ctx context.Context, path string, mode Mode) error { return os.ErrPermission }
func (noFileSystem) CreateFile(ctx context.Context, path string, flag OpenMode, mode Mode) (FileHandle, error) {
	return nil, os.ErrPermission
}
func (noFileSystem) OpenFile(ctx context.Context, path string, flag OpenMode) (FileHandle, error) {
	return nil, os.ErrNotExist
}
func (noFileSystem) ListDir(ctx context.Context, path string) iter.Seq2[os.FileInfo, error] {
	return func(yield func(os.FileInfo, error) bool) {}
}
func (noFileSystem) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	return nil, os.ErrNotExist
}
func (noFileSystem) WriteStat(ctx context.Context, path string, s Stat) error { return os.ErrPermission }
func (noFileSystem) Delete(ctx context.Context, path string) error           { return os.ErrPermission }

// stubAuthFileHandle is the AuthFileHandle a stubAuthorizer hands back from
// Auth; authorized controls what Tattach sees when it later calls Authorized.
type stubAuthFileHandle struct {
	authorized bool
}

func (h *stubAuthFileHandle) ReadAt(b []byte, off int64) (int, error)  { return 0, io.EOF }
func (h *stubAuthFileHandle) WriteAt(b []byte, off int64) (int, error) { return len(b), nil }
func (h *stubAuthFileHandle) Sync() error                              { return nil }
func (h *stubAuthFileHandle) Close() error                             { return nil }
func (h *stubAuthFileHandle) Authorized(usr, mnt string) bool          { return h.authorized }

// stubAuthorizer hands back a fixed AuthFileHandle, a fixed error, or
// neither (meaning no authentication is required), depending on what the
// test configures.
type stubAuthorizer struct {
	handle *stubAuthFileHandle
	err    error
	noAuth bool
	calls  int
}

func (a *stubAuthorizer) Auth(ctx context.Context, addr, user, access string) (AuthFileHandle, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	if a.noAuth {
		return nil, nil
	}
	return a.handle, nil
}

func newAuthHandler(authorizer Authorizer) *AuthenticatingHandler {
	return NewAuthenticatingHandler(noFileSystem{}, authorizer, NewQidPool(), NewFidTracker(), discardLog, discardLog)
}

func TestAuthHandlerTauthGrantsAfidAndAttachSucceeds(t *testing.T) {
	authorizer := &stubAuthorizer{handle: &stubAuthFileHandle{authorized: true}}
	h := newAuthHandler(authorizer)

	txn := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	m := make([]byte, 256)
	Tauth(m).fill(1, 10, "glenda", "mount")
	h.Handle9P(context.Background(), Tauth(Tauth(m).Bytes()), &txn)

	reply := txn.Reply()
	rauth, ok := reply.(Rauth)
	if !ok {
		t.Fatalf("expected Rauth, got %T", reply)
	}
	if rauth.Aqid().Type() != QT_AUTH {
		t.Fatalf("expected afid qid type QT_AUTH")
	}
	if authorizer.calls != 1 {
		t.Fatalf("expected Authorizer.Auth to be called once, got %d", authorizer.calls)
	}

	txn2 := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	am := make([]byte, 256)
	Tattach(am).fill(2, 20, 10, "glenda", "mount")
	h.Handle9P(context.Background(), Tattach(Tattach(am).Bytes()), &txn2)

	reply2 := txn2.Reply()
	if _, ok := reply2.(Rattach); !ok {
		t.Fatalf("expected Rattach once the afid was authorized, got %T: %v", reply2, reply2)
	}
}

func TestAuthHandlerTattachRejectsUnauthorizedAfid(t *testing.T) {
	authorizer := &stubAuthorizer{handle: &stubAuthFileHandle{authorized: false}}
	h := newAuthHandler(authorizer)

	txn := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	m := make([]byte, 256)
	Tauth(m).fill(1, 10, "glenda", "mount")
	h.Handle9P(context.Background(), Tauth(Tauth(m).Bytes()), &txn)
	if _, ok := txn.Reply().(Rauth); !ok {
		t.Fatalf("expected Tauth to succeed before testing Tattach rejection")
	}

	txn2 := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	am := make([]byte, 256)
	Tattach(am).fill(2, 20, 10, "glenda", "mount")
	h.Handle9P(context.Background(), Tattach(Tattach(am).Bytes()), &txn2)

	if _, ok := txn2.Reply().(Rerror); !ok {
		t.Fatalf("expected Rerror for an unauthorized afid, got %T", txn2.Reply())
	}
}

func TestAuthHandlerTauthRejectedByAuthorizer(t *testing.T) {
	authorizer := &stubAuthorizer{err: errors.New("bad credentials")}
	h := newAuthHandler(authorizer)

	txn := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	m := make([]byte, 256)
	Tauth(m).fill(1, 10, "glenda", "mount")
	h.Handle9P(context.Background(), Tauth(Tauth(m).Bytes()), &txn)

	if _, ok := txn.Reply().(Rerror); !ok {
		t.Fatalf("expected Rerror when Authorizer.Auth fails, got %T", txn.Reply())
	}
}

func TestAuthHandlerTattachWithoutAfidRequiresNoAuth(t *testing.T) {
	authorizer := &stubAuthorizer{noAuth: true}
	h := newAuthHandler(authorizer)

	txn := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	am := make([]byte, 256)
	Tattach(am).fill(1, 1, NO_FID, "glenda", "mount")
	h.Handle9P(context.Background(), Tattach(Tattach(am).Bytes()), &txn)

	if _, ok := txn.Reply().(Rattach); !ok {
		t.Fatalf("expected Rattach when Authorizer reports no auth required, got %T", txn.Reply())
	}
}

func TestAuthHandlerTattachWithoutAfidRejectedWhenAuthRequired(t *testing.T) {
	authorizer := &stubAuthorizer{handle: &stubAuthFileHandle{authorized: true}}
	h := newAuthHandler(authorizer)

	txn := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	am := make([]byte, 256)
	Tattach(am).fill(1, 1, NO_FID, "glenda", "mount")
	h.Handle9P(context.Background(), Tattach(Tattach(am).Bytes()), &txn)

	if _, ok := txn.Reply().(Rerror); !ok {
		t.Fatalf("expected Rerror when attaching without Tauth but auth is required, got %T", txn.Reply())
	}
}
