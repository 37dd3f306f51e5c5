// Package billyfs adapts a ninep.FileSystem mount into a go-billy Filesystem,
// so tools that expect a billy.Filesystem (git worktrees, go-git's storage
// layer) can operate directly against a mounted 9P namespace.
package billyfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	bill "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/ninelib/ninep/fs/proxy"
	"github.com/ninelib/ninep/ninep"
)

var ErrUnsupported = errors.New("billyfs: unsupported")

// New returns a billy file system backed by the given 9P mount. Symlinks and
// TempFile are not supported since the underlying ninep.FileSystem interface
// has no equivalent operation.
func New(mnt proxy.FileSystemMount) bill.Filesystem {
	return chroot.New(&fileSystem{mnt: mnt}, string(filepath.Separator))
}

type fileSystem struct {
	mnt proxy.FileSystemMount
}

func (f *fileSystem) Create(filename string) (bill.File, error) {
	return f.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (f *fileSystem) Open(filename string) (bill.File, error) {
	return f.OpenFile(filename, os.O_RDONLY, 0)
}

func (f *fileSystem) OpenFile(filename string, flag int, perm fs.FileMode) (bill.File, error) {
	ctx := context.Background()
	path := filepath.Join(f.mnt.Prefix, filename)

	if flag&os.O_CREATE != 0 {
		h, err := f.mnt.FS.CreateFile(ctx, path, ninep.OpenModeFromOS(flag), ninep.ModeFromOS(perm))
		if err != nil {
			return nil, err
		}
		return &file{mnt: f.mnt, h: h, filename: filename}, nil
	}

	h, err := f.mnt.FS.OpenFile(ctx, path, ninep.OpenModeFromOS(flag))
	if err != nil {
		return nil, err
	}

	var offset int64
	if flag&os.O_APPEND != 0 {
		st, err := f.mnt.FS.Stat(ctx, path)
		if err != nil {
			return nil, err
		}
		offset = st.Size()
	}
	return &file{mnt: f.mnt, h: h, filename: filename, offset: offset}, nil
}

func (f *fileSystem) Stat(filename string) (os.FileInfo, error) {
	return f.mnt.FS.Stat(context.Background(), filepath.Join(f.mnt.Prefix, filename))
}

func (f *fileSystem) Rename(oldpath, newpath string) error {
	st := ninep.SyncStatWithName(filepath.Join(f.mnt.Prefix, newpath))
	return f.mnt.FS.WriteStat(context.Background(), filepath.Join(f.mnt.Prefix, oldpath), st)
}

func (f *fileSystem) Remove(filename string) error {
	return f.mnt.FS.Delete(context.Background(), filepath.Join(f.mnt.Prefix, filename))
}

func (f *fileSystem) Join(elem ...string) string { return filepath.Clean(filepath.Join(elem...)) }

func (f *fileSystem) ReadDir(path string) ([]os.FileInfo, error) {
	var infos []os.FileInfo
	for info, err := range f.mnt.FS.ListDir(context.Background(), filepath.Join(f.mnt.Prefix, path)) {
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (f *fileSystem) MkdirAll(filename string, perm fs.FileMode) error {
	return f.mnt.FS.MakeDir(context.Background(), filepath.Join(f.mnt.Prefix, filename), ninep.ModeFromOS(perm))
}

func (f *fileSystem) Lstat(filename string) (os.FileInfo, error) { return f.Stat(filename) }
func (f *fileSystem) Symlink(target, link string) error          { return ErrUnsupported }
func (f *fileSystem) Readlink(link string) (string, error)       { return "", ErrUnsupported }

func (f *fileSystem) TempFile(dir, prefix string) (bill.File, error) { return nil, ErrUnsupported }

type file struct {
	mnt      proxy.FileSystemMount
	h        ninep.FileHandle
	filename string
	offset   int64
}

func (f *file) Name() string { return f.filename }

func (f *file) Write(p []byte) (int, error) {
	n, err := f.h.WriteAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *file) Read(p []byte) (int, error) {
	n, err := f.h.ReadAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *file) ReadAt(p []byte, offset int64) (int, error) {
	return f.h.ReadAt(p, offset)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekStart:
		f.offset = offset
	case io.SeekEnd:
		path := filepath.Join(f.mnt.Prefix, f.filename)
		info, err := f.mnt.FS.Stat(context.Background(), path)
		if err != nil {
			return 0, err
		}
		f.offset = info.Size() - offset
	}
	return f.offset, nil
}

func (f *file) Close() error { return f.h.Close() }

func (f *file) Truncate(size int64) error {
	if size < 0 {
		size = 0
	}
	st := ninep.SyncStat()
	st.SetLength(uint64(size))
	return f.mnt.FS.WriteStat(context.Background(), filepath.Join(f.mnt.Prefix, f.filename), st)
}

func (f *file) Lock() error   { return ErrUnsupported }
func (f *file) Unlock() error { return ErrUnsupported }
