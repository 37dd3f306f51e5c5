package ninep

import (
	"context"
	"iter"
	"os"
)

// Traversable is implemented by file systems that can hand out a walkable
// handle to a path, rooted at that path, for callers that perform several
// operations against the same node (copying, recursive removal, shell-style
// navigation) without re-supplying the full path each time.
type Traversable interface {
	FileSystem
	Traverse(ctx context.Context, path string) (TraversableFile, error)
}

// TraversableFile is a handle bound to a single path within a Traversable
// file system.
type TraversableFile interface {
	Stat(ctx context.Context) (os.FileInfo, error)
	WriteStat(ctx context.Context, s Stat) error
	Delete(ctx context.Context) error
	ListDir(ctx context.Context) iter.Seq2[os.FileInfo, error]
	Traverse(ctx context.Context, name string) (TraversableFile, error)
	MakeDir(ctx context.Context, name string, mode Mode) error
	Create(ctx context.Context, name string, flag OpenMode, mode Mode) (FileHandle, error)
	Open(ctx context.Context, flag OpenMode) (FileHandle, error)
}

// BasicTraverse implements Traverse in terms of the plain FileSystem
// interface, for implementations with no cheaper way to hold a path handle
// open. It stats path to confirm it exists before returning a handle.
func BasicTraverse(ctx context.Context, fsys FileSystem, path string) (TraversableFile, error) {
	if _, err := fsys.Stat(ctx, path); err != nil {
		return nil, err
	}
	return &basicTraversableFile{fs: fsys, path: path}, nil
}

type basicTraversableFile struct {
	fs   FileSystem
	path string
}

func (b *basicTraversableFile) join(name string) string {
	switch {
	case b.path == "":
		return name
	case name == "":
		return b.path
	default:
		return b.path + "/" + name
	}
}

func (b *basicTraversableFile) Stat(ctx context.Context) (os.FileInfo, error) {
	return b.fs.Stat(ctx, b.path)
}

func (b *basicTraversableFile) WriteStat(ctx context.Context, s Stat) error {
	return b.fs.WriteStat(ctx, b.path, s)
}

func (b *basicTraversableFile) Delete(ctx context.Context) error {
	return b.fs.Delete(ctx, b.path)
}

func (b *basicTraversableFile) ListDir(ctx context.Context) iter.Seq2[os.FileInfo, error] {
	return b.fs.ListDir(ctx, b.path)
}

func (b *basicTraversableFile) Traverse(ctx context.Context, name string) (TraversableFile, error) {
	return BasicTraverse(ctx, b.fs, b.join(name))
}

func (b *basicTraversableFile) MakeDir(ctx context.Context, name string, mode Mode) error {
	return b.fs.MakeDir(ctx, b.join(name), mode)
}

func (b *basicTraversableFile) Create(ctx context.Context, name string, flag OpenMode, mode Mode) (FileHandle, error) {
	return b.fs.CreateFile(ctx, b.join(name), flag, mode)
}

func (b *basicTraversableFile) Open(ctx context.Context, flag OpenMode) (FileHandle, error) {
	return b.fs.OpenFile(ctx, b.path, flag)
}
