package ninep

import (
	"os"
	"testing"
	"time"
)

func TestStat(t *testing.T) {
	f, err := os.CreateTemp("", "")
	threshold := time.Now().Add(-time.Second)
	if err != nil {
		t.Error(err.Error())
	}
	defer func() { _ = os.Remove(f.Name()) }()
	defer func() { _ = f.Close() }()

	info, err := os.Stat(f.Name())
	if err != nil {
		t.Error(err.Error())
	}

	at, ok := Atime(info)
	if !ok {
		t.Errorf("Failed to read access time")
	}

	if at.Before(threshold) {
		t.Errorf("expected access time to be recent: got %v, but expected to be after %v", at, threshold)
	}
}

func TestFileIdAndUsers(t *testing.T) {
	f, err := os.CreateTemp("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	defer func() { _ = f.Close() }()

	info, err := os.Stat(f.Name())
	if err != nil {
		t.Fatal(err)
	}

	inode, ok := FileId(info)
	if !ok {
		t.Fatalf("expected FileId to resolve an inode from a real file's Sys()")
	}
	if inode == 0 {
		t.Fatalf("expected a non-zero inode for a freshly created file")
	}

	uid, gid, _, err := FileUsers(info)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if uid == "" || gid == "" {
		t.Fatalf("expected non-empty uid/gid, got uid=%q gid=%q", uid, gid)
	}
}

func TestGetBlockSize(t *testing.T) {
	size, err := GetBlockSize()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if size <= 0 {
		t.Fatalf("expected a positive block size, got %d", size)
	}
}
