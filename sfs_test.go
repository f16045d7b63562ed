package sfs_test

import (
	"errors"
	"testing"

	"github.com/sfsproject/sfs"
	"github.com/sfsproject/sfs/blockdev"
	"github.com/sfsproject/sfs/layout"
)

func newTestFilesystem(t *testing.T) *sfs.Filesystem {
	t.Helper()
	opts := layout.Options{BlockSize: 256, NumBlocks: 256, NumInodes: 16}
	dev, err := blockdev.NewMemory(opts.BlockSize, opts.NumBlocks)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	fs, err := sfs.FormatDevice(dev, opts)
	if err != nil {
		t.Fatalf("format device: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestOpenCreatesAndFinds(t *testing.T) {
	fs := newTestFilesystem(t)

	fd, err := fs.Open("hello.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !fs.Exists("hello.txt") {
		t.Fatalf("expected hello.txt to exist after open")
	}
	if err := fs.CloseFile(fd); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWriteThenReadBack(t *testing.T) {
	fs := newTestFilesystem(t)

	fd, err := fs.Open("a.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	payload := []byte("hello, sfs")
	n, err := fs.Write(fd, payload)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}

	if err := fs.Seek(fd, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	got, err := fs.Read(fd, len(payload))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReadWritePointerAdvancesOneShortOfEnd(t *testing.T) {
	// Preserved behavior: after transferring n bytes starting at pos, the
	// read/write pointer lands at pos+n-1, not pos+n.
	fs := newTestFilesystem(t)

	fd, err := fs.Open("b.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := fs.Write(fd, []byte("abcde")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Seek(fd, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := fs.Read(fd, 3); err != nil {
		t.Fatalf("read: %v", err)
	}

	// The pointer should now be at 2 (0+3-1), not 3: reading 1 byte without
	// re-seeking must return the 3rd character, "c", not the 4th, "d".
	got, err := fs.Read(fd, 1)
	if err != nil {
		t.Fatalf("read without seek: %v", err)
	}
	if string(got) != "c" {
		t.Fatalf("read without seek: got %q, want %q", got, "c")
	}

	// Seeking to 2 must also succeed since 2 < size(5), and read back "c".
	if err := fs.Seek(fd, 2); err != nil {
		t.Fatalf("seek to quirky pointer position: %v", err)
	}
	got, err = fs.Read(fd, 1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "c" {
		t.Fatalf("got %q, want %q", got, "c")
	}
}

func TestWriteBlockAlignedKeepsExactSize(t *testing.T) {
	// Preserved behavior: last_block is computed from rw_pointer+length, so
	// a write that lands exactly on a block boundary allocates one block
	// more than strictly necessary. The extra block is not visible through
	// the exported API; this checks that the reported size is still exactly
	// the number of bytes written.
	opts := layout.Options{BlockSize: 64, NumBlocks: 64, NumInodes: 8}
	dev, err := blockdev.NewMemory(opts.BlockSize, opts.NumBlocks)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	fs, err := sfs.FormatDevice(dev, opts)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	defer fs.Close()

	fd, err := fs.Open("aligned.bin")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	payload := make([]byte, opts.BlockSize) // exactly one block, pos 0
	if _, err := fs.Write(fd, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	size, err := fs.FileSize("aligned.bin")
	if err != nil {
		t.Fatalf("filesize: %v", err)
	}
	if size != int64(opts.BlockSize) {
		t.Fatalf("got size %d, want %d", size, opts.BlockSize)
	}
}

func TestSeekRejectsEqualToSize(t *testing.T) {
	fs := newTestFilesystem(t)

	fd, err := fs.Open("c.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := fs.Write(fd, []byte("xyz")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Seek(fd, 3); !errors.Is(err, sfs.ErrOutOfBounds) {
		t.Fatalf("got err %v, want ErrOutOfBounds for loc == size", err)
	}
	if err := fs.Seek(fd, 2); err != nil {
		t.Fatalf("seek to size-1 should succeed: %v", err)
	}
}

func TestRemoveRejectsOpenFile(t *testing.T) {
	fs := newTestFilesystem(t)

	fd, err := fs.Open("busy.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fs.Remove("busy.txt"); !errors.Is(err, sfs.ErrFileBusy) {
		t.Fatalf("got err %v, want ErrFileBusy", err)
	}
	if err := fs.CloseFile(fd); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := fs.Remove("busy.txt"); err != nil {
		t.Fatalf("remove after close: %v", err)
	}
	if fs.Exists("busy.txt") {
		t.Fatalf("busy.txt should no longer exist after remove")
	}
}

func TestNextFilenameEnumeratesAndWraps(t *testing.T) {
	fs := newTestFilesystem(t)
	names := []string{"one", "two", "three"}
	for _, n := range names {
		fd, err := fs.Open(n)
		if err != nil {
			t.Fatalf("open %s: %v", n, err)
		}
		if err := fs.CloseFile(fd); err != nil {
			t.Fatalf("close %s: %v", n, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < len(names); i++ {
		name, ok := fs.NextFilename()
		if !ok {
			t.Fatalf("expected a filename at iteration %d", i)
		}
		seen[name] = true
	}
	if _, ok := fs.NextFilename(); ok {
		t.Fatalf("expected enumeration to exhaust after %d entries", len(names))
	}
	if name, ok := fs.NextFilename(); !ok || name != names[0] {
		t.Fatalf("expected enumeration to restart with %q, got %q ok=%v", names[0], name, ok)
	}
	for _, n := range names {
		if !seen[n] {
			t.Fatalf("never saw %q during enumeration", n)
		}
	}
}

func TestOpenOutOfInodes(t *testing.T) {
	opts := layout.Options{BlockSize: 64, NumBlocks: 64, NumInodes: 2}
	dev, err := blockdev.NewMemory(opts.BlockSize, opts.NumBlocks)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	fs, err := sfs.FormatDevice(dev, opts)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	defer fs.Close()

	// NumInodes=2 means inode 0 is root and inode 1 is the only file slot.
	if _, err := fs.Open("only.txt"); err != nil {
		t.Fatalf("open first file: %v", err)
	}
	if _, err := fs.Open("second.txt"); !errors.Is(err, sfs.ErrOutOfInodes) {
		t.Fatalf("got err %v, want ErrOutOfInodes", err)
	}
}

func TestFormatThenMountRestoresState(t *testing.T) {
	opts := layout.Options{BlockSize: 128, NumBlocks: 128, NumInodes: 8}
	dev, err := blockdev.NewMemory(opts.BlockSize, opts.NumBlocks)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	fs, err := sfs.FormatDevice(dev, opts)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	fd, err := fs.Open("persist.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := fs.Write(fd, []byte("durable")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.CloseFile(fd); err != nil {
		t.Fatalf("close: %v", err)
	}

	remounted, err := sfs.MountDevice(dev, opts)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer remounted.Close()

	size, err := remounted.FileSize("persist.txt")
	if err != nil {
		t.Fatalf("filesize after remount: %v", err)
	}
	if size != int64(len("durable")) {
		t.Fatalf("got size %d, want %d", size, len("durable"))
	}
}
