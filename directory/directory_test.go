package directory_test

import (
	"errors"
	"testing"

	"github.com/sfsproject/sfs/directory"
)

func TestInsertFindRoundTrip(t *testing.T) {
	d := directory.New(4)
	idx, err := d.Insert(7, "hello.txt")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	gotIdx, gotInode, err := d.Find("hello.txt")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if gotIdx != idx || gotInode != 7 {
		t.Fatalf("got (%d, %d), want (%d, 7)", gotIdx, gotInode, idx)
	}
}

func TestFindNotFound(t *testing.T) {
	d := directory.New(4)
	if _, _, err := d.Find("missing"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("got err %v, want ErrNotFound", err)
	}
}

func TestInsertNameTooLong(t *testing.T) {
	d := directory.New(4)
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := d.Insert(1, string(long)); !errors.Is(err, directory.ErrInvalidName) {
		t.Fatalf("got err %v, want ErrInvalidName", err)
	}
}

func TestInsertDirectoryFull(t *testing.T) {
	d := directory.New(2)
	if _, err := d.Insert(1, "a"); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := d.Insert(2, "b"); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if _, err := d.Insert(3, "c"); !errors.Is(err, directory.ErrDirectoryFull) {
		t.Fatalf("got err %v, want ErrDirectoryFull", err)
	}
}

func TestRemoveThenFindFails(t *testing.T) {
	d := directory.New(4)
	idx, err := d.Insert(5, "gone.txt")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	d.Remove(idx)
	if _, _, err := d.Find("gone.txt"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("got err %v, want ErrNotFound after remove", err)
	}
}

func TestInsertReusesRemovedSlot(t *testing.T) {
	d := directory.New(2)
	first, _ := d.Insert(1, "a")
	d.Remove(first)
	second, err := d.Insert(2, "b")
	if err != nil {
		t.Fatalf("insert after remove: %v", err)
	}
	if second != first {
		t.Fatalf("got slot %d, want reused slot %d", second, first)
	}
}

func TestAdvanceWrapsAround(t *testing.T) {
	d := directory.New(4)
	d.Insert(1, "a")
	d.Insert(2, "b")

	got := []string{}
	for i := 0; i < 2; i++ {
		name, ok := d.Advance()
		if !ok {
			t.Fatalf("expected entry %d", i)
		}
		got = append(got, name)
	}
	if _, ok := d.Advance(); ok {
		t.Fatalf("expected exhaustion after 2 entries")
	}

	// A fresh call after exhaustion restarts from the beginning.
	name, ok := d.Advance()
	if !ok || name != got[0] {
		t.Fatalf("expected iteration to restart with %q, got %q ok=%v", got[0], name, ok)
	}
}

func TestBytesLoadBytesRoundTrip(t *testing.T) {
	d := directory.New(4)
	d.Insert(9, "keep.txt")

	raw := d.Bytes()
	restored := directory.New(4)
	restored.LoadBytes(raw)

	_, inodeIdx, err := restored.Find("keep.txt")
	if err != nil {
		t.Fatalf("find after round trip: %v", err)
	}
	if inodeIdx != 9 {
		t.Fatalf("got inode %d, want 9", inodeIdx)
	}
}
