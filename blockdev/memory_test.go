package blockdev_test

import (
	"bytes"
	"testing"

	"github.com/sfsproject/sfs/blockdev"
)

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	dev, err := blockdev.NewMemory(64, 4)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	defer dev.Close()

	payload := bytes.Repeat([]byte{0xAB}, 64)
	if err := dev.WriteBlocks(2, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, 64)
	if err := dev.ReadBlocks(2, 1, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v, want %v", got, payload)
	}
}

func TestMemoryStartsZeroFilled(t *testing.T) {
	dev, err := blockdev.NewMemory(16, 2)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	defer dev.Close()

	got := make([]byte, 32)
	if err := dev.ReadBlocks(0, 2, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	dev, err := blockdev.NewMemory(16, 2)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	defer dev.Close()

	if err := dev.ReadBlocks(2, 1, make([]byte, 16)); err != blockdev.ErrOutOfRange {
		t.Fatalf("got err %v, want ErrOutOfRange", err)
	}
}

func TestMemoryWritePayloadNotBlockMultiple(t *testing.T) {
	dev, err := blockdev.NewMemory(16, 2)
	if err != nil {
		t.Fatalf("new memory device: %v", err)
	}
	defer dev.Close()

	if err := dev.WriteBlocks(0, make([]byte, 10)); err == nil {
		t.Fatalf("expected error for non-block-multiple payload")
	}
}
