package bitmap_test

import (
	"errors"
	"testing"

	"github.com/sfsproject/sfs/bitmap"
)

func TestNewIsAllFree(t *testing.T) {
	bm := bitmap.New(10)
	for i := 0; i < 10; i++ {
		if !bm.IsFree(i) {
			t.Fatalf("bit %d should start free", i)
		}
	}
}

func TestNewMasksTrailingBits(t *testing.T) {
	bm := bitmap.New(3)
	for i := 3; i < 8; i++ {
		if bm.IsFree(i) {
			t.Fatalf("bit %d is past the addressable range and should not report free", i)
		}
	}
}

func TestAllocateReturnsLowestFreeIndex(t *testing.T) {
	bm := bitmap.New(8)
	bm.ForceUse(0)
	bm.ForceUse(1)

	i, err := bm.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if i != 2 {
		t.Fatalf("got index %d, want 2", i)
	}
	if bm.IsFree(2) {
		t.Fatalf("allocated bit should no longer be free")
	}
}

func TestAllocateOutOfSpace(t *testing.T) {
	bm := bitmap.New(4)
	for i := 0; i < 4; i++ {
		if _, err := bm.Allocate(); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, err := bm.Allocate(); !errors.Is(err, bitmap.ErrOutOfSpace) {
		t.Fatalf("got err %v, want ErrOutOfSpace", err)
	}
}

func TestFreeIsIdempotent(t *testing.T) {
	bm := bitmap.New(4)
	i, err := bm.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	bm.Free(i)
	bm.Free(i)
	if !bm.IsFree(i) {
		t.Fatalf("bit should be free after Free")
	}
	if bm.FreeCount() != 4 {
		t.Fatalf("got free count %d, want 4", bm.FreeCount())
	}
}

func TestToBytesFromBytesRoundTrip(t *testing.T) {
	bm := bitmap.New(20)
	bm.ForceUse(5)
	bm.ForceUse(17)

	raw := bm.ToBytes()
	restored := bitmap.FromBytes(raw)

	for i := 0; i < 20; i++ {
		if bm.IsFree(i) != restored.IsFree(i) {
			t.Fatalf("bit %d mismatch after round trip", i)
		}
	}
}

func TestUsedCountComplementsFreeCount(t *testing.T) {
	bm := bitmap.New(16)
	bm.ForceUse(0)
	bm.ForceUse(1)
	bm.ForceUse(2)
	if got, want := bm.UsedCount(), 3; got != want {
		t.Fatalf("got used count %d, want %d", got, want)
	}
	if got, want := bm.FreeCount(), 13; got != want {
		t.Fatalf("got free count %d, want %d", got, want)
	}
}
