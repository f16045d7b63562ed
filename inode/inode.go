// Package inode implements the fixed-size inode record and inode table of
// distilled spec §4.2: size, in-use flag, direct pointers, and a single
// indirect pointer, persisted as a contiguous byte image. The pointer
// resolution shape (direct array, then a single indirection block of raw
// indices) is grounded on the teacher library's FAT32 cluster chain
// handling in filesystem/fat32/file.go and filesystem/fat32/table.go,
// adapted from a linked FAT to an indexed inode.
package inode

import (
	"encoding/binary"
	"errors"

	"github.com/sfsproject/sfs/layout"
)

// ErrFileTooLarge is returned when a sequential block index would exceed
// MAX_FILE_BLOCKS.
var ErrFileTooLarge = errors.New("inode: file exceeds maximum size for single indirection")

// Inode is one in-memory inode record.
type Inode struct {
	Size     uint32
	InUse    bool
	Direct   [layout.NumDirect]uint32
	Indirect uint32
}

// Encode writes the inode's fixed-width little-endian on-disk record into
// b, which must be at least layout.InodeRecordSize bytes. This is an
// explicit record rather than a raw struct memory dump, per distilled spec
// §9's serialization note — the same choice the teacher makes in
// table.bytes32() for FAT entries.
func (n *Inode) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], n.Size)
	if n.InUse {
		b[4] = 1
	} else {
		b[4] = 0
	}
	off := 5
	for _, d := range n.Direct {
		binary.LittleEndian.PutUint32(b[off:off+4], d)
		off += 4
	}
	binary.LittleEndian.PutUint32(b[off:off+4], n.Indirect)
}

// Decode populates the inode from its on-disk record.
func (n *Inode) Decode(b []byte) {
	n.Size = binary.LittleEndian.Uint32(b[0:4])
	n.InUse = b[4] != 0
	off := 5
	for i := range n.Direct {
		n.Direct[i] = binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
	}
	n.Indirect = binary.LittleEndian.Uint32(b[off : off+4])
}

// Reset clears the inode back to an unused, empty state (size=0,
// in_use=false, indirect=0). Direct pointers are left as-is; callers that
// need them zeroed (e.g. after freeing every block) must zero them
// explicitly — distilled spec §4.2 only specifies in_use/size/indirect for
// `reset`.
func (n *Inode) Reset() {
	n.Size = 0
	n.InUse = false
	n.Indirect = 0
}

// Initialize sets the inode to a freshly allocated, empty, in-use state.
func (n *Inode) Initialize() {
	n.Size = 0
	n.InUse = true
	n.Indirect = 0
	for i := range n.Direct {
		n.Direct[i] = 0
	}
}

// BlockCount returns the number of sequential blocks this inode currently
// owns, ceil(size / blockSize).
func (n *Inode) BlockCount(blockSize int) int {
	if n.Size == 0 {
		return 0
	}
	return (int(n.Size) + blockSize - 1) / blockSize
}

// Table is the fixed-size array of inode records, held in RAM and mirrored
// to disk as a single contiguous byte image.
type Table struct {
	opts    layout.Options
	entries []Inode
}

// NewTable allocates an empty table (all entries unused).
func NewTable(opts layout.Options) *Table {
	return &Table{opts: opts, entries: make([]Inode, opts.NumInodes)}
}

// Get returns a pointer to inode i's live record. Callers mutate it
// directly; the table does not copy on read.
func (t *Table) Get(i int) *Inode {
	return &t.entries[i]
}

// NextFree returns the index of the lowest-indexed inode with InUse=false,
// or -1 if the table is full.
func (t *Table) NextFree() int {
	for i, n := range t.entries {
		if !n.InUse {
			return i
		}
	}
	return -1
}

// Bytes serializes the whole table as a single byte image, one
// layout.InodeRecordSize record per inode, for a single write_blocks call
// against the inode table's reserved block range.
func (t *Table) Bytes() []byte {
	b := make([]byte, len(t.entries)*layout.InodeRecordSize)
	for i := range t.entries {
		t.entries[i].Encode(b[i*layout.InodeRecordSize : (i+1)*layout.InodeRecordSize])
	}
	return b
}

// LoadBytes restores the table from a byte image previously produced by
// Bytes.
func (t *Table) LoadBytes(b []byte) {
	for i := range t.entries {
		start := i * layout.InodeRecordSize
		t.entries[i].Decode(b[start : start+layout.InodeRecordSize])
	}
}
