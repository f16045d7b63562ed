package sfs

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/sfsproject/sfs/layout"
)

// superblockRecordSize is the on-disk size of the superblock: five
// uint64 fields plus a 16-byte UUID.
const superblockRecordSize = 5*8 + 16

// Superblock mirrors distilled spec §3's fixed superblock fields, plus the
// FormatID described in SPEC_FULL.md §3 — an observability-only addition
// that plays no role in block addressing.
type Superblock struct {
	Magic             uint64
	BlockSize         uint64
	FilesystemSize    uint64
	InodeTableBlocks  uint64
	RootDirInodeIndex uint64
	FormatID          uuid.UUID
}

func newSuperblock(opts layout.Options, formatID uuid.UUID) Superblock {
	return Superblock{
		Magic:             layout.Magic,
		BlockSize:         uint64(opts.BlockSize),
		FilesystemSize:    uint64(opts.BlockSize) * uint64(opts.NumBlocks),
		InodeTableBlocks:  uint64(opts.InodeTableBlocks()),
		RootDirInodeIndex: 0,
		FormatID:          formatID,
	}
}

func (sb *Superblock) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], sb.Magic)
	binary.LittleEndian.PutUint64(b[8:16], sb.BlockSize)
	binary.LittleEndian.PutUint64(b[16:24], sb.FilesystemSize)
	binary.LittleEndian.PutUint64(b[24:32], sb.InodeTableBlocks)
	binary.LittleEndian.PutUint64(b[32:40], sb.RootDirInodeIndex)
	copy(b[40:56], sb.FormatID[:])
}

func (sb *Superblock) decode(b []byte) {
	sb.Magic = binary.LittleEndian.Uint64(b[0:8])
	sb.BlockSize = binary.LittleEndian.Uint64(b[8:16])
	sb.FilesystemSize = binary.LittleEndian.Uint64(b[16:24])
	sb.InodeTableBlocks = binary.LittleEndian.Uint64(b[24:32])
	sb.RootDirInodeIndex = binary.LittleEndian.Uint64(b[32:40])
	copy(sb.FormatID[:], b[40:56])
}
