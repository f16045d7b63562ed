// Package layout centralizes the fixed-size constants and derived block
// arithmetic that describe an SFS disk image, the way the FAT32 package in
// the teacher library centralizes BPB fields instead of scattering magic
// numbers through the read/write path.
package layout

// Magic is the superblock sentinel, preserved from the original course
// project's on-disk format.
const Magic uint64 = 0xACBD0005

// Defaults for a freshly formatted image. All are configurable per
// Filesystem via Options, but these are the values used when none are
// supplied (and the values the CLI's config package defaults to).
const (
	DefaultBlockSize = 1024
	DefaultNumBlocks = 8192
	DefaultNumInodes = 512
	NumDirect        = 12 // direct pointers per inode; fixed, not configurable
	MaxFilename      = 60 // bytes, including the null terminator

	// InodeRecordSize is the on-disk size of one serialized inode record:
	// size(4) + inUse(1) + direct[12](48) + indirect(4), packed with no
	// alignment padding (see inode.Encode).
	InodeRecordSize = 4 + 1 + NumDirect*4 + 4

	// DirEntryRecordSize is inode_index(4) + fixed-width filename.
	DirEntryRecordSize = 4 + MaxFilename
)

// Options describes the tunable layout of a disk image. The zero value is
// not valid; use NewOptions to fill in defaults.
type Options struct {
	BlockSize int
	NumBlocks int
	NumInodes int
}

// NewOptions returns Options with the package defaults.
func NewOptions() Options {
	return Options{
		BlockSize: DefaultBlockSize,
		NumBlocks: DefaultNumBlocks,
		NumInodes: DefaultNumInodes,
	}
}

// IndirectFanout is the number of block indices that fit in one indirection
// block: BLOCK_SIZE / sizeof(uint32).
func (o Options) IndirectFanout() int {
	return o.BlockSize / 4
}

// MaxFileBlocks is NUM_DIRECT + INDIRECT_FANOUT, the most blocks a single
// file can own under single indirection.
func (o Options) MaxFileBlocks() int {
	return NumDirect + o.IndirectFanout()
}

// MaxFileSize is the largest file size representable under this layout.
func (o Options) MaxFileSize() int64 {
	return int64(o.MaxFileBlocks()) * int64(o.BlockSize)
}

// MaxOpenFiles is NUM_INODES - 1 (inode 0 is reserved for the root
// directory and is never attached to a descriptor).
func (o Options) MaxOpenFiles() int {
	return o.NumInodes - 1
}

// MaxDirectoryEntries is NUM_INODES - 1, for the same reason as
// MaxOpenFiles: every non-root inode can own at most one directory entry.
func (o Options) MaxDirectoryEntries() int {
	return o.NumInodes - 1
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// BitmapBlocks is the number of blocks needed to store one bit per block of
// the image: ceil(NUM_BLOCKS / (8 * BLOCK_SIZE)).
func (o Options) BitmapBlocks() int {
	return ceilDiv(o.NumBlocks, 8*o.BlockSize)
}

// InodeTableBlocks is the number of blocks needed to store the inode table
// as an array of fixed-width InodeRecordSize records. This is the single
// layout formula distilled spec §9 asks implementers to pick and use
// consistently for both format and restore; NUM_BIT_MAP_BLOCKS-relative
// restore offsets are derived from this same value, never recomputed
// differently.
func (o Options) InodeTableBlocks() int {
	return ceilDiv(o.NumInodes*InodeRecordSize, o.BlockSize)
}

// SuperblockBlock is the fixed block index of the superblock.
const SuperblockBlock = 0

// BitmapStartBlock is the first block of the free bitmap region.
func (o Options) BitmapStartBlock() int {
	return SuperblockBlock + 1
}

// InodeTableStartBlock is the first block of the inode table region.
func (o Options) InodeTableStartBlock() int {
	return o.BitmapStartBlock() + o.BitmapBlocks()
}

// DataStartBlock is the first block available for file data, including the
// root directory's own blocks.
func (o Options) DataStartBlock() int {
	return o.InodeTableStartBlock() + o.InodeTableBlocks()
}

// RootDirectorySizeBytes is the byte size of the root directory's file data:
// one DirEntryRecordSize record per possible directory entry.
func (o Options) RootDirectorySizeBytes() int64 {
	return int64(o.MaxDirectoryEntries()) * int64(DirEntryRecordSize)
}

// RootDirectorySizeBlocks is the number of blocks inode 0 occupies at
// format time.
func (o Options) RootDirectorySizeBlocks() int {
	return ceilDiv(int(o.RootDirectorySizeBytes()), o.BlockSize)
}
