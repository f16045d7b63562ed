package sfs

import (
	"encoding/binary"
	"fmt"

	"github.com/sfsproject/sfs/inode"
	"github.com/sfsproject/sfs/layout"
)

// readIndirectBlock reads the indirection block at physical block phys and
// decodes it into a slice of IndirectFanout() raw block indices, the way
// the teacher library's FAT table is a flat array of raw cluster indices
// read in one shot (filesystem/fat32/table.go).
func (fs *Filesystem) readIndirectBlock(phys uint32) ([]uint32, error) {
	raw := make([]byte, fs.opts.BlockSize)
	if err := fs.dev.ReadBlocks(int(phys), 1, raw); err != nil {
		return nil, fmt.Errorf("sfs: read indirection block %d: %w", phys, err)
	}
	fanout := fs.opts.IndirectFanout()
	out := make([]uint32, fanout)
	for i := 0; i < fanout; i++ {
		out[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}
	return out, nil
}

func (fs *Filesystem) writeIndirectBlock(phys uint32, slots []uint32) error {
	raw := make([]byte, fs.opts.BlockSize)
	for i, v := range slots {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], v)
	}
	if err := fs.dev.WriteBlocks(int(phys), raw); err != nil {
		return fmt.Errorf("sfs: write indirection block %d: %w", phys, err)
	}
	return nil
}

// resolveBlock returns the physical block backing the seq-th logical block
// of n, without allocating anything. seq must already be within n's
// allocated range.
func (fs *Filesystem) resolveBlock(n *inode.Inode, seq int) (uint32, error) {
	if seq < layout.NumDirect {
		return n.Direct[seq], nil
	}
	slots, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return 0, err
	}
	slot := seq - layout.NumDirect
	if slot < 0 || slot >= len(slots) {
		return 0, ErrOutOfBounds
	}
	return slots[slot], nil
}

// allocateBlock assigns a fresh physical block to the seq-th logical block
// of n, following the pointer resolution and allocation rule: direct
// pointers are filled first, and on first crossing into the indirect range
// a single indirection block is allocated and its image written back
// immediately, exactly as the course project's pointer-resolution routine
// describes.
func (fs *Filesystem) allocateBlock(n *inode.Inode, seq int) (uint32, error) {
	if seq < 0 || seq >= fs.opts.MaxFileBlocks() {
		return 0, inode.ErrFileTooLarge
	}

	if seq < layout.NumDirect {
		phys, err := fs.bm.Allocate()
		if err != nil {
			fs.metrics.OutOfSpace.Inc()
			return 0, ErrOutOfSpace
		}
		fs.metrics.Allocations.Inc()
		n.Direct[seq] = uint32(phys)
		return uint32(phys), nil
	}

	slot := seq - layout.NumDirect
	var slots []uint32
	if n.Indirect == 0 {
		indPhys, err := fs.bm.Allocate()
		if err != nil {
			fs.metrics.OutOfSpace.Inc()
			return 0, ErrOutOfSpace
		}
		fs.metrics.Allocations.Inc()
		n.Indirect = uint32(indPhys)
		slots = make([]uint32, fs.opts.IndirectFanout())
	} else {
		var err error
		slots, err = fs.readIndirectBlock(n.Indirect)
		if err != nil {
			return 0, err
		}
	}

	dataPhys, err := fs.bm.Allocate()
	if err != nil {
		fs.metrics.OutOfSpace.Inc()
		return 0, ErrOutOfSpace
	}
	fs.metrics.Allocations.Inc()
	slots[slot] = uint32(dataPhys)
	if err := fs.writeIndirectBlock(n.Indirect, slots); err != nil {
		return 0, err
	}
	return uint32(dataPhys), nil
}

// ensureBlock returns the physical block for the seq-th logical block of n,
// allocating it if seq falls beyond n's currently allocated range (judged
// against oldBlockCount, the block count before the caller's write extends
// the file).
func (fs *Filesystem) ensureBlock(n *inode.Inode, seq, oldBlockCount int) (uint32, bool, error) {
	if seq < oldBlockCount {
		phys, err := fs.resolveBlock(n, seq)
		return phys, false, err
	}
	phys, err := fs.allocateBlock(n, seq)
	return phys, true, err
}

// freeBlocks releases the first BlockCount blocks n owns, including its
// indirection block if that count reaches past the direct pointers, zeroes
// the direct pointers it freed, and sets n's size and indirect pointer to
// 0. InUse is left unchanged, and a direct pointer past BlockCount (such as
// the extra block a block-aligned Write allocates) is neither freed nor
// cleared.
func (fs *Filesystem) freeBlocks(n *inode.Inode) {
	count := n.BlockCount(fs.opts.BlockSize)
	for seq := 0; seq < count && seq < layout.NumDirect; seq++ {
		fs.bm.Free(int(n.Direct[seq]))
		fs.metrics.Frees.Inc()
		n.Direct[seq] = 0
	}
	if count > layout.NumDirect && n.Indirect != 0 {
		slots, err := fs.readIndirectBlock(n.Indirect)
		if err == nil {
			for seq := layout.NumDirect; seq < count; seq++ {
				slot := seq - layout.NumDirect
				if slot >= 0 && slot < len(slots) && slots[slot] != 0 {
					fs.bm.Free(int(slots[slot]))
					fs.metrics.Frees.Inc()
				}
			}
		}
		fs.bm.Free(int(n.Indirect))
		fs.metrics.Frees.Inc()
	}
	n.Size = 0
	n.Indirect = 0
}

// readFileBlocks reads the whole of n's data (all n.Size bytes) into one
// buffer, used for reconstructing the root directory at mount time.
func (fs *Filesystem) readFileBlocks(n *inode.Inode) ([]byte, error) {
	out := make([]byte, n.Size)
	blockSize := fs.opts.BlockSize
	count := n.BlockCount(blockSize)
	block := make([]byte, blockSize)
	for seq := 0; seq < count; seq++ {
		phys, err := fs.resolveBlock(n, seq)
		if err != nil {
			return nil, err
		}
		if err := fs.dev.ReadBlocks(int(phys), 1, block); err != nil {
			return nil, fmt.Errorf("sfs: read block %d: %w", phys, err)
		}
		start := seq * blockSize
		end := start + blockSize
		if end > len(out) {
			end = len(out)
		}
		copy(out[start:end], block[:end-start])
	}
	return out, nil
}

// writeFileBlocksRaw overwrites n's entire data with data, allocating
// whatever additional blocks are needed and freeing none — used only for
// the root directory, whose size never shrinks below its formatted
// capacity.
func (fs *Filesystem) writeFileBlocksRaw(n *inode.Inode, data []byte) error {
	blockSize := fs.opts.BlockSize
	oldCount := n.BlockCount(blockSize)
	needCount := (len(data) + blockSize - 1) / blockSize
	for seq := 0; seq < needCount; seq++ {
		phys, _, err := fs.ensureBlock(n, seq, oldCount)
		if err != nil {
			return err
		}
		start := seq * blockSize
		end := start + blockSize
		buf := make([]byte, blockSize)
		if end > len(data) {
			copy(buf, data[start:])
		} else {
			copy(buf, data[start:end])
		}
		if err := fs.dev.WriteBlocks(int(phys), buf); err != nil {
			return fmt.Errorf("sfs: write block %d: %w", phys, err)
		}
	}
	if uint32(len(data)) > n.Size {
		n.Size = uint32(len(data))
	}
	return nil
}
