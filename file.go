package sfs

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sfsproject/sfs/directory"
	"github.com/sfsproject/sfs/inode"
)

// Open implements sfs_fopen of distilled spec §4.4: if name already has a
// directory entry its inode is reused, otherwise a fresh inode is
// allocated and inserted into the root directory. Either way the returned
// descriptor's read/write pointer starts at the file's current size, so a
// freshly created file starts at 0 and a reopened file starts at EOF.
func (fs *Filesystem) Open(name string) (int, error) {
	var inodeIndex int
	var n *inode.Inode

	_, existingInode, err := fs.dir.Find(name)
	if err == nil {
		inodeIndex = int(existingInode)
		n = fs.inodes.Get(inodeIndex)
	} else {
		idx := fs.inodes.NextFree()
		if idx <= 0 {
			fs.metrics.OutOfInodes.Inc()
			return -1, ErrOutOfInodes
		}
		n = fs.inodes.Get(idx)
		n.Initialize()
		if _, err := fs.dir.Insert(uint32(idx), name); err != nil {
			n.Reset()
			if errors.Is(err, directory.ErrInvalidName) {
				return -1, ErrInvalidName
			}
			return -1, ErrDirectoryFull
		}
		inodeIndex = idx
		if err := fs.flushInodes(); err != nil {
			return -1, err
		}
		if err := fs.flushDirectory(); err != nil {
			return -1, err
		}
	}

	fd := -1
	for i := range fs.descriptors {
		if fs.descriptors[i].inodeIndex == 0 {
			fd = i
			break
		}
	}
	if fd < 0 {
		return -1, ErrOutOfDescriptors
	}
	fs.descriptors[fd] = descriptor{
		inodeIndex: uint32(inodeIndex),
		rwPointer:  int64(n.Size),
	}
	fs.metrics.OpenFileHandle.Inc()
	fs.log.WithFields(logrus.Fields{"name": name, "fd": fd, "inode": inodeIndex}).Debug("open")
	return fd, nil
}

func (fs *Filesystem) descriptorAt(fd int) (*descriptor, error) {
	if fd < 0 || fd >= len(fs.descriptors) {
		return nil, ErrNotFound
	}
	if fs.descriptors[fd].inodeIndex == 0 {
		return nil, ErrNotFound
	}
	return &fs.descriptors[fd], nil
}

// CloseFile releases descriptor fd. The underlying file and its data are
// untouched; distilled spec §4.4 treats close as purely a descriptor-table
// operation.
func (fs *Filesystem) CloseFile(fd int) error {
	d, err := fs.descriptorAt(fd)
	if err != nil {
		return err
	}
	*d = descriptor{}
	fs.metrics.OpenFileHandle.Dec()
	fs.log.WithField("fd", fd).Debug("close")
	return nil
}

// Seek repositions fd's read/write pointer to loc. loc == size is rejected
// exactly like loc > size: the original course project's fseek never
// allows positioning at (or past) end-of-file, only strictly before it,
// and that boundary is preserved here rather than fixed.
func (fs *Filesystem) Seek(fd int, loc int64) error {
	d, err := fs.descriptorAt(fd)
	if err != nil {
		return err
	}
	n := fs.inodes.Get(int(d.inodeIndex))
	if loc < 0 || loc >= int64(n.Size) {
		return ErrOutOfBounds
	}
	d.rwPointer = loc
	return nil
}

// Read implements sfs_fread of distilled spec §4.4. It returns at most
// length bytes, clamped to what remains before end-of-file. The read/write
// pointer afterward is pos+n-1, not pos+n: a one-off behavior carried over
// unchanged from the original implementation, not a bug to fix here.
func (fs *Filesystem) Read(fd int, length int) ([]byte, error) {
	d, err := fs.descriptorAt(fd)
	if err != nil {
		return nil, err
	}
	n := fs.inodes.Get(int(d.inodeIndex))
	pos := d.rwPointer
	remaining := int64(n.Size) - pos
	if remaining < 0 {
		remaining = 0
	}
	if int64(length) > remaining {
		length = int(remaining)
	}
	if length <= 0 {
		return nil, nil
	}

	blockSize := fs.opts.BlockSize
	out := make([]byte, length)
	block := make([]byte, blockSize)
	firstSeq := int(pos / int64(blockSize))
	lastSeq := int((pos + int64(length) - 1) / int64(blockSize))
	written := 0
	for seq := firstSeq; seq <= lastSeq; seq++ {
		phys, err := fs.resolveBlock(n, seq)
		if err != nil {
			return nil, err
		}
		if err := fs.dev.ReadBlocks(int(phys), 1, block); err != nil {
			return nil, ErrIO
		}
		blockStart := int64(seq) * int64(blockSize)
		from := 0
		if seq == firstSeq {
			from = int(pos - blockStart)
		}
		to := blockSize
		if seq == lastSeq {
			to = int(pos + int64(length) - blockStart)
		}
		copied := copy(out[written:], block[from:to])
		written += copied
	}

	d.rwPointer = pos + int64(length) - 1
	fs.metrics.Reads.Inc()
	fs.metrics.BytesRead.Add(float64(length))
	return out, nil
}

// Write implements sfs_fwrite of distilled spec §4.4. The last block
// touched is computed from rw_pointer+length rather than
// rw_pointer+length-1, so a write that lands exactly on a block boundary
// allocates one block more than strictly needed. This over-allocation is
// carried over unchanged from the original implementation, not corrected
// here.
func (fs *Filesystem) Write(fd int, data []byte) (int, error) {
	d, err := fs.descriptorAt(fd)
	if err != nil {
		return 0, err
	}
	n := fs.inodes.Get(int(d.inodeIndex))
	pos := d.rwPointer
	length := len(data)
	if length == 0 {
		return 0, nil
	}

	blockSize := fs.opts.BlockSize
	firstSeq := int(pos / int64(blockSize))
	lastSeq := int((pos + int64(length)) / int64(blockSize))
	if lastSeq >= fs.opts.MaxFileBlocks() {
		return 0, ErrOutOfSpace
	}

	oldBlockCount := n.BlockCount(blockSize)
	block := make([]byte, blockSize)
	written := 0
	allocated := false
	for seq := firstSeq; seq <= lastSeq; seq++ {
		phys, isNew, err := fs.ensureBlock(n, seq, oldBlockCount)
		if err != nil {
			return written, err
		}
		allocated = allocated || isNew

		blockStart := int64(seq) * int64(blockSize)
		from := 0
		if seq == firstSeq {
			from = int(pos - blockStart)
		}
		to := blockSize
		if seq == lastSeq {
			want := int(pos + int64(length) - blockStart)
			if want < to {
				to = want
			}
		}

		if from != 0 || to != blockSize {
			if isNew {
				for i := range block {
					block[i] = 0
				}
			} else if err := fs.dev.ReadBlocks(int(phys), 1, block); err != nil {
				return written, ErrIO
			}
		}
		copy(block[from:to], data[written:written+(to-from)])
		written += to - from
		if err := fs.dev.WriteBlocks(int(phys), block); err != nil {
			return written, ErrIO
		}
	}

	if newSize := uint32(pos + int64(length)); newSize > n.Size {
		n.Size = newSize
	}
	d.rwPointer = pos + int64(length) - 1

	if err := fs.flushInodes(); err != nil {
		return written, err
	}
	if allocated {
		if err := fs.flushBitmap(); err != nil {
			return written, err
		}
	}
	fs.metrics.Writes.Inc()
	fs.metrics.BytesWritten.Add(float64(written))
	return written, nil
}

// Remove implements sfs_remove of distilled spec §4.4: it deletes name's
// directory entry and releases its inode and blocks. Removing a file that
// still has an open descriptor is rejected, matching the course project's
// refusal to pull the rug out from under a live fd.
func (fs *Filesystem) Remove(name string) error {
	entryIndex, inodeIndex, err := fs.dir.Find(name)
	if err != nil {
		return ErrNotFound
	}
	for _, d := range fs.descriptors {
		if d.inodeIndex == inodeIndex {
			return ErrFileBusy
		}
	}

	n := fs.inodes.Get(int(inodeIndex))
	fs.freeBlocks(n)
	n.InUse = false
	fs.dir.Remove(entryIndex)

	if err := fs.flushSuperblock(); err != nil {
		return err
	}
	if err := fs.flushInodes(); err != nil {
		return err
	}
	if err := fs.flushBitmap(); err != nil {
		return err
	}
	if err := fs.flushDirectory(); err != nil {
		return err
	}
	fs.log.WithField("name", name).Debug("remove")
	return nil
}

// NextFilename implements sfs_getnextfilename, returning directory entries
// one at a time across repeated calls until the directory is exhausted,
// after which the next call starts over from the beginning.
func (fs *Filesystem) NextFilename() (string, bool) {
	return fs.dir.Advance()
}

// FileSize implements sfs_getfilesize: the current size, in bytes, of the
// named file's data.
func (fs *Filesystem) FileSize(name string) (int64, error) {
	_, inodeIndex, err := fs.dir.Find(name)
	if err != nil {
		return 0, ErrNotFound
	}
	return int64(fs.inodes.Get(int(inodeIndex)).Size), nil
}

// Exists reports whether name has a directory entry, an SPEC_FULL.md
// convenience query with no course-project equivalent.
func (fs *Filesystem) Exists(name string) bool {
	_, _, err := fs.dir.Find(name)
	return err == nil
}

// MaxFileSize returns the largest file size representable under this
// Filesystem's layout.
func (fs *Filesystem) MaxFileSize() int64 {
	return fs.opts.MaxFileSize()
}
