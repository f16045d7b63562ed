package blockdev

import (
	"fmt"
	"os"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"
)

// File is a Device backed by a real file or block device on disk, the
// equivalent of the course project's init_fresh_disk/init_disk pair
// implemented against the teacher's backend/file.rawBackend shape: a thin
// wrapper around *os.File plus the block-size/count it was opened with.
type File struct {
	f         *os.File
	blockSize int
	numBlocks int
	locked    bool
}

// CreateFile creates a brand-new disk image at path of exactly
// numBlocks*blockSize bytes, the equivalent of init_fresh_disk. The path
// must not already exist.
//
// The image is preallocated with fallocate instead of a zero-fill write
// loop — a real improvement over the course project's disk_emu, and an
// opportunity to exercise the same preallocation dependency jacobsa/fuse
// carries for its own samples. Preallocation failures on filesystems that
// don't support fallocate (fat, some network mounts) fall back to
// Truncate, matching fallocate's own documented behavior on ENOTSUP.
func CreateFile(path string, blockSize, numBlocks int) (*File, error) {
	if blockSize <= 0 || numBlocks <= 0 {
		return nil, fmt.Errorf("blockdev: invalid size blockSize=%d numBlocks=%d", blockSize, numBlocks)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("blockdev: create %s: %w", path, err)
	}

	size := int64(blockSize) * int64(numBlocks)
	if err := fallocate.Fallocate(f, 0, size); err != nil {
		if truncErr := f.Truncate(size); truncErr != nil {
			f.Close()
			return nil, fmt.Errorf("blockdev: preallocate %s: %w", path, truncErr)
		}
	}

	dev := &File{f: f, blockSize: blockSize, numBlocks: numBlocks}
	if err := dev.lockExclusive(); err != nil {
		f.Close()
		return nil, err
	}
	return dev, nil
}

// OpenFile opens an existing disk image, the equivalent of init_disk.
func OpenFile(path string, blockSize, numBlocks int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	dev := &File{f: f, blockSize: blockSize, numBlocks: numBlocks}
	if err := dev.lockExclusive(); err != nil {
		f.Close()
		return nil, err
	}
	return dev, nil
}

// lockExclusive takes a non-blocking advisory flock on the backing file.
// Distilled spec §5 says the core makes no provision for concurrent access
// and will corrupt state if re-entered; this turns that into a fail-fast
// error (a second mksfs against the same image) instead of silent
// corruption, the way distilled spec §5's re-architecture note invites.
func (d *File) lockExclusive() error {
	if err := unix.Flock(int(d.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("blockdev: image %s is already mounted: %w", d.f.Name(), err)
	}
	d.locked = true
	return nil
}

func (d *File) BlockSize() int { return d.blockSize }
func (d *File) NumBlocks() int { return d.numBlocks }

func (d *File) ReadBlocks(start, count int, dest []byte) error {
	if err := checkRange(start, count, d.numBlocks); err != nil {
		return err
	}
	want := count * d.blockSize
	if len(dest) != want {
		return fmt.Errorf("blockdev: read dest has length %d, want %d", len(dest), want)
	}
	off := int64(start) * int64(d.blockSize)
	if _, err := d.f.ReadAt(dest, off); err != nil {
		return fmt.Errorf("blockdev: read blocks [%d,%d): %w", start, start+count, err)
	}
	return nil
}

func (d *File) WriteBlocks(start int, src []byte) error {
	if len(src)%d.blockSize != 0 {
		return fmt.Errorf("blockdev: write payload length %d is not a multiple of block size %d", len(src), d.blockSize)
	}
	count := len(src) / d.blockSize
	if err := checkRange(start, count, d.numBlocks); err != nil {
		return err
	}
	off := int64(start) * int64(d.blockSize)
	if _, err := d.f.WriteAt(src, off); err != nil {
		return fmt.Errorf("blockdev: write blocks [%d,%d): %w", start, start+count, err)
	}
	return nil
}

func (d *File) Close() error {
	if d.locked {
		_ = unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	}
	return d.f.Close()
}
