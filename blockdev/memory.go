package blockdev

import (
	"fmt"
	"io"

	"github.com/orcaman/writerseeker"
)

// Memory is an in-memory Device, used by the unit test suite so each test
// case doesn't need its own temp file. It is backed by
// writerseeker.WriterSeeker (a dependency distr1-distri pulls in for its
// own in-memory staging), which gives a Write+Seek surface over a growing
// byte buffer; Memory pre-extends that buffer to its full size at
// construction so every block offset is always writable/readable without
// growing mid-operation.
type Memory struct {
	ws        *writerseeker.WriterSeeker
	blockSize int
	numBlocks int
}

// NewMemory creates a zero-filled in-memory device of blockSize*numBlocks
// bytes.
func NewMemory(blockSize, numBlocks int) (*Memory, error) {
	m := &Memory{ws: &writerseeker.WriterSeeker{}, blockSize: blockSize, numBlocks: numBlocks}
	zero := make([]byte, blockSize*numBlocks)
	if _, err := m.ws.Write(zero); err != nil {
		return nil, fmt.Errorf("blockdev: preallocate memory device: %w", err)
	}
	return m, nil
}

func (m *Memory) BlockSize() int { return m.blockSize }
func (m *Memory) NumBlocks() int { return m.numBlocks }

func (m *Memory) ReadBlocks(start, count int, dest []byte) error {
	if err := checkRange(start, count, m.numBlocks); err != nil {
		return err
	}
	want := count * m.blockSize
	if len(dest) != want {
		return fmt.Errorf("blockdev: read dest has length %d, want %d", len(dest), want)
	}
	full, err := io.ReadAll(m.ws.Reader())
	if err != nil {
		return fmt.Errorf("blockdev: snapshot memory device: %w", err)
	}
	off := start * m.blockSize
	copy(dest, full[off:off+want])
	return nil
}

func (m *Memory) WriteBlocks(start int, src []byte) error {
	if len(src)%m.blockSize != 0 {
		return fmt.Errorf("blockdev: write payload length %d is not a multiple of block size %d", len(src), m.blockSize)
	}
	count := len(src) / m.blockSize
	if err := checkRange(start, count, m.numBlocks); err != nil {
		return err
	}
	off := int64(start) * int64(m.blockSize)
	if _, err := m.ws.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("blockdev: seek memory device: %w", err)
	}
	if _, err := m.ws.Write(src); err != nil {
		return fmt.Errorf("blockdev: write memory device: %w", err)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
