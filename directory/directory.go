// Package directory implements the flat root directory table of distilled
// spec §4.3: an ordered array mapping filename to inode index, with linear
// find/insert/remove and a mount-scoped iteration cursor. The entry
// lifecycle (find by linear scan, insert at lowest empty slot, remove by
// zeroing the inode reference) is grounded on the teacher library's
// directory entry handling in filesystem/fat32/directory.go, adapted from
// FAT32's long/short-filename slots to a single fixed-width inline name.
package directory

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/sfsproject/sfs/layout"
)

// ErrDirectoryFull is returned by Insert when every entry slot is occupied.
var ErrDirectoryFull = errors.New("directory: full")

// ErrNotFound is returned by Find when no occupied entry matches the name.
var ErrNotFound = errors.New("directory: not found")

// ErrInvalidName is returned when a filename does not fit in
// layout.MaxFilename bytes including its null terminator.
var ErrInvalidName = errors.New("directory: name too long")

// Entry is one directory slot. InodeIndex == 0 means the slot is empty;
// inode 0 is permanently reserved for the root directory itself and can
// never appear as a regular file's entry.
type Entry struct {
	InodeIndex uint32
	Name       [layout.MaxFilename]byte
}

func (e *Entry) nameString() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

func (e *Entry) setName(name string) error {
	if len(name)+1 > layout.MaxFilename {
		return ErrInvalidName
	}
	var buf [layout.MaxFilename]byte
	copy(buf[:], name)
	e.Name = buf
	return nil
}

// Encode writes the entry's fixed-width on-disk record into b.
func (e *Entry) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], e.InodeIndex)
	copy(b[4:4+layout.MaxFilename], e.Name[:])
}

// Decode populates the entry from its on-disk record.
func (e *Entry) Decode(b []byte) {
	e.InodeIndex = binary.LittleEndian.Uint32(b[0:4])
	copy(e.Name[:], b[4:4+layout.MaxFilename])
}

// Directory is the in-memory root directory table plus its iteration
// cursor.
type Directory struct {
	entries []Entry
	cursor  int // next_dir_cursor; -1 means "start from the beginning"
}

// New allocates an empty directory of the given capacity.
func New(maxEntries int) *Directory {
	return &Directory{entries: make([]Entry, maxEntries), cursor: -1}
}

// Bytes serializes the whole table, for writing as inode 0's file data.
func (d *Directory) Bytes() []byte {
	b := make([]byte, len(d.entries)*layout.DirEntryRecordSize)
	for i := range d.entries {
		d.entries[i].Encode(b[i*layout.DirEntryRecordSize : (i+1)*layout.DirEntryRecordSize])
	}
	return b
}

// LoadBytes restores the table from a byte image previously produced by
// Bytes.
func (d *Directory) LoadBytes(b []byte) {
	for i := range d.entries {
		start := i * layout.DirEntryRecordSize
		if start+layout.DirEntryRecordSize > len(b) {
			break
		}
		d.entries[i].Decode(b[start : start+layout.DirEntryRecordSize])
	}
}

// Find returns the entry index and inode index for name, or ErrNotFound.
// Only occupied entries (InodeIndex != 0) are compared, per distilled spec
// §4.3.
func (d *Directory) Find(name string) (entryIndex int, inodeIndex uint32, err error) {
	for i := range d.entries {
		if d.entries[i].InodeIndex == 0 {
			continue
		}
		if d.entries[i].nameString() == name {
			return i, d.entries[i].InodeIndex, nil
		}
	}
	return -1, 0, ErrNotFound
}

// Insert places a new entry mapping name to inodeIndex at the lowest empty
// slot and returns that slot's index. Returns ErrDirectoryFull if no slot
// is empty.
func (d *Directory) Insert(inodeIndex uint32, name string) (int, error) {
	for i := range d.entries {
		if d.entries[i].InodeIndex == 0 {
			if err := d.entries[i].setName(name); err != nil {
				return -1, err
			}
			d.entries[i].InodeIndex = inodeIndex
			return i, nil
		}
	}
	return -1, ErrDirectoryFull
}

// Remove clears the entry at entryIndex. The filename bytes are left in
// place as stale data; they are never read back because InodeIndex == 0
// marks the slot empty and Find/Advance skip it.
func (d *Directory) Remove(entryIndex int) {
	d.entries[entryIndex].InodeIndex = 0
}

// Advance returns the name of the lowest occupied entry strictly greater
// than the current cursor, and advances the cursor to that entry's index.
// When no such entry exists, it resets the cursor to -1 and reports
// ok=false, so a fresh call to Advance begins iteration again from the
// start — the getnextfilename contract of distilled spec §4.3/§4.4.
func (d *Directory) Advance() (name string, ok bool) {
	for i := d.cursor + 1; i < len(d.entries); i++ {
		if d.entries[i].InodeIndex != 0 {
			d.cursor = i
			return d.entries[i].nameString(), true
		}
	}
	d.cursor = -1
	return "", false
}

// InodeAt returns the inode index stored in the entry at entryIndex.
func (d *Directory) InodeAt(entryIndex int) uint32 {
	return d.entries[entryIndex].InodeIndex
}
