// Package adapter exposes a Filesystem as a user-space file system via
// github.com/jacobsa/fuse, implementing the subset of fuseutil.FileSystem
// named in distilled spec §6. It is grounded on the library's own sample
// file systems (samples/memfs) and embeds fuseutil.NotImplementedFileSystem
// so every op the distilled spec doesn't name responds ENOSYS automatically,
// exactly the pattern NotImplementedFileSystem exists for.
package adapter

import (
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/sfsproject/sfs"
)

// rootInode is the fixed inode ID FUSE uses for the mount point itself.
const rootInode = fuseops.RootInodeID

// FS adapts a *sfs.Filesystem to fuseutil.FileSystem. There is no
// subdirectory support: every file lives directly under the root, per
// distilled spec's flat namespace.
type FS struct {
	fuseutil.NotImplementedFileSystem

	mu sync.Mutex
	fs *sfs.Filesystem

	// handles maps a FUSE file handle to the sfs descriptor backing it,
	// plus the name it was opened under so WriteFile can look up the
	// current size without a dedicated fd->name table in the core.
	handles map[fuseops.HandleID]openHandle
	nextHdl fuseops.HandleID
}

type openHandle struct {
	fd   int
	name string
}

// New wraps fs for mounting.
func New(fs *sfs.Filesystem) *FS {
	return &FS{fs: fs, handles: make(map[fuseops.HandleID]openHandle)}
}

// inodeForEntry maps a root directory entry index to the synthetic FUSE
// inode ID the adapter contract assigns it: 2 + entry index, so inode 1
// stays reserved for the root directory itself.
func inodeForEntry(entryIndex int) fuseops.InodeID {
	return fuseops.InodeID(2 + entryIndex)
}

func entryForInode(id fuseops.InodeID) int {
	return int(id) - 2
}

func normalizeName(name string) string {
	return strings.TrimPrefix(name, "/")
}

func fileAttributes(size uint64) fuseops.InodeAttributes {
	now := time.Now()
	return fuseops.InodeAttributes{
		Size:   size,
		Nlink:  1,
		Mode:   0o644,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
	}
}

func dirAttributes() fuseops.InodeAttributes {
	now := time.Now()
	return fuseops.InodeAttributes{
		Size:   4096,
		Nlink:  1,
		Mode:   os.ModeDir | 0o755,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
	}
}

func (a *FS) LookUpInode(op *fuseops.LookUpInodeOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := normalizeName(op.Name)
	size, err := a.fs.FileSize(name)
	if err != nil {
		op.Respond(fuse.ENOENT)
		return
	}
	entryIndex := a.findEntryIndex(name)
	if entryIndex < 0 {
		op.Respond(fuse.ENOENT)
		return
	}
	op.Entry = fuseops.ChildInodeEntry{
		Child:      inodeForEntry(entryIndex),
		Attributes: fileAttributes(uint64(size)),
	}
	op.Respond(nil)
}

// findEntryIndex walks the directory listing looking for name, since the
// sfs package exposes the directory only through the getnextfilename
// iteration contract, never by entry index.
func (a *FS) findEntryIndex(name string) int {
	i := 0
	for {
		got, ok := a.fs.NextFilename()
		if !ok {
			return -1
		}
		if got == name {
			return i
		}
		i++
	}
}

func (a *FS) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if op.Inode == rootInode {
		op.Attributes = dirAttributes()
		op.Respond(nil)
		return
	}

	name := a.nameForInode(op.Inode)
	if name == "" {
		op.Respond(fuse.ENOENT)
		return
	}
	size, err := a.fs.FileSize(name)
	if err != nil {
		op.Respond(fuse.ENOENT)
		return
	}
	op.Attributes = fileAttributes(uint64(size))
	op.Respond(nil)
}

// nameForInode re-derives a file's name from its synthetic inode by
// replaying the directory listing up to that entry index, since the
// adapter keeps no cache of its own — the directory is the single source
// of truth.
func (a *FS) nameForInode(id fuseops.InodeID) string {
	target := entryForInode(id)
	if target < 0 {
		return ""
	}
	for i := 0; i <= target; i++ {
		name, ok := a.fs.NextFilename()
		if !ok {
			return ""
		}
		if i == target {
			return name
		}
	}
	return ""
}

func (a *FS) OpenDir(op *fuseops.OpenDirOp) {
	if op.Inode != rootInode {
		op.Respond(fuse.ENOENT)
		return
	}
	op.Respond(nil)
}

func (a *FS) ReadDir(op *fuseops.ReadDirOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if op.Offset != 0 {
		op.Respond(nil)
		return
	}

	buf := make([]byte, op.Size)
	written := 0
	i := 0
	for {
		name, ok := a.fs.NextFilename()
		if !ok {
			break
		}
		d := fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  inodeForEntry(i),
			Name:   name,
			Type:   fuseutil.DT_File,
		}
		n := fuseutil.WriteDirent(buf[written:], d)
		if n == 0 {
			break
		}
		written += n
		i++
	}
	op.Data = buf[:written]
	op.Respond(nil)
}

func (a *FS) CreateFile(op *fuseops.CreateFileOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := normalizeName(op.Name)
	fd, err := a.fs.Open(name)
	if err != nil {
		op.Respond(translateErr(err))
		return
	}
	entryIndex := a.findEntryIndex(name)
	op.Entry = fuseops.ChildInodeEntry{
		Child:      inodeForEntry(entryIndex),
		Attributes: fileAttributes(0),
	}
	op.Handle = a.registerHandle(fd, name)
	op.Respond(nil)
}

func (a *FS) OpenFile(op *fuseops.OpenFileOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := a.nameForInode(op.Inode)
	if name == "" {
		op.Respond(fuse.ENOENT)
		return
	}
	fd, err := a.fs.Open(name)
	if err != nil {
		op.Respond(translateErr(err))
		return
	}
	op.Handle = a.registerHandle(fd, name)
	op.Respond(nil)
}

func (a *FS) registerHandle(fd int, name string) fuseops.HandleID {
	a.nextHdl++
	id := a.nextHdl
	a.handles[id] = openHandle{fd: fd, name: name}
	return id
}

func (a *FS) ReadFile(op *fuseops.ReadFileOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.handles[op.Handle]
	if !ok {
		op.Respond(fuse.EIO)
		return
	}
	fd := h.fd
	if err := a.fs.Seek(fd, op.Offset); err != nil {
		// Seeking exactly to end-of-file is rejected by the core; FUSE expects
		// a clean zero-byte read at EOF instead of an error.
		op.Data = nil
		op.Respond(nil)
		return
	}
	data, err := a.fs.Read(fd, op.Size)
	if err != nil {
		op.Respond(translateErr(err))
		return
	}
	op.Data = data
	op.Respond(nil)
}

func (a *FS) WriteFile(op *fuseops.WriteFileOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.handles[op.Handle]
	if !ok {
		op.Respond(fuse.EIO)
		return
	}
	size, err := a.fs.FileSize(h.name)
	if err == nil && op.Offset < size {
		if err := a.fs.Seek(h.fd, op.Offset); err != nil {
			op.Respond(translateErr(err))
			return
		}
	}
	if _, err := a.fs.Write(h.fd, op.Data); err != nil {
		op.Respond(translateErr(err))
		return
	}
	op.Respond(nil)
}

// SetInodeAttributes implements truncate by removing and recreating the
// file, per distilled spec's adapter contract: there is no in-place
// truncate in the File API Engine.
func (a *FS) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if op.Size == nil {
		op.Attributes = fileAttributes(0)
		op.Respond(nil)
		return
	}

	name := a.nameForInode(op.Inode)
	if name == "" {
		op.Respond(fuse.ENOENT)
		return
	}
	if *op.Size == 0 {
		if err := a.fs.Remove(name); err != nil && err != sfs.ErrFileBusy {
			op.Respond(translateErr(err))
			return
		}
		if _, err := a.fs.Open(name); err != nil {
			op.Respond(translateErr(err))
			return
		}
	}
	op.Attributes = fileAttributes(*op.Size)
	op.Respond(nil)
}

func (a *FS) Unlink(op *fuseops.UnlinkOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := normalizeName(op.Name)
	if err := a.fs.Remove(name); err != nil {
		op.Respond(translateErr(err))
		return
	}
	op.Respond(nil)
}

func (a *FS) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.handles[op.Handle]
	if ok {
		_ = a.fs.CloseFile(h.fd)
		delete(a.handles, op.Handle)
	}
	op.Respond(nil)
}

// translateErr maps the sfs error taxonomy to FUSE errno values, the
// cmd/adapter boundary translation distilled spec §7 calls for. fuse's own
// errors.go only names EIO/ENOENT/ENOSYS/ENOTEMPTY; anything else is a
// plain syscall.Errno, which fuse.Server accepts the same way.
func translateErr(err error) error {
	switch err {
	case sfs.ErrNotFound:
		return fuse.ENOENT
	case sfs.ErrDirectoryFull, sfs.ErrOutOfInodes, sfs.ErrOutOfDescriptors, sfs.ErrOutOfSpace:
		return syscall.ENOSPC
	case sfs.ErrInvalidName:
		return syscall.EINVAL
	case sfs.ErrFileBusy:
		return syscall.EBUSY
	default:
		return fuse.EIO
	}
}
