package sfs

import "errors"

// The error taxonomy of distilled spec §7. The File API operations report
// name, descriptor, inode, directory, space and bounds failures as one of
// these, and a failed data-block transfer in Read or Write as ErrIO, never
// as a bare -1 — callers that need the distilled spec's original numeric
// contract (the CLI, the FUSE adapter) translate at their own boundary.
// A block device failure while flushing metadata or reading an indirection
// block is returned as the device's own error (wrapped with context), not
// as ErrIO, and Format/Mount return descriptive wrapped errors.
var (
	ErrInvalidName      = errors.New("sfs: invalid filename")
	ErrNotFound         = errors.New("sfs: file not found")
	ErrOutOfInodes      = errors.New("sfs: inode table full")
	ErrOutOfDescriptors = errors.New("sfs: descriptor table full")
	ErrDirectoryFull    = errors.New("sfs: directory full")
	ErrOutOfSpace       = errors.New("sfs: out of space")
	ErrOutOfBounds      = errors.New("sfs: seek target out of bounds")
	ErrFileBusy         = errors.New("sfs: file is open")
	ErrIO               = errors.New("sfs: block device I/O error")
)
