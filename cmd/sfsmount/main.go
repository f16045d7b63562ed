// Command sfsmount mounts an SFS disk image as a host directory, wiring
// the adapter package to github.com/jacobsa/fuse's Mount/Join pair the way
// jacobsa/fuse's own sample mount commands (samples/mount_memfs) do.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sfsproject/sfs"
	"github.com/sfsproject/sfs/adapter"
	"github.com/sfsproject/sfs/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sfsmount:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("sfsmount", pflag.ExitOnError)
	v := viper.New()
	if err := config.BindFlags(fs, v); err != nil {
		return err
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: sfsmount [flags] <mountpoint>")
	}
	mountpoint := fs.Arg(0)

	cfg := config.Load(v)
	filesystem, err := sfs.Mount(cfg.ImagePath, cfg.Options())
	if err != nil {
		return fmt.Errorf("mount image: %w", err)
	}
	defer filesystem.Close()

	server := fuseutil.NewFileSystemServer(adapter.New(filesystem))
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{})
	if err != nil {
		return fmt.Errorf("fuse.Mount: %w", err)
	}

	return mfs.Join(context.Background())
}
