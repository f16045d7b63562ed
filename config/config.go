// Package config binds the tunable layout constants (block size, block
// count, inode count, image path) to viper, the way gcsfuse's cmd package
// binds cfg.Config from viper and pflag flags onto a cobra command. Unlike
// gcsfuse's nested YAML-backed config, SFS has a handful of flat scalars,
// so one flag set and one viper instance are enough.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sfsproject/sfs/layout"
)

// Config is the resolved set of CLI-tunable values for one sfsutil
// invocation.
type Config struct {
	ImagePath string
	BlockSize int
	NumBlocks int
	NumInodes int
}

// Options converts Config into a layout.Options for Mksfs/Format/Mount.
func (c Config) Options() layout.Options {
	return layout.Options{
		BlockSize: c.BlockSize,
		NumBlocks: c.NumBlocks,
		NumInodes: c.NumInodes,
	}
}

// BindFlags registers the layout flags on fs and binds them to v, mirroring
// gcsfuse's flags.go pattern of one BindFlags function per command.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("image", "sfs.img", "path to the disk image file")
	fs.Int("block-size", layout.DefaultBlockSize, "bytes per block")
	fs.Int("num-blocks", layout.DefaultNumBlocks, "number of blocks in the image")
	fs.Int("num-inodes", layout.DefaultNumInodes, "number of inode table slots")

	for _, name := range []string{"image", "block-size", "num-blocks", "num-inodes"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load resolves a Config from a bound viper instance, applying the same
// defaults layout.NewOptions uses when a value was never set.
func Load(v *viper.Viper) Config {
	return Config{
		ImagePath: v.GetString("image"),
		BlockSize: v.GetInt("block-size"),
		NumBlocks: v.GetInt("num-blocks"),
		NumInodes: v.GetInt("num-inodes"),
	}
}
