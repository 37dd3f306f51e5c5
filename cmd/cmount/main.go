package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"

	"github.com/ninelib/ninep/cli"
	"github.com/ninelib/ninep/exportfs/fuse"
	"github.com/ninelib/ninep/fs/proxy"
	"github.com/ninelib/ninep/ninep"
)

func main() {
	var mountpoint string
	var allowOther bool

	flag.StringVar(&mountpoint, "at", "", "local directory to mount the namespace onto")
	flag.BoolVar(&allowOther, "allow-other", false, "allow other local users to access the mount")

	flag.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "Usage: %s -at DIR [OPTIONS] ADDR/PATH\n\n", os.Args[0])
		fmt.Fprintf(w, "mount a 9p namespace as a local FUSE filesystem\n\n")
		fmt.Fprintf(w, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	cli.MainClient(func(cfg *cli.ClientConfig, mnt proxy.FileSystemMount) error {
		if mountpoint == "" {
			flag.Usage()
			os.Exit(1)
		}

		opts := &gofusefs.Options{}
		opts.AllowOther = allowOther

		// blocks until the mount is unmounted (fusermount -u, or ^C via the
		// OS-level SIGINT handling go-fuse installs on the mount itself).
		return fuse.MountAndServeFS(context.Background(), mnt.FS, mnt.Prefix, ninep.Loggable{}, mountpoint, opts)
	})
}
