package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ninelib/ninep/cli"
	"github.com/ninelib/ninep/fs/proxy"
)

func main() {
	var recursive bool

	flag.BoolVar(&recursive, "r", false, "Recursively delete directories")

	flag.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "Usage: %s [OPTIONS] ADDR/PATH [MORE_PATHS...]\n\n", os.Args[0])
		fmt.Fprintf(w, "rm for CFS - will delete directories\n\n")
		fmt.Fprintf(w, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	cli.MainClient(func(cfg *cli.ClientConfig, mnt proxy.FileSystemMount) error {
		if flag.NArg() == 0 {
			flag.Usage()
			os.Exit(1)
		}

		ctx := context.Background()

		files := []string{mnt.Prefix}
		files = append(files, flag.Args()[1:]...)

		for _, path := range files {
			st, err := mnt.FS.Stat(ctx, path)
			if os.IsNotExist(err) {
				return fmt.Errorf("Path does not exist: %s", filepath.Join(mnt.Addr, path))
			}
			if err != nil {
				return err
			}

			if st.IsDir() && !recursive {
				return errors.New("Use -r to delete directories")
			}

			if err := mnt.FS.Delete(ctx, path); err != nil {
				return err
			}
		}
		return nil
	})
}
