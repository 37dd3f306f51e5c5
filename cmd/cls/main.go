package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/ninelib/ninep/cli"
	"github.com/ninelib/ninep/fs/proxy"
	"github.com/ninelib/ninep/ninep"
)

func main() {
	var list bool
	var noColor bool

	flag.BoolVar(&list, "l", false, "list long format stats about each file")
	flag.BoolVar(&noColor, "no-color", false, "disable colorized output")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "ls for CFS\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [OPTIONS] ADDR/PATH\n", os.Args[0])
		flag.PrintDefaults()
	}

	cli.MainClient(func(cfg *cli.ClientConfig, mnt proxy.FileSystemMount) error {
		cli.SupportsColor(noColor)
		dirName := color.New(color.FgBlue, color.Bold).SprintFunc()

		ctx := context.Background()

		w := tabwriter.NewWriter(os.Stdout, 2, 1, 1, ' ', tabwriter.AlignRight|tabwriter.DiscardEmptyColumns)
		for info, err := range mnt.FS.ListDir(ctx, mnt.Prefix) {
			if err != nil {
				return err
			}
			name := info.Name()
			if info.IsDir() {
				name = dirName(name)
			}
			if list {
				usr, gid, muid, _ := ninep.FileUsers(info)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t %s\n", info.Mode(), usr, gid, muid, info.Size(), info.ModTime(), name)
			} else {
				fmt.Fprintln(w, name)
			}
		}
		w.Flush()
		return nil
	})
}
