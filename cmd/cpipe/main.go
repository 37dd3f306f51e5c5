package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/shlex"

	"github.com/ninelib/ninep/cli"
	"github.com/ninelib/ninep/fs/proxy"
	"github.com/ninelib/ninep/ninep"
)

func main() {
	var (
		mode    int
		execCmd string
	)
	flag.IntVar(&mode, "mode", 0644, "The mode to set the file that gets created")
	flag.StringVar(&execCmd, "exec", "", "Run this command and pipe its stdout into the file instead of reading stdin")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "writes STDIN (or a subprocess' stdout) into a file in CFS\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [OPTIONS] ADDR/PATH\n", os.Args[0])
		flag.PrintDefaults()
	}

	cli.MainClient(func(cfg *cli.ClientConfig, mnt proxy.FileSystemMount) error {
		var (
			h   ninep.FileHandle
			err error
		)

		ctx := context.Background()

		path := mnt.Prefix
		_, err = mnt.FS.Stat(ctx, path)
		flags := ninep.OpenMode(ninep.OWRITE)
		flags |= ninep.OTRUNC

		if os.IsNotExist(err) {
			h, err = mnt.FS.CreateFile(ctx, path, flags, ninep.Mode(mode))
		} else {
			h, err = mnt.FS.OpenFile(ctx, path, flags)
		}
		if err != nil {
			return err
		}
		defer h.Close()

		var src io.Reader = os.Stdin
		if execCmd != "" {
			args, err := shlex.Split(execCmd)
			if err != nil {
				return fmt.Errorf("invalid -exec command: %w", err)
			}
			if len(args) == 0 {
				return fmt.Errorf("invalid -exec command: empty")
			}
			cmd := exec.CommandContext(ctx, args[0], args[1:]...)
			cmd.Stderr = os.Stderr
			stdout, err := cmd.StdoutPipe()
			if err != nil {
				return err
			}
			if err := cmd.Start(); err != nil {
				return err
			}
			defer cmd.Wait()
			src = stdout
		}

		wtr := ninep.Writer(h)
		_, err = io.Copy(wtr, src)
		if err != nil && err != io.EOF {
			return err
		}

		return nil
	})
}
