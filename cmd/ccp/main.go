package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"

	"github.com/ninelib/ninep/cli"
	"github.com/ninelib/ninep/fs/proxy"
	"github.com/ninelib/ninep/ninep"
)

func main() {
	var (
		noAttrs  bool // disable copying stat
		allAttrs bool // also copy timestamps, whether or not noAttrs is set

		exitCode int
	)

	flag.BoolVar(&noAttrs, "n", false, "Don't copy file mode attributes")
	flag.BoolVar(&allAttrs, "a", false, "copy all file timestamps")

	flag.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "Usage: %s [OPTIONS] SRC_HOST/SRC_PATH DEST_HOST/DEST_PATH\n\n", os.Args[0])
		fmt.Fprintf(w, "cp for CFS - Copy a single file between namespaces\n\n")
		fmt.Fprintf(w, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	ctx := context.Background()

	cfg := cli.ClientConfig{}
	cfg.SetFlags(nil)

	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	defer func() { os.Exit(exitCode) }()

	srcMntCfg, ok := proxy.ParseMount(flag.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "Invalid source path: %v\n", flag.Arg(0))
		exitCode = 2
		runtime.Goexit()
	}
	dstMntCfg, ok := proxy.ParseMount(flag.Arg(1))
	if !ok {
		fmt.Fprintf(os.Stderr, "Invalid destination path: %v\n", flag.Arg(1))
		exitCode = 2
		runtime.Goexit()
	}

	cfg.PrintPrefix = "[src] "
	srcMnt, err := cfg.FSMount(&srcMntCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to source fs: %s\n", err)
		exitCode = 2
		runtime.Goexit()
	}
	defer srcMnt.Close()

	cfg.PrintPrefix = "[dst] "
	dstMnt, err := cfg.FSMount(&dstMntCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to destination fs: %s\n", err)
		exitCode = 3
		runtime.Goexit()
	}
	defer dstMnt.Close()

	srcSt, err := srcMnt.FS.Stat(ctx, srcMnt.Prefix)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Path does not exist on source fs: %s %s\n", srcMntCfg.Addr, srcMnt.Prefix)
		exitCode = 2
		runtime.Goexit()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error accessing path on source fs: %s\n", err)
		exitCode = 2
		runtime.Goexit()
	}
	if srcSt.IsDir() {
		fmt.Fprintf(os.Stderr, "Unsupported: directory copy\n")
		exitCode = 4
		runtime.Goexit()
	}

	srcH, err := srcMnt.FS.OpenFile(ctx, srcMnt.Prefix, ninep.OREAD)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file on source fs: %s: %s\n", srcMnt.Prefix, err)
		exitCode = 2
		runtime.Goexit()
	}
	defer srcH.Close()

	dstH, err := dstMnt.FS.CreateFile(ctx, dstMnt.Prefix, ninep.OWRITE|ninep.OTRUNC, ninep.Mode(0644))
	if errors.Is(err, fs.ErrExist) {
		dstH, err = dstMnt.FS.OpenFile(ctx, dstMnt.Prefix, ninep.OWRITE|ninep.OTRUNC)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file on destination fs: %s: %s\n", dstMnt.Prefix, err)
		exitCode = 3
		runtime.Goexit()
	}
	defer dstH.Close()

	w := ninep.Writer(dstH)
	r := ninep.Reader(srcH)
	if _, err = io.Copy(w, r); err != nil {
		fmt.Fprintf(os.Stderr, "Error while copying: %s\n", err)
		dstMnt.FS.Delete(ctx, dstMnt.Prefix)
		exitCode = 4
		runtime.Goexit()
	}

	if !noAttrs || allAttrs {
		st := ninep.SyncStat()
		if !noAttrs {
			st.SetMode(ninep.ModeFromOS(srcSt.Mode()))
		}
		if allAttrs {
			if atime, ok := ninep.Atime(srcSt); ok {
				st.SetAtime(uint32(atime.Unix()))
			}
			st.SetMtime(uint32(srcSt.ModTime().Unix()))
		}
		if err = dstMnt.FS.WriteStat(ctx, dstMnt.Prefix, st); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to copy file attributes: %s/%s\n", dstMntCfg.Addr, dstMnt.Prefix)
			exitCode = 3
			runtime.Goexit()
		}
	}
}
