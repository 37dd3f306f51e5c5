package main

import (
	"flag"

	"github.com/ninelib/ninep/cli"
	"github.com/ninelib/ninep/fs/cachefs"
	"github.com/ninelib/ninep/fs/s3fs"
	"github.com/ninelib/ninep/ninep"
	_ "go.uber.org/automaxprocs"
)

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func main() {
	var (
		endpoint string
		flatten  bool
		cache    bool
	)

	flag.BoolVar(&flatten, "flatten", false, "Truncate the directory listing to only show the first level of directories instead of key names")
	flag.StringVar(&endpoint, "endpoint", "", "The S3 endpoint to use, defaults to AWS S3's builtin endpoint.")
	flag.BoolVar(&cache, "cache", false, "Cache directory listings, stats, and file data in memory to reduce S3 round trips")

	cli.ServiceMain(func() ninep.FileSystem {
		fs := s3fs.New(endpoint, flatten)
		if cache {
			return cachefs.New(fs)
		}
		return fs
	})
}
