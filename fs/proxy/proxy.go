// Package proxy parses "ADDR/PATH" mount specifiers used by the cfs
// command-line tools and holds the resulting mount; connecting to the 9P
// server is done by cli.ClientConfig.FSMount.
package proxy

import (
	"strings"

	"github.com/ninelib/ninep/ninep"
)

// MountConfig is an unconnected "ADDR/PATH" specifier.
type MountConfig struct {
	Addr   string
	Prefix string
}

// ParseMount splits a spec of the form "ADDR/PATH" into its address and
// path. ADDR is everything up to the first "/"; PATH is everything after
// it (and may itself be empty, meaning the namespace root). A spec with no
// "/" at all names just the address, with an empty path.
func ParseMount(spec string) (MountConfig, bool) {
	if spec == "" {
		return MountConfig{}, false
	}
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		return MountConfig{Addr: spec[:i], Prefix: spec[i+1:]}, true
	}
	return MountConfig{Addr: spec, Prefix: ""}, true
}

// FileSystemMount is a connected client attached to a namespace, along with
// the path prefix the mount spec named within it.
type FileSystemMount struct {
	Addr   string
	Prefix string

	Client *ninep.Client
	FS     *ninep.FileSystemProxy
}

func (m *FileSystemMount) Close() error {
	if m.Client != nil {
		return m.Client.Close()
	}
	return nil
}
