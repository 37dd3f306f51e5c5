package cli

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/ninelib/ninep/fs/proxy"
	"github.com/ninelib/ninep/ninep"
)

type ClientConfig struct {
	PrintTraceMessages bool
	PrintErrorMessages bool

	PrintPrefix string

	User  string
	Mount string

	TimeoutInSeconds int
}

func (c *ClientConfig) SetFlags(f Flags) {
	if f == nil {
		f = &StdFlags{}
	}
	f.StringVar(&c.User, "user", "", "Username to connect as, defaults to current system user")
	f.StringVar(&c.Mount, "mount", "", "Default access path, defaults to empty string")
	f.IntVar(&c.TimeoutInSeconds, "timeout", 5, "Timeout in seconds for client requests")
	f.BoolVar(&c.PrintTraceMessages, "trace", false, "Print trace of 9p client to stdout")
	f.BoolVar(&c.PrintErrorMessages, "err", false, "Print errors of 9p client to stderr")
}

func (c *ClientConfig) user() string {
	if c.User == "" {
		u, err := user.Current()
		if err != nil {
			c.User = "9puser"
		}
		c.User = u.Username
	}
	return c.User
}

func (c *ClientConfig) CreateClient(addr string) (*ninep.Client, error) {
	var traceLogger, errLogger ninep.Logger

	if c.PrintTraceMessages {
		traceLogger = &stdLogger{prefix: c.PrintPrefix}
	}
	if c.PrintErrorMessages {
		errLogger = &stdLogger{prefix: c.PrintPrefix}
	}

	clt := &ninep.Client{
		Timeout: time.Duration(c.TimeoutInSeconds) * time.Second,
		Loggable: ninep.Loggable{
			ErrorLog: errLogger,
			TraceLog: traceLogger,
		},
	}

	if err := clt.Connect(addr); err != nil {
		return nil, fmt.Errorf("failed to connect to 9p server: %w", err)
	}
	return clt, nil
}

func (c *ClientConfig) CreateFs(addr string) (*ninep.Client, *ninep.FileSystemProxy, error) {
	clt, err := c.CreateClient(addr)
	if err != nil {
		return nil, nil, err
	}
	fs, err := clt.Fs(c.user(), c.Mount)
	if err != nil {
		clt.Close()
		return nil, nil, fmt.Errorf("failed to attach to 9p server: %w", err)
	}
	return clt, fs, nil
}

// FSMount connects to mc.Addr and attaches the namespace, returning a
// FileSystemMount whose Prefix is mc.Prefix.
func (c *ClientConfig) FSMount(mc *proxy.MountConfig) (proxy.FileSystemMount, error) {
	clt, fs, err := c.CreateFs(mc.Addr)
	if err != nil {
		return proxy.FileSystemMount{}, err
	}
	return proxy.FileSystemMount{
		Addr:   mc.Addr,
		Prefix: mc.Prefix,
		Client: clt,
		FS:     fs,
	}, nil
}

func MainClient(fn func(cfg *ClientConfig, mnt proxy.FileSystemMount) error) {
	var (
		cfg ClientConfig

		exitCode int
	)

	defer func() {
		os.Exit(exitCode)
	}()

	cfg.SetFlags(nil)

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		exitCode = 1
		runtime.Goexit()
	}

	mc, ok := proxy.ParseMount(flag.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "Invalid mount spec: %s\n", flag.Arg(0))
		exitCode = 2
		runtime.Goexit()
	}

	mnt, err := cfg.FSMount(&mc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		exitCode = 1
		runtime.Goexit()
	}
	defer mnt.Close()

	err = fn(&cfg, mnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed: %s\n", err)
		exitCode = 1
		runtime.Goexit()
	}
}

type stdLogger struct {
	prefix string
}

func (l *stdLogger) Printf(format string, values ...interface{}) {
	fmt.Fprintf(os.Stderr, l.prefix+format+"\n", values...)
}
