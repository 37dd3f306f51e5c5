package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	ninefs "github.com/ninelib/ninep/fs"
	"github.com/ninelib/ninep/ninep"
	_ "go.uber.org/automaxprocs"
)

// passwordAuthorizer is a minimal demo Authorizer: the access (aname) must
// be of the form "mount:password" and the password must match. It rejects
// the attach at Tauth time rather than deferring to Tattach, since a
// static password needs no further proof exchange over the afid.
type passwordAuthorizer struct{ password string }

func (a *passwordAuthorizer) Auth(ctx context.Context, addr, user, access string) (ninep.AuthFileHandle, error) {
	_, password, ok := strings.Cut(access, ":")
	if !ok || password != a.password {
		return nil, fmt.Errorf("invalid credentials for user %q", user)
	}
	return passwordAuthFileHandle{}, nil
}

type passwordAuthFileHandle struct{}

func (passwordAuthFileHandle) ReadAt(p []byte, off int64) (int, error)  { return 0, io.EOF }
func (passwordAuthFileHandle) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }
func (passwordAuthFileHandle) Sync() error                              { return nil }
func (passwordAuthFileHandle) Close() error                             { return nil }
func (passwordAuthFileHandle) Authorized(usr, mnt string) bool          { return true }

func main() {
	var addr string
	var authPassword string
	flag.StringVar(&addr, "addr", "tcp!127.0.0.1!5640", "address to listen on")
	flag.StringVar(&authPassword, "auth-password", "", "require Tauth with aname \"mount:PASSWORD\" matching this value before Tattach succeeds")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	qids := ninep.NewQidPool()
	fids := ninep.NewFidTracker()
	fs := ninefs.Dir(".")

	var handler ninep.Handler
	if authPassword != "" {
		handler = ninep.NewAuthenticatingHandler(fs, &passwordAuthorizer{password: authPassword}, qids, fids, logger, logger)
	} else {
		handler = &ninep.UnauthenticatedHandler{
			Fs:       fs,
			ErrorLog: logger,
			TraceLog: logger,
			Qids:     qids,
			Fids:     fids,
		}
	}

	srv := ninep.Server{
		Handler:  handler,
		ErrorLog: logger,
		TraceLog: logger,
	}
	err := srv.ListenAndServe(addr, &ninep.TCPDialer{})
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
}
