//go:build linux
// +build linux

package ninep

import (
	"io/fs"
	"os/user"
	"strconv"
	"syscall"
)

func GetBlockSize() (int64, error) {
	var s syscall.Statfs_t
	if err := syscall.Statfs(".", &s); err != nil {
		return 0, err
	}
	return int64(s.Bsize), nil
}

func FileId(info fs.FileInfo) (inode uint64, ok bool) {
	var statT *syscall.Stat_t
	statT, ok = info.Sys().(*syscall.Stat_t)
	if ok {
		inode = statT.Ino
	}
	return
}

func FileUsers(info fs.FileInfo) (uid, gid, muid string, err error) {
	statT, ok := info.Sys().(*syscall.Stat_t)
	if ok {
		var usr *user.User
		usr, err = user.LookupId(strconv.Itoa(int(statT.Uid)))
		if err != nil {
			return
		}
		uid = usr.Username

		var grp *user.Group
		grp, err = user.LookupGroupId(strconv.Itoa(int(statT.Gid)))
		if err != nil {
			return
		}
		gid = grp.Name

		// linux does not track last-modifying-user on a stat struct
		muid = ""
	} else if s, ok := info.Sys().(Stat); ok {
		return s.fileUsers()
	} else {
		err = ErrUnsupported
	}
	return
}
