// preserve_linux.go - metadata cloning for copied entries
//
// (c) 2025- Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build linux

package fsz

import (
	"os"
	"syscall"

	"github.com/pkg/xattr"
	"golang.org/x/sys/unix"
)

// a preserver clones one attribute class from src onto dst
type preserver func(dst, src string, fi os.FileInfo) error

// order matters: ownership and mode can strip our right to touch the
// earlier attributes, so xattr goes first and times last.
var preservers = []preserver{
	preserveXattr,
	preserveOwner,
	preserveMode,
	preserveTimes,
}

// preserveMeta clones xattr, uid/gid, mode and timestamps from src
// onto dst. Symlinks keep their own attributes; nothing here follows
// them.
func preserveMeta(dst, src string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return &OpError{"stat file", src, err}
	}

	for _, fp := range preservers {
		if err := fp(dst, src, fi); err != nil {
			return err
		}
	}
	return nil
}

func preserveXattr(dst, src string, _ os.FileInfo) error {
	names, err := xattr.LList(src)
	if err != nil {
		if errAny(err, unix.ENOTSUP) {
			return nil
		}
		return &OpError{"read xattr", src, err}
	}

	for _, nm := range names {
		val, err := xattr.LGet(src, nm)
		if err != nil {
			return &OpError{"read xattr", src, err}
		}
		if err = xattr.LSet(dst, nm, val); err != nil {
			if errAny(err, unix.ENOTSUP, unix.EPERM) {
				continue
			}
			return &OpError{"write xattr", dst, err}
		}
	}
	return nil
}

func preserveOwner(dst, _ string, fi os.FileInfo) error {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if err := os.Lchown(dst, int(st.Uid), int(st.Gid)); err != nil {
		if errAny(err, unix.EPERM) {
			return nil
		}
		return &OpError{"chown", dst, err}
	}
	return nil
}

func preserveMode(dst, _ string, fi os.FileInfo) error {
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil
	}
	if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
		return &OpError{"chmod", dst, err}
	}
	return nil
}

func preserveTimes(dst, _ string, fi os.FileInfo) error {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	ts := []unix.Timespec{
		unix.Timespec(st.Atim),
		unix.Timespec(st.Mtim),
	}
	err := unix.UtimesNanoAt(unix.AT_FDCWD, dst, ts, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		return &OpError{"set times", dst, err}
	}
	return nil
}
