// dirent_linux.go - raw getdents64 streaming
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
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// fileType tags what a directory entry is. The dirent usually carries
// it; DT_UNKNOWN filesystems force the cold statx path.
type fileType uint8

const (
	typeUnknown fileType = iota
	typeDir
	typeSymlink
	typeRegular
	typeOther
)

// dirent is one decoded directory entry.
type dirent struct {
	ino  uint64
	typ  fileType
	name string
}

// direntStream decodes linux_dirent64 records from an open directory,
// refilling from the caller's buffer. The buffer is reused across
// directories; one stream is live per worker at a time.
type direntStream struct {
	fd  int
	buf []byte
	pos int
	n   int
}

// next returns the next entry, skipping "." and "..". The boolean is
// false once the directory is exhausted.
func (ds *direntStream) next() (dirent, bool, error) {
	for {
		if ds.pos >= ds.n {
			n, err := unix.Getdents(ds.fd, ds.buf)
			if err != nil {
				return dirent{}, false, err
			}
			if n == 0 {
				return dirent{}, false, nil
			}
			ds.pos, ds.n = 0, n
		}

		// linux_dirent64: ino u64, off s64, reclen u16, type u8, name...
		rec := ds.buf[ds.pos:ds.n]
		ino := binary.NativeEndian.Uint64(rec[0:8])
		reclen := int(binary.NativeEndian.Uint16(rec[16:18]))
		typ := dtType(rec[18])
		name := rec[19:reclen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		ds.pos += reclen

		nm := string(name)
		if nm == "." || nm == ".." {
			continue
		}
		return dirent{ino: ino, typ: typ, name: nm}, true, nil
	}
}

func dtType(dt byte) fileType {
	switch dt {
	case unix.DT_DIR:
		return typeDir
	case unix.DT_LNK:
		return typeSymlink
	case unix.DT_REG:
		return typeRegular
	case unix.DT_UNKNOWN:
		return typeUnknown
	}
	return typeOther
}

// statType learns an entry's type the slow way. Rare enough that the
// extra syscall doesn't matter; only DT_UNKNOWN filesystems and
// dereferenced symlinks come through here.
func statType(dirfd int, name string, follow bool) (fileType, error) {
	var stx unix.Statx_t

	flags := unix.AT_SYMLINK_NOFOLLOW
	if follow {
		flags = 0
	}
	if err := unix.Statx(dirfd, name, flags, unix.STATX_TYPE, &stx); err != nil {
		return typeUnknown, err
	}

	switch stx.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return typeDir, nil
	case unix.S_IFLNK:
		return typeSymlink, nil
	case unix.S_IFREG:
		return typeRegular, nil
	}
	return typeOther, nil
}
