// copyrange_linux.go - leaf copy primitives
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
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/opencoff/go-mmap"
	"golang.org/x/sys/unix"
)

// Byte copies move in chunks of _ioChunkSize
const _ioChunkSize = 256 * 1024

// Upper bound per copy_file_range request; the kernel clamps further.
const _maxCopyChunk = 1 << 30

// errCrossDev reports EXDEV at offset zero; the caller switches the
// rest of the directory to byte copies.
var errCrossDev = errors.New("cross-device copy")

// copyRange moves size bytes from sfd to dfd with copy_file_range(2).
// The size is captured once, before the loop: a zero return is EOF.
// That guards against both kernels that return early and spinning on
// files that grow mid-copy.
func copyRange(sfd, dfd int, size int64) error {
	var total int64
	for total < size {
		chunk := size - total
		if chunk > _maxCopyChunk {
			chunk = _maxCopyChunk
		}
		n, err := unix.CopyFileRange(sfd, nil, dfd, nil, int(chunk), 0)
		if err != nil {
			if errors.Is(err, unix.EXDEV) && total == 0 {
				return errCrossDev
			}
			return err
		}
		if n == 0 {
			break
		}
		total += int64(n)
	}
	return nil
}

// copyBytes is the fallback when copy_file_range can't serve: regular
// files straddling devices go through the source's pages via mmap, and
// special files (size < 0, unknowable) through a plain read/write
// loop. The raw fds stay owned by the caller; the os.File wrappers
// hold dups.
func copyBytes(sfd, dfd int, size int64) error {
	if size == 0 {
		return nil
	}
	if size < 0 {
		return streamCopy(sfd, dfd)
	}

	sdup, err := unix.Dup(sfd)
	if err != nil {
		return err
	}
	src := os.NewFile(uintptr(sdup), "mmap-src")
	defer src.Close()

	ddup, err := unix.Dup(dfd)
	if err != nil {
		return err
	}
	dst := os.NewFile(uintptr(ddup), "mmap-dst")
	defer dst.Close()

	_, err = mmap.Reader(src, func(b []byte) error {
		_, err := dst.Write(b)
		return err
	})
	return err
}

func streamCopy(sfd, dfd int) error {
	buf := make([]byte, _ioChunkSize)
	for {
		nr, err := unix.Read(sfd, buf)
		if err != nil {
			return err
		}
		if nr == 0 {
			return nil
		}
		for off := 0; off < nr; {
			nw, err := unix.Write(dfd, buf[off:nr])
			if err != nil {
				return err
			}
			off += nw
		}
	}
}

// copyLeafPath copies one non-directory root by path. fi describes the
// source, stat'ed per the operation's symlink policy.
func copyLeafPath(from, to string, fi fs.FileInfo) error {
	src, err := os.Open(from)
	if err != nil {
		return &OpError{"open file", from, err}
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return &OpError{"create file", to, err}
	}

	var cpErr error
	if fi.Mode().IsRegular() {
		cpErr = copyRange(int(src.Fd()), int(dst.Fd()), fi.Size())
		if cpErr == errCrossDev {
			cpErr = copyBytes(int(src.Fd()), int(dst.Fd()), fi.Size())
		}
	} else {
		_, cpErr = io.Copy(dst, src)
	}

	cerr := dst.Close()
	if cpErr != nil {
		return &OpError{"copy file", from, cpErr}
	}
	if cerr != nil {
		return &OpError{"close file", to, cerr}
	}
	return nil
}

// linkPath hard-links a root by path.
func linkPath(from, to string, follow bool) error {
	var flags int
	if follow {
		flags = unix.AT_SYMLINK_FOLLOW
	}
	return unix.Linkat(unix.AT_FDCWD, from, unix.AT_FDCWD, to, flags)
}
