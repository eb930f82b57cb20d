// copy_linux.go - the parallel copy engine
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

	"golang.org/x/sys/unix"
)

// copyEngine drives parallel tree copies. Options are frozen at
// construction; workers share a hardlinker so multiply-linked source
// files stay linked at the destination.
type copyEngine struct {
	*engine[*copyNode, *workerState]

	force    bool
	follow   bool
	link     bool
	preserve bool

	links *hardlinker
}

func newCopyDirOp(op *CopyOp) directoryOp[*copyNode] {
	ce := &copyEngine{
		force:    op.Force,
		follow:   op.FollowSymlinks,
		link:     op.HardLink,
		preserve: op.Preserve,
		links:    newHardlinker(),
	}
	ce.engine = newEngine(newWorkerState, func(st *workerState, n *copyNode) error {
		return ce.copyDir(st, n)
	})
	return ce
}

func (ce *copyEngine) run(n *copyNode) error {
	return ce.submit(n)
}

// copyDir copies the contents of one directory: a read handle on the
// source side, a path handle on the destination side, and every entry
// dispatched relative to the two.
func (ce *copyEngine) copyDir(st *workerState, n *copyNode) error {
	oflags := unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC
	if !ce.follow {
		oflags |= unix.O_NOFOLLOW
	}
	fromFd, err := unix.Openat(unix.AT_FDCWD, n.from, oflags, 0)
	if err != nil {
		return &OpError{"open directory", n.from, err}
	}
	defer unix.Close(fromFd)

	toFd, err := unix.Openat(unix.AT_FDCWD, n.to,
		unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &OpError{"open directory", n.to, err}
	}
	defer unix.Close(toFd)

	var children []*copyNode
	defer func() { ce.enq(children) }()

	// one EXDEV switches the rest of this directory to byte copies
	crossDev := false

	ds := direntStream{fd: fromFd, buf: st.dirbuf}
	for {
		ent, ok, err := ds.next()
		if err != nil {
			return &OpError{"read directory", n.from, err}
		}
		if !ok {
			return nil
		}

		// the destination root surfacing inside the source: this is
		// where "cpz src src/sub" would otherwise descend forever
		if ent.ino == n.rootIno {
			continue
		}

		typ := ent.typ
		if typ == typeUnknown || (typ == typeSymlink && ce.follow) {
			if typ, err = statType(fromFd, ent.name, ce.follow); err != nil {
				return &OpError{"stat file", joinDisplay(n.from, ent.name), err}
			}
		}

		switch typ {
		case typeDir:
			if tooLong(n.from, ent.name) || tooLong(n.to, ent.name) {
				err = ce.copyLong(st, fromFd, toFd, n.from, n.to, ent.name, n.rootIno)
				if err != nil {
					return err
				}
				continue
			}
			if err = ce.mkdirChild(fromFd, toFd, n.from, n.to, ent.name); err != nil {
				return err
			}
			children = append(children, &copyNode{
				from:    concatPath(n.from, ent.name),
				to:      concatPath(n.to, ent.name),
				rootIno: n.rootIno,
			})
			continue

		case typeSymlink:
			err = ce.copyLink(st, fromFd, toFd, n.from, n.to, ent.name)

		case typeRegular:
			if ce.link {
				err = ce.hardLink(fromFd, toFd, n.to, ent.name)
			} else {
				err = ce.copyRegular(fromFd, toFd, n.from, n.to, ent.name, &crossDev)
			}

		default:
			if ce.link {
				err = ce.hardLink(fromFd, toFd, n.to, ent.name)
			} else {
				err = ce.copySpecial(fromFd, toFd, n.from, n.to, ent.name)
			}
		}
		if err != nil {
			return err
		}

		if ce.preserve && !ce.link {
			err = preserveMeta(concatPath(n.to, ent.name), concatPath(n.from, ent.name))
			if err != nil {
				return err
			}
		}
	}
}

// mkdirChild creates to/name with from/name's mode. EEXIST is fine:
// with force we merge into existing trees, and without it an inner
// duplicate means an external writer raced us - either way the walk
// keeps moving.
func (ce *copyEngine) mkdirChild(fromFd, toFd int, fromDir, toDir, name string) error {
	var stx unix.Statx_t

	flags := unix.AT_SYMLINK_NOFOLLOW
	if ce.follow {
		flags = 0
	}
	if err := unix.Statx(fromFd, name, flags, unix.STATX_MODE, &stx); err != nil {
		return &OpError{"stat directory", joinDisplay(fromDir, name), err}
	}

	mode := uint32(stx.Mode) & 07777
	err := unix.Mkdirat(toFd, name, mode)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return &OpError{"create directory", joinDisplay(toDir, name), err}
	}

	if ce.preserve {
		return preserveMeta(joinDisplay(toDir, name), joinDisplay(fromDir, name))
	}
	return nil
}

// copyLink re-creates a symlink on the destination side; in link mode
// the link itself is hard-linked instead.
func (ce *copyEngine) copyLink(st *workerState, fromFd, toFd int, fromDir, toDir, name string) error {
	if ce.link {
		return ce.hardLink(fromFd, toFd, toDir, name)
	}

	target, err := st.readlink(fromFd, name)
	if err != nil {
		return &OpError{"read symlink", joinDisplay(fromDir, name), err}
	}

	err = unix.Symlinkat(target, toFd, name)
	if errors.Is(err, unix.EEXIST) && ce.force {
		if err = unix.Unlinkat(toFd, name, 0); err == nil {
			err = unix.Symlinkat(target, toFd, name)
		}
	}
	if err != nil {
		return &OpError{"create symlink", joinDisplay(toDir, name), err}
	}
	return nil
}

// hardLink implements link mode for one non-directory entry: drop any
// existing destination entry, then link. The link follows a source
// symlink only when the copy as a whole dereferences.
func (ce *copyEngine) hardLink(fromFd, toFd int, toDir, name string) error {
	err := unix.Unlinkat(toFd, name, 0)
	if err != nil && !errors.Is(err, unix.ENOENT) {
		return &OpError{"delete file", joinDisplay(toDir, name), err}
	}

	var flags int
	if ce.follow {
		flags = unix.AT_SYMLINK_FOLLOW
	}
	if err = unix.Linkat(fromFd, name, toFd, name, flags); err != nil {
		return &OpError{"link file", joinDisplay(toDir, name), err}
	}
	return nil
}

// copyRegular clones one regular file: mode and size captured up
// front, destination created with the source's mode, bytes moved by
// copy_file_range with a byte-wise fallback once the directory is
// known to straddle devices.
func (ce *copyEngine) copyRegular(fromFd, toFd int, fromDir, toDir, name string, crossDev *bool) error {
	fromPath := joinDisplay(fromDir, name)
	toPath := joinDisplay(toDir, name)

	var stx unix.Statx_t
	flags := unix.AT_SYMLINK_NOFOLLOW
	if ce.follow {
		flags = 0
	}
	mask := unix.STATX_MODE | unix.STATX_SIZE | unix.STATX_INO | unix.STATX_NLINK
	if err := unix.Statx(fromFd, name, flags, mask, &stx); err != nil {
		return &OpError{"stat file", fromPath, err}
	}

	sfd, err := unix.Openat(fromFd, name, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &OpError{"open file", fromPath, err}
	}
	defer unix.Close(sfd)

	mode := uint32(stx.Mode) & 07777
	dfd, err := unix.Openat(toFd, name,
		unix.O_CREAT|unix.O_TRUNC|unix.O_WRONLY|unix.O_CLOEXEC, mode)
	if err != nil {
		return &OpError{"create file", toPath, err}
	}

	if stx.Nlink > 1 && len(toPath)+1 <= pathMax {
		dev := unix.Mkdev(stx.Dev_major, stx.Dev_minor)
		if first, seen := ce.links.seen(dev, stx.Ino, toPath); seen {
			// the inode already landed at 'first'; link it instead
			// of copying the bytes again
			unix.Close(dfd)
			if err = unix.Unlinkat(toFd, name, 0); err != nil {
				return &OpError{"delete file", toPath, err}
			}
			if err = unix.Linkat(unix.AT_FDCWD, first, toFd, name, 0); err != nil {
				return &OpError{"link file", toPath, err}
			}
			return nil
		}
	}

	size := int64(stx.Size)
	if *crossDev {
		err = copyBytes(sfd, dfd, size)
	} else {
		err = copyRange(sfd, dfd, size)
		if err == errCrossDev {
			*crossDev = true
			err = copyBytes(sfd, dfd, size)
		}
	}
	cerr := unix.Close(dfd)
	if err != nil {
		return &OpError{"copy file", fromPath, err}
	}
	if cerr != nil {
		return &OpError{"close file", toPath, cerr}
	}
	return nil
}

// copySpecial byte-copies a non-regular, non-symlink entry (fifo,
// socket, device node contents).
func (ce *copyEngine) copySpecial(fromFd, toFd int, fromDir, toDir, name string) error {
	fromPath := joinDisplay(fromDir, name)
	toPath := joinDisplay(toDir, name)

	var stx unix.Statx_t
	flags := unix.AT_SYMLINK_NOFOLLOW
	if ce.follow {
		flags = 0
	}
	if err := unix.Statx(fromFd, name, flags, unix.STATX_MODE, &stx); err != nil {
		return &OpError{"stat file", fromPath, err}
	}

	sfd, err := unix.Openat(fromFd, name, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &OpError{"open file", fromPath, err}
	}
	defer unix.Close(sfd)

	mode := uint32(stx.Mode) & 07777
	dfd, err := unix.Openat(toFd, name,
		unix.O_CREAT|unix.O_TRUNC|unix.O_WRONLY|unix.O_CLOEXEC, mode)
	if err != nil {
		return &OpError{"create file", toPath, err}
	}

	err = copyBytes(sfd, dfd, -1)
	cerr := unix.Close(dfd)
	if err != nil {
		return &OpError{"copy file", fromPath, err}
	}
	if cerr != nil {
		return &OpError{"close file", toPath, cerr}
	}
	return nil
}

// copyLong handles a subdirectory whose joined path no longer fits in
// a syscall: recurse with short, fd-relative names so the kernel never
// sees the full path. Cold path; one dirent buffer per level.
func (ce *copyEngine) copyLong(st *workerState, fromFd, toFd int, fromDir, toDir, name string, rootIno uint64) error {
	if err := ce.mkdirChild(fromFd, toFd, fromDir, toDir, name); err != nil {
		return err
	}

	fromP := joinDisplay(fromDir, name)
	toP := joinDisplay(toDir, name)

	oflags := unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC
	if !ce.follow {
		oflags |= unix.O_NOFOLLOW
	}
	subFrom, err := unix.Openat(fromFd, name, oflags, 0)
	if err != nil {
		return &OpError{"open directory", fromP, err}
	}
	defer unix.Close(subFrom)

	subTo, err := unix.Openat(toFd, name, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &OpError{"open directory", toP, err}
	}
	defer unix.Close(subTo)

	crossDev := false
	ds := direntStream{fd: subFrom, buf: make([]byte, 8192)}
	for {
		ent, ok, err := ds.next()
		if err != nil {
			return &OpError{"read directory", fromP, err}
		}
		if !ok {
			return nil
		}
		if ent.ino == rootIno {
			continue
		}

		typ := ent.typ
		if typ == typeUnknown || (typ == typeSymlink && ce.follow) {
			if typ, err = statType(subFrom, ent.name, ce.follow); err != nil {
				return &OpError{"stat file", joinDisplay(fromP, ent.name), err}
			}
		}

		switch typ {
		case typeDir:
			err = ce.copyLong(st, subFrom, subTo, fromP, toP, ent.name, rootIno)
		case typeSymlink:
			err = ce.copyLink(st, subFrom, subTo, fromP, toP, ent.name)
		case typeRegular:
			if ce.link {
				err = ce.hardLink(subFrom, subTo, toP, ent.name)
			} else {
				err = ce.copyRegular(subFrom, subTo, fromP, toP, ent.name, &crossDev)
			}
		default:
			if ce.link {
				err = ce.hardLink(subFrom, subTo, toP, ent.name)
			} else {
				err = ce.copySpecial(subFrom, subTo, fromP, toP, ent.name)
			}
		}
		if err != nil {
			return err
		}
	}
}
