// remove_linux.go - the parallel remove engine
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

	"golang.org/x/sys/unix"
)

// One worker per directory: open the parent once, stream raw dirents,
// unlink leaves in place, enqueue subdirectories. Directory unlinks
// are deferred through the node chain - the last task to finish under
// a directory removes it on the way up (removeNode.release).

type removeEngine struct {
	*engine[*removeNode, *workerState]
}

func newRemoveDirOp() directoryOp[*removeNode] {
	r := &removeEngine{}
	r.engine = newEngine(newWorkerState, func(st *workerState, n *removeNode) error {
		return r.removeDir(st, n)
	})
	return r
}

func (r *removeEngine) run(n *removeNode) error {
	return r.submit(n)
}

// release drops one reference to n. The holder of the last reference
// has seen every child finish: the directory is empty and goes now.
// Failures are forwarded through the engine's error channel - this
// runs on a worker's exit path and has no caller to return to.
func (n *removeNode) release(e *engine[*removeNode, *workerState]) {
	for node := n; node != nil; node = node.parent {
		if node.refs.Add(-1) != 0 {
			return
		}
		if err := unix.Unlinkat(unix.AT_FDCWD, node.path, unix.AT_REMOVEDIR); err != nil {
			e.error(&OpError{"delete directory", node.path, err})
		}
	}
}

func (r *removeEngine) removeDir(st *workerState, n *removeNode) error {
	defer n.release(r.engine)

	fd, err := unix.Openat(unix.AT_FDCWD, n.path,
		unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return &OpError{"open directory", n.path, err}
	}
	defer unix.Close(fd)

	// children survive an aborted stream; whatever was enqueued is
	// processed regardless of how this worker exits
	var children []*removeNode
	defer func() { r.enq(children) }()

	ds := direntStream{fd: fd, buf: st.dirbuf}
	for {
		ent, ok, err := ds.next()
		if err != nil {
			return &OpError{"read directory", n.path, err}
		}
		if !ok {
			return nil
		}

		typ := ent.typ
		if typ == typeUnknown {
			if typ, err = statType(fd, ent.name, false); err != nil {
				return &OpError{"stat file", joinDisplay(n.path, ent.name), err}
			}
		}

		if typ != typeDir {
			if err = unix.Unlinkat(fd, ent.name, 0); err != nil {
				return &OpError{"delete file", joinDisplay(n.path, ent.name), err}
			}
			continue
		}

		if tooLong(n.path, ent.name) {
			if err = removeLong(st, fd, n.path, ent.name); err != nil {
				return err
			}
			continue
		}
		children = append(children, newRemoveNode(concatPath(n.path, ent.name), n))
	}
}

// removeLong deletes a subdirectory whose joined path no longer fits
// in a syscall: swap this thread's cwd to the parent and take the
// recursive path on the short name.
func removeLong(st *workerState, dirfd int, parent, name string) error {
	err := st.chdirScope(dirfd, func() error {
		return os.RemoveAll(name)
	})
	if err != nil {
		return &OpError{"delete directory", joinDisplay(parent, name), err}
	}
	return nil
}
