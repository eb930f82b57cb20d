// unshare_linux.go - per-worker thread isolation
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
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// workerState is one worker's scratch space and thread identity. The
// worker pins its OS thread and detaches the thread's FD table and
// filesystem state (unshare) so the chdir-scoped long-path fallback is
// strictly thread-local. The goroutine never unpins - the runtime
// destroys the detached thread when the worker exits.
type workerState struct {
	dirbuf   []byte // getdents64 scratch, reused across directories
	linkbuf  []byte // readlinkat scratch
	unshared bool
}

// longPathMu serializes the chdir fallback across the process when
// unshare is not in effect.
var longPathMu sync.Mutex

func newWorkerState() *workerState {
	runtime.LockOSThread()

	st := &workerState{
		dirbuf:  make([]byte, 8192),
		linkbuf: make([]byte, 256),
	}

	// NO_UNSHARE and sandboxes that filter the syscall both land in
	// the serialized fallback instead of failing the operation
	if os.Getenv(NoUnshareEnv) == "" {
		if err := unix.Unshare(unix.CLONE_FILES | unix.CLONE_FS); err == nil {
			st.unshared = true
		}
	}
	return st
}

// chdirScope runs fn with the thread's working directory swapped to
// dirfd, restoring it on the way out.
func (st *workerState) chdirScope(dirfd int, fn func() error) error {
	if !st.unshared {
		longPathMu.Lock()
		defer longPathMu.Unlock()
	}

	cwd, err := unix.Open(".", unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(cwd)

	if err = unix.Fchdir(dirfd); err != nil {
		return err
	}
	defer unix.Fchdir(cwd)

	return fn()
}

// readlink reads the target of dirfd/name, growing the worker's
// scratch buffer until the target fits.
func (st *workerState) readlink(dirfd int, name string) (string, error) {
	for {
		n, err := unix.Readlinkat(dirfd, name, st.linkbuf)
		if err != nil {
			return "", err
		}
		if n < len(st.linkbuf) || len(st.linkbuf) >= pathMax {
			return string(st.linkbuf[:n]), nil
		}
		st.linkbuf = make([]byte, len(st.linkbuf)*2)
	}
}
