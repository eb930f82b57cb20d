// fsz.go - package doc and shared knobs
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

// Package fsz copies and removes directory trees much faster than the
// stock utilities. Both operations share a parallel directory-walk
// engine: a pool of workers consumes per-directory tasks from an
// unbounded FIFO, each worker holding a single open handle to its
// directory and issuing directory-relative (*at) syscalls for every
// entry. Subdirectories become new tasks; files are unlinked or copied
// in place.
//
// The public surface is two operation builders - CopyOp and RemoveOp -
// plus the CopyFile and RemoveFile conveniences.
package fsz

import "runtime"

// NoUnshareEnv, when set in the environment (any value), disables the
// per-worker unshare(2) call on Linux. Sandboxed environments that
// filter unshare need this; the long-path fallback then serializes on a
// process-global lock instead.
const NoUnshareEnv = "NO_UNSHARE"

// maxWorkers returns the worker cap for one engine: the coordinator
// plus this many workers never exceed the available parallelism.
func maxWorkers() int {
	return runtime.NumCPU() - 1
}
