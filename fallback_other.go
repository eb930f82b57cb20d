// fallback_other.go - portable data-parallel fallback engine
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

//go:build !linux

package fsz

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/xattr"
	"golang.org/x/sync/errgroup"
)

// Platforms without the raw syscall layer walk with the portable
// read-dir API and fan out across an errgroup per directory. Public
// semantics match the Linux engine, including destination-inode cycle
// prevention, with these differences: in hard-link mode a symlink entry
// is re-created rather than linked; multiply-linked source files are
// copied once per name rather than re-linked at the destination; and
// every call takes the full joined path, with no fallback for trees
// nested past the platform path limit.

type removeFallback struct{}

func newRemoveDirOp() directoryOp[*removeNode] {
	return removeFallback{}
}

func (removeFallback) run(n *removeNode) error { return removeTree(n.path) }
func (removeFallback) finish() error           { return nil }

func removeTree(dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return &OpError{"open directory", dir, err}
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, ent := range ents {
		g.Go(func() error {
			nm := filepath.Join(dir, ent.Name())
			if ent.IsDir() {
				return removeTree(nm)
			}
			if err := os.Remove(nm); err != nil {
				return &OpError{"delete file", nm, err}
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	if err = os.Remove(dir); err != nil {
		return &OpError{"delete directory", dir, err}
	}
	return nil
}

type copyFallback struct {
	op *CopyOp
}

func newCopyDirOp(op *CopyOp) directoryOp[*copyNode] {
	return &copyFallback{op: op}
}

func (c *copyFallback) run(n *copyNode) error {
	return c.copyTree(n.from, n.to, n.rootIno)
}
func (c *copyFallback) finish() error { return nil }

func (c *copyFallback) copyTree(from, to string, rootIno uint64) error {
	ents, err := os.ReadDir(from)
	if err != nil {
		return &OpError{"open directory", from, err}
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, ent := range ents {
		g.Go(func() error {
			return c.copyEntry(from, to, ent, rootIno)
		})
	}
	return g.Wait()
}

func (c *copyFallback) copyEntry(fromDir, toDir string, ent os.DirEntry, rootIno uint64) error {
	fromP := filepath.Join(fromDir, ent.Name())
	toP := filepath.Join(toDir, ent.Name())

	fi, err := os.Lstat(fromP)
	if err != nil {
		return &OpError{"read metadata", fromP, err}
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok && uint64(st.Ino) == rootIno {
		return nil
	}
	if c.op.FollowSymlinks && fi.Mode()&fs.ModeSymlink != 0 {
		if fi, err = os.Stat(fromP); err != nil {
			return &OpError{"read metadata", fromP, err}
		}
	}

	switch {
	case fi.IsDir():
		err := os.Mkdir(toP, fi.Mode().Perm())
		if err != nil && !errors.Is(err, fs.ErrExist) {
			return &OpError{"create directory", toP, err}
		}
		if err = c.copyTree(fromP, toP, rootIno); err != nil {
			return err
		}

	case fi.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(fromP)
		if err != nil {
			return &OpError{"read symlink", fromP, err}
		}
		err = os.Symlink(target, toP)
		if errors.Is(err, fs.ErrExist) && c.op.Force {
			if err = os.Remove(toP); err == nil {
				err = os.Symlink(target, toP)
			}
		}
		if err != nil {
			return &OpError{"create symlink", toP, err}
		}

	default:
		if c.op.HardLink {
			if err := os.Remove(toP); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return &OpError{"delete file", toP, err}
			}
			if err := linkPath(fromP, toP, c.op.FollowSymlinks); err != nil {
				return &OpError{"link file", toP, err}
			}
			return nil
		}
		if err := copyLeafPath(fromP, toP, fi); err != nil {
			return err
		}
	}

	if c.op.Preserve {
		return preserveMeta(toP, fromP)
	}
	return nil
}

// copyLeafPath copies one non-directory entry by path.
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

	_, cpErr := io.Copy(dst, src)
	cerr := dst.Close()
	if cpErr != nil {
		return &OpError{"copy file", from, cpErr}
	}
	if cerr != nil {
		return &OpError{"close file", to, cerr}
	}
	return nil
}

// linkPath hard-links a path; with follow, the source symlink is
// resolved first.
func linkPath(from, to string, follow bool) error {
	if follow {
		if tgt, err := filepath.EvalSymlinks(from); err == nil {
			from = tgt
		}
	}
	return os.Link(from, to)
}

// preserveMeta clones xattr, uid/gid, mode and modification time from
// src onto dst using portable calls.
func preserveMeta(dst, src string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return &OpError{"stat file", src, err}
	}

	if names, err := xattr.LList(src); err == nil {
		for _, nm := range names {
			val, err := xattr.LGet(src, nm)
			if err != nil {
				return &OpError{"read xattr", src, err}
			}
			if err = xattr.LSet(dst, nm, val); err != nil {
				break
			}
		}
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		if err := os.Lchown(dst, int(st.Uid), int(st.Gid)); err != nil && !os.IsPermission(err) {
			return &OpError{"chown", dst, err}
		}
	}

	if fi.Mode()&fs.ModeSymlink == 0 {
		if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
			return &OpError{"chmod", dst, err}
		}
		if err := os.Chtimes(dst, time.Time{}, fi.ModTime()); err != nil {
			return &OpError{"set times", dst, err}
		}
	}
	return nil
}
