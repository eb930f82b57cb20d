// copy.go - the copy operation
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

package fsz

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CopyPair names one copy root: From is cloned to To.
type CopyPair struct {
	From string
	To   string
}

// CopyOp copies files and directory trees. The zero flags give the
// safe semantics: destinations must not exist, symlinks are copied as
// symlinks, file bytes are copied rather than linked.
type CopyOp struct {
	Files []CopyPair

	// Force overwrites existing destination files and merges into
	// existing destination directories.
	Force bool

	// FollowSymlinks copies the targets of symlinks instead of the
	// links themselves.
	FollowSymlinks bool

	// HardLink links destination entries against the source instead
	// of copying bytes. Directories are still traversed and created.
	HardLink bool

	// Preserve clones xattr, ownership, mode and timestamps onto
	// every copied entry.
	Preserve bool
}

// CopyFile copies the file or directory tree 'from' to 'to' with
// default options.
func CopyFile(from, to string) error {
	op := &CopyOp{Files: []CopyPair{{From: from, To: to}}}
	return op.Run()
}

// Run executes the copy. Roots are validated and dispatched in order;
// directory trees are walked in parallel. The returned error joins the
// pre-flight failure (if any) with everything the engine harvested,
// first failure first. Nothing is rolled back: a copy that failed
// halfway leaves a partially populated destination.
func (op *CopyOp) Run() error {
	eng := newCopyDirOp(op)
	err := op.schedule(eng)
	return errors.Join(err, eng.finish())
}

func (op *CopyOp) schedule(eng directoryOp[*copyNode]) error {
	for _, pair := range op.Files {
		from := strings.TrimSuffix(pair.From, "/")
		if from == "" {
			from = "/"
		}
		to := strings.TrimSuffix(pair.To, "/")
		if to == "" {
			to = "/"
		}
		if err := checkPath(from); err != nil {
			return err
		}
		if err := checkPath(to); err != nil {
			return err
		}

		// the pre-existence check deliberately uses symlink
		// metadata: a dangling symlink at the destination counts as
		// existing
		if !op.Force {
			switch _, err := os.Lstat(to); {
			case err == nil:
				return &ExistsError{Path: to}
			case !errors.Is(err, fs.ErrNotExist):
				return &OpError{"read metadata", to, err}
			}
		}

		fi, err := op.statRoot(from)
		if err != nil {
			return &OpError{"read metadata", from, err}
		}

		if parent := filepath.Dir(to); parent != "." && parent != "/" {
			if err = os.MkdirAll(parent, 0755); err != nil {
				return &OpError{"create directory", parent, err}
			}
		}

		switch {
		case fi.IsDir():
			err = op.copyDirRoot(eng, from, to, fi)
		case fi.Mode()&fs.ModeSymlink != 0:
			err = op.copyLinkRoot(from, to)
		default:
			err = op.copyLeafRoot(from, to, fi)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (op *CopyOp) statRoot(nm string) (fs.FileInfo, error) {
	if op.FollowSymlinks {
		return os.Stat(nm)
	}
	return os.Lstat(nm)
}

// copyDirRoot creates the destination root, records its inode so the
// walk can skip a destination that lives inside the source, and hands
// the pair to the engine.
func (op *CopyOp) copyDirRoot(eng directoryOp[*copyNode], from, to string, fi fs.FileInfo) error {
	err := os.Mkdir(to, fi.Mode().Perm())
	if err != nil && !(op.Force && errors.Is(err, fs.ErrExist)) {
		return &OpError{"create directory", to, err}
	}

	if op.Preserve {
		if err = preserveMeta(to, from); err != nil {
			return err
		}
	}

	ino, err := inodeOf(to)
	if err != nil {
		return &OpError{"read metadata", to, err}
	}
	return eng.run(&copyNode{from: from, to: to, rootIno: ino})
}

// copyLinkRoot re-creates (or hard-links) a symlink root. Only reached
// when the operation does not dereference.
func (op *CopyOp) copyLinkRoot(from, to string) error {
	if op.Force {
		if err := os.Remove(to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &OpError{"delete file", to, err}
		}
	}

	if op.HardLink {
		if err := linkPath(from, to, op.FollowSymlinks); err != nil {
			return &OpError{"link file", to, err}
		}
		return nil
	}

	target, err := os.Readlink(from)
	if err != nil {
		return &OpError{"read symlink", from, err}
	}
	if err = os.Symlink(target, to); err != nil {
		return &OpError{"create symlink", to, err}
	}

	if op.Preserve {
		return preserveMeta(to, from)
	}
	return nil
}

// copyLeafRoot copies a regular or special file root.
func (op *CopyOp) copyLeafRoot(from, to string, fi fs.FileInfo) error {
	if op.Force && op.HardLink {
		if err := os.Remove(to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &OpError{"delete file", to, err}
		}
	}

	if op.HardLink {
		if err := linkPath(from, to, op.FollowSymlinks); err != nil {
			return &OpError{"link file", to, err}
		}
		return nil
	}

	if err := copyLeafPath(from, to, fi); err != nil {
		return err
	}
	if op.Preserve {
		return preserveMeta(to, from)
	}
	return nil
}
