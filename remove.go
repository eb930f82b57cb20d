// remove.go - the remove operation
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
	"strings"
)

// RemoveOp removes files and directory trees. Non-directory roots are
// unlinked synchronously; directory roots are handed to the parallel
// engine. Symbolic links are never followed - the link itself goes.
type RemoveOp struct {
	Files []string

	// Force skips roots that do not exist.
	Force bool

	// NoPreserveRoot permits removing "/". Leave it alone.
	NoPreserveRoot bool
}

// RemoveFile removes the file or directory tree at 'path' with default
// options.
func RemoveFile(path string) error {
	op := &RemoveOp{Files: []string{path}}
	return op.Run()
}

// Run executes the remove. Roots are validated and dispatched in
// order; trees are walked in parallel. The returned error joins the
// pre-flight failure (if any) with everything the engine harvested,
// first failure first. Nothing is rolled back: a remove that failed
// halfway leaves a partially emptied tree.
func (op *RemoveOp) Run() error {
	eng := newRemoveDirOp()
	err := op.schedule(eng)
	return errors.Join(err, eng.finish())
}

func (op *RemoveOp) schedule(eng directoryOp[*removeNode]) error {
	for _, f := range op.Files {
		nm := strings.TrimSuffix(f, "/")
		if nm == "" {
			nm = "/"
		}
		if err := checkPath(nm); err != nil {
			return err
		}

		fi, err := os.Lstat(nm)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if op.Force {
					continue
				}
				return &NotFoundError{Path: nm}
			}
			return &OpError{"read metadata", nm, err}
		}

		if nm == "/" && !op.NoPreserveRoot {
			return ErrPreserveRoot
		}

		if fi.IsDir() {
			if err = eng.run(newRemoveNode(nm, nil)); err != nil {
				return err
			}
		} else if err = os.Remove(nm); err != nil {
			return &OpError{"delete file", nm, err}
		}
	}
	return nil
}
