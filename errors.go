// errors.go - descriptive errors for fsz
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
	"fmt"
)

// ErrPreserveRoot is returned when a remove target is exactly "/" and
// root preservation is in effect (the default).
var ErrPreserveRoot = errors.New("fsz: refusing to operate on '/'")

// ErrInternal signals an engine invariant violation (eg a send on a
// closed task queue). Seeing it is a bug in fsz, not in the caller.
var ErrInternal = errors.New("fsz: internal error, please report this")

// OpError represents a failed syscall or I/O operation. Op names the
// action that was attempted ("open directory", "delete file", ...) and
// Path the entry it was attempted on.
type OpError struct {
	Op   string
	Path string
	Err  error
}

// Error returns a string representation of OpError
func (e *OpError) Error() string {
	return fmt.Sprintf("fsz: failed to %s '%s': %s", e.Op, e.Path, e.Err.Error())
}

// Unwrap returns the underlying wrapped error
func (e *OpError) Unwrap() error {
	return e.Err
}

var _ error = &OpError{}

// NotFoundError is returned by remove when a root does not exist and
// force is off.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fsz: '%s' does not exist", e.Path)
}

var _ error = &NotFoundError{}

// ExistsError is returned by copy when the destination already exists
// and force is off. The check uses symlink metadata: a dangling symlink
// at the destination counts as existing.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("fsz: '%s' already exists", e.Path)
}

var _ error = &ExistsError{}

// BadPathError is returned when a caller supplied path contains an
// interior NUL and can't be handed to the kernel.
type BadPathError struct {
	Path string
}

func (e *BadPathError) Error() string {
	return fmt.Sprintf("fsz: path %q contains a NUL byte", e.Path)
}

var _ error = &BadPathError{}

// JoinError wraps a panic recovered from an engine worker.
type JoinError struct {
	Panic any
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("fsz: worker panic: %v", e.Panic)
}

var _ error = &JoinError{}

// errAny returns true if the target error 'err' matches
// any in the list 'errs'; and returns false otherwise
func errAny(err error, errs ...error) bool {
	for _, e := range errs {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
