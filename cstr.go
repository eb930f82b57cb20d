// cstr.go - path primitives for the *at syscall layer
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
	"strings"
)

// pathMax is the longest byte path the syscall layer accepts,
// including the terminating NUL the kernel interface implies.
const pathMax = 4096

// checkPath validates that 'p' can cross the syscall boundary: the
// kernel terminates paths with NUL, so an interior NUL is unencodable.
func checkPath(p string) error {
	if strings.IndexByte(p, 0) >= 0 {
		return &BadPathError{Path: p}
	}
	return nil
}

// concatPath joins a directory prefix and an entry name with the
// platform separator; a prefix that already ends in one (the root "/")
// gets no second separator. Exactly one allocation.
func concatPath(prefix, name string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + len(name))
	b.WriteString(prefix)
	if !strings.HasSuffix(prefix, "/") {
		b.WriteByte('/')
	}
	b.WriteString(name)
	return b.String()
}

// tooLong reports whether the joined child path would exceed the
// platform limit (the +1 accounts for the NUL terminator).
func tooLong(prefix, name string) bool {
	return len(prefix)+1+len(name)+1 > pathMax
}

// joinDisplay is concatPath for error messages only; it never feeds a
// syscall.
func joinDisplay(prefix, name string) string {
	return concatPath(prefix, name)
}
