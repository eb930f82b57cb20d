package fsz

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}

		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}

		s := fmt.Sprintf(msg, args...)
		t.Fatalf("\n%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

func mkfilex(fn string, content string) error {
	bn := filepath.Dir(fn)
	if err := os.MkdirAll(bn, 0755); err != nil {
		return fmt.Errorf("mkdir: %s: %w", bn, err)
	}

	fd, err := os.OpenFile(fn, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("creat: %s: %w", fn, err)
	}

	fd.Write([]byte(content))
	return fd.Close()
}

// mktree builds the standard fixture under root:
//
//	top          file "hello"
//	a/f1, a/f2   files
//	a/b/f3       file, mode 0600
//	empty/       empty directory
//	link         relative symlink to a/f1
func mktree(t *testing.T, root string) {
	assert := newAsserter(t)

	err := mkfilex(filepath.Join(root, "top"), "hello")
	assert(err == nil, "mkfile top: %s", err)

	err = mkfilex(filepath.Join(root, "a", "f1"), "one")
	assert(err == nil, "mkfile a/f1: %s", err)
	err = mkfilex(filepath.Join(root, "a", "f2"), "two")
	assert(err == nil, "mkfile a/f2: %s", err)

	f3 := filepath.Join(root, "a", "b", "f3")
	err = mkfilex(f3, "three")
	assert(err == nil, "mkfile a/b/f3: %s", err)
	err = os.Chmod(f3, 0600)
	assert(err == nil, "chmod a/b/f3: %s", err)

	err = os.MkdirAll(filepath.Join(root, "empty"), 0755)
	assert(err == nil, "mkdir empty: %s", err)

	err = os.Symlink("a/f1", filepath.Join(root, "link"))
	assert(err == nil, "symlink: %s", err)
}
