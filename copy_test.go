package fsz

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

// cmpTree requires every entry under a to appear under b with the same
// type: regular file bytes and permission bits, and symlink targets.
// Extra entries under b are not checked.
func cmpTree(t *testing.T, a, b string) {
	t.Helper()

	err := filepath.WalkDir(a, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)

		rel, err := filepath.Rel(a, p)
		require.NoError(t, err)
		q := filepath.Join(b, rel)

		afi, err := os.Lstat(p)
		require.NoError(t, err)
		bfi, err := os.Lstat(q)
		require.NoError(t, err, "missing in copy: %s", rel)

		require.Equal(t, afi.Mode().Type(), bfi.Mode().Type(), "type mismatch: %s", rel)

		switch {
		case afi.Mode().IsRegular():
			want, err := os.ReadFile(p)
			require.NoError(t, err)
			got, err := os.ReadFile(q)
			require.NoError(t, err)
			require.Equal(t, want, got, "content mismatch: %s", rel)
			require.Equal(t, afi.Mode().Perm(), bfi.Mode().Perm(), "mode mismatch: %s", rel)

		case afi.Mode()&fs.ModeSymlink != 0:
			want, err := os.Readlink(p)
			require.NoError(t, err)
			got, err := os.Readlink(q)
			require.NoError(t, err)
			require.Equal(t, want, got, "target mismatch: %s", rel)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCopySingleFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	require.NoError(t, mkfilex(src, "payload"))
	require.NoError(t, os.Chmod(src, 0640))

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))

	fi, err := os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0640), fi.Mode().Perm())

	// source untouched
	require.FileExists(t, src)
}

func TestCopyTree(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	mktree(t, src)

	require.NoError(t, CopyFile(src, dst))
	cmpTree(t, src, dst)
}

func TestCopyAlreadyExists(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	require.NoError(t, mkfilex(src, "x"))
	require.NoError(t, mkfilex(dst, "y"))

	err := CopyFile(src, dst)
	var ex *ExistsError
	require.ErrorAs(t, err, &ex)
	require.Equal(t, dst, ex.Path)
}

func TestCopyDanglingSymlinkCountsAsExisting(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	require.NoError(t, mkfilex(src, "x"))
	require.NoError(t, os.Symlink("no-such-target", dst))

	err := CopyFile(src, dst)
	var ex *ExistsError
	require.ErrorAs(t, err, &ex)
}

func TestCopyForceOverwrite(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	require.NoError(t, mkfilex(src, "new"))
	require.NoError(t, mkfilex(dst, "old old old"))

	op := &CopyOp{Files: []CopyPair{{From: src, To: dst}}, Force: true}
	require.NoError(t, op.Run())

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}

func TestCopyForceMergesDirs(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	mktree(t, src)
	require.NoError(t, mkfilex(filepath.Join(dst, "extra"), "keep me"))

	op := &CopyOp{Files: []CopyPair{{From: src, To: dst}}, Force: true}
	require.NoError(t, op.Run())

	cmpTree(t, src, filepath.Join(dst))
	require.FileExists(t, filepath.Join(dst, "extra"))
}

func TestCopyIdempotentWithForce(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dst := filepath.Join(tmp, "dst")
	mktree(t, src)

	op := &CopyOp{Files: []CopyPair{{From: src, To: dst}}, Force: true}
	require.NoError(t, op.Run())
	require.NoError(t, op.Run())
	cmpTree(t, src, dst)
}

// copying a directory into itself must terminate and exclude the
// destination from the walk
func TestCopyIntoSelf(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	require.NoError(t, mkfilex(filepath.Join(src, "x"), "1"))
	require.NoError(t, mkfilex(filepath.Join(src, "y"), "2"))

	nested := filepath.Join(src, "nested")
	require.NoError(t, CopyFile(src, nested))

	for _, nm := range []string{"x", "y"} {
		require.FileExists(t, filepath.Join(src, nm))
		require.FileExists(t, filepath.Join(nested, nm))
	}
	require.NoDirExists(t, filepath.Join(nested, "nested"))
}

func TestCopyFollowSymlinks(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "dir")
	require.NoError(t, mkfilex(filepath.Join(dir, "file"), "the bytes"))
	require.NoError(t, os.Symlink("file", filepath.Join(dir, "link")))

	dir2 := filepath.Join(tmp, "dir2")
	op := &CopyOp{Files: []CopyPair{{From: dir, To: dir2}}, FollowSymlinks: true}
	require.NoError(t, op.Run())

	fi, err := os.Lstat(filepath.Join(dir2, "link"))
	require.NoError(t, err)
	require.True(t, fi.Mode().IsRegular(), "link was not dereferenced")

	got, err := os.ReadFile(filepath.Join(dir2, "link"))
	require.NoError(t, err)
	require.Equal(t, "the bytes", string(got))
}

func TestCopyHardLinkMode(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	require.NoError(t, mkfilex(filepath.Join(src, "f"), "linked"))

	dst := filepath.Join(tmp, "dst")
	op := &CopyOp{Files: []CopyPair{{From: src, To: dst}}, HardLink: true}
	require.NoError(t, op.Run())

	afi, err := os.Stat(filepath.Join(src, "f"))
	require.NoError(t, err)
	bfi, err := os.Stat(filepath.Join(dst, "f"))
	require.NoError(t, err)
	require.True(t, os.SameFile(afi, bfi), "expected one inode behind both names")
}

// multiply-linked source files stay linked at the destination instead
// of being copied twice
func TestCopyPreservesHardlinks(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	require.NoError(t, mkfilex(filepath.Join(src, "a"), "shared"))
	require.NoError(t, os.Link(filepath.Join(src, "a"), filepath.Join(src, "b")))

	dst := filepath.Join(tmp, "dst")
	require.NoError(t, CopyFile(src, dst))

	afi, err := os.Stat(filepath.Join(dst, "a"))
	require.NoError(t, err)
	bfi, err := os.Stat(filepath.Join(dst, "b"))
	require.NoError(t, err)
	require.True(t, os.SameFile(afi, bfi), "hardlink not preserved")

	got, err := os.ReadFile(filepath.Join(dst, "b"))
	require.NoError(t, err)
	require.Equal(t, "shared", string(got))
}

func TestCopyPreserveMetadata(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	require.NoError(t, mkfilex(filepath.Join(src, "f"), "x"))
	require.NoError(t, os.Chmod(filepath.Join(src, "f"), 0604))

	past := time.Unix(1600000000, 0)
	require.NoError(t, os.Chtimes(filepath.Join(src, "f"), past, past))

	dst := filepath.Join(tmp, "dst")
	op := &CopyOp{Files: []CopyPair{{From: src, To: dst}}, Preserve: true}
	require.NoError(t, op.Run())

	fi, err := os.Stat(filepath.Join(dst, "f"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0604), fi.Mode().Perm())
	require.True(t, fi.ModTime().Equal(past), "mtime: want %s, saw %s", past, fi.ModTime())
}

func TestCopyMissingSource(t *testing.T) {
	tmp := t.TempDir()
	err := CopyFile(filepath.Join(tmp, "missing"), filepath.Join(tmp, "dst"))

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCopyBadPath(t *testing.T) {
	err := CopyFile("bad\x00path", "dst")
	var bp *BadPathError
	require.ErrorAs(t, err, &bp)
}

func TestCopyWideTree(t *testing.T) {
	defer leaktest.Check(t)()

	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	for i := 0; i < 16; i++ {
		d := filepath.Join(src, fmt.Sprintf("d%02d", i))
		for j := 0; j < 32; j++ {
			require.NoError(t, mkfilex(filepath.Join(d, fmt.Sprintf("f%03d", j)), fmt.Sprintf("%d-%d", i, j)))
		}
	}

	dst := filepath.Join(tmp, "dst")
	require.NoError(t, CopyFile(src, dst))
	cmpTree(t, src, dst)
}

func TestCopyMultipleRoots(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a")
	b := filepath.Join(tmp, "b")
	mktree(t, a)
	require.NoError(t, mkfilex(b, "plain file"))

	op := &CopyOp{Files: []CopyPair{
		{From: a, To: filepath.Join(tmp, "out", "a")},
		{From: b, To: filepath.Join(tmp, "out", "b")},
	}}
	require.NoError(t, op.Run())

	cmpTree(t, a, filepath.Join(tmp, "out", "a"))
	require.FileExists(t, filepath.Join(tmp, "out", "b"))
}
