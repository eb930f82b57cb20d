package fsz

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

func TestRemoveRegularFile(t *testing.T) {
	tmp := t.TempDir()
	fn := filepath.Join(tmp, "file")
	require.NoError(t, mkfilex(fn, "data"))

	require.NoError(t, RemoveFile(fn))
	require.NoFileExists(t, fn)
	require.DirExists(t, tmp)
}

func TestRemoveEmptyDir(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "dir")
	require.NoError(t, os.Mkdir(dir, 0755))

	require.NoError(t, RemoveFile(dir))
	require.NoDirExists(t, dir)
	require.DirExists(t, tmp)
}

func TestRemoveTree(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	mktree(t, root)

	require.NoError(t, RemoveFile(root))
	require.NoDirExists(t, root)
	require.DirExists(t, tmp)
}

func TestRemoveTrailingSlash(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	mktree(t, root)

	require.NoError(t, RemoveFile(root+"/"))
	require.NoDirExists(t, root)
}

func TestRemoveNotFound(t *testing.T) {
	tmp := t.TempDir()
	nm := filepath.Join(tmp, "missing")

	err := RemoveFile(nm)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, nm, nf.Path)

	op := &RemoveOp{Files: []string{nm}, Force: true}
	require.NoError(t, op.Run())
}

func TestRemovePreserveRoot(t *testing.T) {
	op := &RemoveOp{Files: []string{"/"}}
	require.ErrorIs(t, op.Run(), ErrPreserveRoot)
}

func TestRemoveSymlinkNotFollowed(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "target")
	require.NoError(t, mkfilex(filepath.Join(target, "keep"), "x"))

	link := filepath.Join(tmp, "link")
	require.NoError(t, os.Symlink(target, link))

	require.NoError(t, RemoveFile(link))
	require.NoFileExists(t, link)
	require.FileExists(t, filepath.Join(target, "keep"))
}

func TestRemoveBadPath(t *testing.T) {
	err := RemoveFile("bad\x00path")
	var bp *BadPathError
	require.ErrorAs(t, err, &bp)
}

func TestRemoveManyRoots(t *testing.T) {
	tmp := t.TempDir()
	var roots []string
	for i := 0; i < 8; i++ {
		root := filepath.Join(tmp, fmt.Sprintf("r%d", i))
		mktree(t, root)
		roots = append(roots, root)
	}

	op := &RemoveOp{Files: roots}
	require.NoError(t, op.Run())
	for _, root := range roots {
		require.NoDirExists(t, root)
	}
}

func TestRemoveWideTree(t *testing.T) {
	defer leaktest.Check(t)()

	root := filepath.Join(t.TempDir(), "wide")
	for i := 0; i < 32; i++ {
		d := filepath.Join(root, fmt.Sprintf("d%02d", i), "sub")
		require.NoError(t, os.MkdirAll(d, 0755))
		for j := 0; j < 64; j++ {
			require.NoError(t, mkfilex(filepath.Join(d, fmt.Sprintf("f%03d", j)), "x"))
		}
	}

	require.NoError(t, RemoveFile(root))
	require.NoDirExists(t, root)
}

// a tree nested past the syscall path limit exercises the chdir-scoped
// fallback
func TestRemoveDeepTree(t *testing.T) {
	tmp := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(wd)

	seg := strings.Repeat("d", 200)
	require.NoError(t, os.Chdir(tmp))
	for i := 0; i < 30; i++ {
		require.NoError(t, os.Mkdir(seg, 0755))
		require.NoError(t, os.Chdir(seg))
	}
	fd, err := os.Create("leaf")
	require.NoError(t, err)
	require.NoError(t, fd.Close())
	require.NoError(t, os.Chdir(wd))

	require.NoError(t, RemoveFile(filepath.Join(tmp, seg)))
	require.NoDirExists(t, filepath.Join(tmp, seg))
}

func TestRemoveErrorKeepsGoing(t *testing.T) {
	// a root that fails mid-walk must not wedge the engine
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	mktree(t, root)

	locked := filepath.Join(root, "locked")
	require.NoError(t, mkfilex(filepath.Join(locked, "f"), "x"))
	require.NoError(t, os.Chmod(locked, 0000))
	defer os.Chmod(locked, 0755)

	err := RemoveFile(root)
	if os.Getuid() == 0 {
		// root ignores permission bits; nothing to observe
		require.NoError(t, err)
		return
	}
	require.Error(t, err)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
}
