// node.go - per-directory task payloads
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
	"os"
	"sync/atomic"
	"syscall"
)

// removeNode is one pending directory in a remove. The parent pointer
// and the refs counter encode "this directory cannot be unlinked until
// all its contents are gone": every child holds a reference on its
// parent, and the holder of the last reference - leaf to root - issues
// the directory unlink on release.
//
// Exactly one removeNode exists per pending directory. A node is
// queued, then owned by one worker while it streams; children created
// during the stream keep it alive past the worker's return.
type removeNode struct {
	path   string
	parent *removeNode

	// children in flight, plus one for the streaming worker
	refs atomic.Int32
}

func newRemoveNode(path string, parent *removeNode) *removeNode {
	n := &removeNode{path: path, parent: parent}
	n.refs.Store(1)
	if parent != nil {
		parent.retain()
	}
	return n
}

func (n *removeNode) retain() {
	n.refs.Add(1)
}

// copyNode is one pending (from, to) directory pair in a copy. rootIno
// is the inode of the destination root, propagated unchanged to every
// descendant so workers can skip the destination when it shows up
// inside the source. Copy nodes need no parent chain; nothing happens
// to a directory after its contents are copied.
type copyNode struct {
	from    string
	to      string
	rootIno uint64
}

// inodeOf returns the inode number behind 'nm' (not following a final
// symlink).
func inodeOf(nm string) (uint64, error) {
	fi, err := os.Lstat(nm)
	if err != nil {
		return 0, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, nil
	}
	return st.Ino, nil
}
