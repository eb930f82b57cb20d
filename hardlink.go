// hardlink.go - keeping multiply-linked files linked at the destination
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
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// We track hardlinked files using the source file's identity. The
// first sighting of an inode with nlink > 1 records where its bytes
// landed; every later sighting links against that first destination
// instead of copying the bytes again.
type hardlinker struct {
	m *xsync.MapOf[string, string]
}

func newHardlinker() *hardlinker {
	return &hardlinker{m: xsync.NewMapOf[string, string]()}
}

// seen records dst as the home of (dev, ino) and reports any earlier
// home. The destination file must exist before this is called: a
// racing worker that loses the LoadOrStore links against the winner's
// path right away.
func (h *hardlinker) seen(dev, ino uint64, dst string) (string, bool) {
	k := fmt.Sprintf("%d:%d", dev, ino)
	first, loaded := h.m.LoadOrStore(k, dst)
	if !loaded {
		return "", false
	}
	return first, true
}
