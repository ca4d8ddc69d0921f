// Package bufferpool caches fixed-size pages of open database files in a
// bounded set of in-memory frames with LRU replacement. Callers access
// pages exclusively through PageGuard, which ties every pin to a release.
package bufferpool

import (
	"container/list"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
)

// frameKey identifies a cached page: which open file, which page in it.
type frameKey struct {
	dm     *disk.DiskManager
	pageNo disk.PageNo
}

// frame is one page-sized buffer slot in the pool.
type frame struct {
	key      frameKey
	valid    bool
	data     []byte
	pinCount uint32
	lruElem  *list.Element
}

func newFrame(pageSize int) *frame {
	return &frame{data: make([]byte, pageSize)}
}

func (f *frame) reset() {
	f.key = frameKey{}
	f.valid = false
	f.pinCount = 0
	f.lruElem = nil
	for i := range f.data {
		f.data[i] = 0
	}
}
