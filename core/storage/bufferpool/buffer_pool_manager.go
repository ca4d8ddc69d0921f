package bufferpool

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
)

// DefaultPoolSize bounds the number of resident frames when a caller
// passes a non-positive pool size.
const DefaultPoolSize = 64

var (
	ErrPoolFull      = errors.New("buffer pool is full and every frame is pinned")
	ErrPageNotPinned = errors.New("page is not pinned")
)

// BufferPoolManager caches pages of open database files in a fixed set of
// frames. A pinned frame is exclusively owned by the guards holding it and
// cannot be evicted; unpinned frames are reclaimed in LRU order. Dirty
// pages are written through to disk at unpin time, so unpinned frames are
// always clean and eviction never performs I/O.
type BufferPoolManager struct {
	poolSize  int
	pageSize  int
	frames    []*frame
	pageTable map[frameKey]int
	lruList   *list.List // frame indices, most recently used at the front
	mu        sync.Mutex
	log       *zap.Logger
	metrics   *Metrics
}

// NewBufferPoolManager creates a pool of poolSize frames of pageSize bytes
// each. logger and metrics may be nil.
func NewBufferPoolManager(poolSize, pageSize int, log *zap.Logger, metrics *Metrics) *BufferPoolManager {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if pageSize <= 0 {
		pageSize = disk.DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	bm := &BufferPoolManager{
		poolSize:  poolSize,
		pageSize:  pageSize,
		frames:    make([]*frame, poolSize),
		pageTable: make(map[frameKey]int),
		lruList:   list.New(),
		log:       log,
		metrics:   metrics,
	}
	for i := range bm.frames {
		bm.frames[i] = newFrame(pageSize)
	}
	return bm
}

// PageSize returns the pool's fixed page size.
func (bm *BufferPoolManager) PageSize() int { return bm.pageSize }

// Pin fetches page pageNo of dm into the pool, reading it from disk on a
// miss, and returns a guard holding the pin. The guard must be released
// on every exit path; until then the frame cannot be evicted.
func (bm *BufferPoolManager) Pin(dm *disk.DiskManager, pageNo disk.PageNo) (*PageGuard, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	key := frameKey{dm: dm, pageNo: pageNo}
	bm.metrics.addFetch()

	if idx, ok := bm.pageTable[key]; ok {
		f := bm.frames[idx]
		f.pinCount++
		if f.lruElem != nil {
			bm.lruList.MoveToFront(f.lruElem)
		}
		bm.metrics.addHit()
		return bm.newGuard(f), nil
	}

	idx, err := bm.victimLocked()
	if err != nil {
		return nil, err
	}
	f := bm.frames[idx]
	bm.evictLocked(idx)

	if err := dm.ReadPage(pageNo, f.data); err != nil {
		f.reset()
		return nil, err
	}
	bm.installLocked(idx, key)
	return bm.newGuard(f), nil
}

// AllocPage allocates a fresh page at the end of dm's file, pins it, and
// returns its guard pre-marked dirty together with the new page number.
func (bm *BufferPoolManager) AllocPage(dm *disk.DiskManager) (*PageGuard, disk.PageNo, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	idx, err := bm.victimLocked()
	if err != nil {
		return nil, disk.InvalidPageNo, err
	}

	pageNo, err := dm.AllocatePage()
	if err != nil {
		return nil, disk.InvalidPageNo, err
	}

	f := bm.frames[idx]
	bm.evictLocked(idx)
	// The page is zeroed on disk already; just zero the frame to match.
	for i := range f.data {
		f.data[i] = 0
	}
	bm.installLocked(idx, frameKey{dm: dm, pageNo: pageNo})

	g := bm.newGuard(f)
	g.dirty = true
	return g, pageNo, nil
}

// victimLocked finds a reusable frame: a never-used one if any remain,
// otherwise the least recently used unpinned frame. Must be called with
// bm.mu held.
func (bm *BufferPoolManager) victimLocked() (int, error) {
	for i, f := range bm.frames {
		if !f.valid {
			return i, nil
		}
	}
	for e := bm.lruList.Back(); e != nil; e = e.Prev() {
		idx := e.Value.(int)
		if bm.frames[idx].pinCount == 0 {
			return idx, nil
		}
	}
	return -1, ErrPoolFull
}

// evictLocked detaches the frame at idx from the page table and LRU list.
// Unpinned frames are clean by the write-through rule, so no I/O happens.
func (bm *BufferPoolManager) evictLocked(idx int) {
	f := bm.frames[idx]
	if f.valid {
		bm.log.Debug("evicting page",
			zap.Int32("page", int32(f.key.pageNo)),
			zap.Int("frame", idx))
		delete(bm.pageTable, f.key)
		if f.lruElem != nil {
			bm.lruList.Remove(f.lruElem)
		}
		bm.metrics.addEviction()
	}
	f.reset()
}

func (bm *BufferPoolManager) installLocked(idx int, key frameKey) {
	f := bm.frames[idx]
	f.key = key
	f.valid = true
	f.pinCount = 1
	f.lruElem = bm.lruList.PushFront(idx)
	bm.pageTable[key] = idx
}

// unpin drops one pin from the frame, writing the page through to disk
// first when dirty is set. The pin is released even when the write fails,
// so a failed unpin never leaks a frame; the write error is returned.
func (bm *BufferPoolManager) unpin(f *frame, dirty bool) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if !f.valid || f.pinCount == 0 {
		return fmt.Errorf("%w: page %d", ErrPageNotPinned, f.key.pageNo)
	}
	var werr error
	if dirty {
		werr = f.key.dm.WritePage(f.key.pageNo, f.data)
		if werr == nil {
			bm.metrics.addWriteBack()
		}
	}
	f.pinCount--
	return werr
}

// PinnedFrames reports the number of frames with a nonzero pin count.
// Useful to assert "no pin leaks" in tests and teardown checks.
func (bm *BufferPoolManager) PinnedFrames() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	n := 0
	for _, f := range bm.frames {
		if f.valid && f.pinCount > 0 {
			n++
		}
	}
	return n
}

func (bm *BufferPoolManager) newGuard(f *frame) *PageGuard {
	return &PageGuard{bm: bm, frame: f, pageNo: f.key.pageNo}
}

// PageGuard is the scoped owner of one pin on one page. Release is
// idempotent and must run on every exit path; after Release the guard's
// Data is gone and the underlying frame may be evicted or reused at any
// time.
type PageGuard struct {
	bm       *BufferPoolManager
	frame    *frame
	pageNo   disk.PageNo
	dirty    bool
	released bool
}

// PageNo returns the page number this guard pins.
func (g *PageGuard) PageNo() disk.PageNo { return g.pageNo }

// Data returns the pinned page bytes, or nil after Release.
func (g *PageGuard) Data() []byte {
	if g.released {
		return nil
	}
	return g.frame.data
}

// MarkDirty flags the page for write-through at Release.
func (g *PageGuard) MarkDirty() { g.dirty = true }

// Dirty reports whether the page will be written back at Release.
func (g *PageGuard) Dirty() bool { return g.dirty }

// Release drops the pin, writing the page to disk first when it is dirty.
// Calling Release more than once is safe and returns nil.
func (g *PageGuard) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	return g.bm.unpin(g.frame, g.dirty)
}
