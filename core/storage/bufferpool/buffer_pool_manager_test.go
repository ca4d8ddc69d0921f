package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
)

const testPageSize = 256

func newTestFile(t *testing.T, pages int) *disk.DiskManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, disk.CreateFile(path, testPageSize))
	dm, err := disk.OpenFile(path, testPageSize, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	for i := 0; i < pages; i++ {
		_, err := dm.AllocatePage()
		require.NoError(t, err)
	}
	return dm
}

func TestBufferPool_PinMissReadsFromDisk(t *testing.T) {
	dm := newTestFile(t, 1)
	page := make([]byte, testPageSize)
	for i := range page {
		page[i] = 0xAB
	}
	require.NoError(t, dm.WritePage(1, page))

	bm := NewBufferPoolManager(4, testPageSize, zap.NewNop(), nil)
	g, err := bm.Pin(dm, 1)
	require.NoError(t, err)
	defer g.Release()

	require.Equal(t, disk.PageNo(1), g.PageNo())
	require.Equal(t, page, g.Data())
	require.Equal(t, 1, bm.PinnedFrames())
}

func TestBufferPool_PinHitSharesFrame(t *testing.T) {
	dm := newTestFile(t, 1)
	bm := NewBufferPoolManager(4, testPageSize, zap.NewNop(), nil)

	g1, err := bm.Pin(dm, 1)
	require.NoError(t, err)
	g2, err := bm.Pin(dm, 1)
	require.NoError(t, err)

	// Both guards see the same frame memory.
	g1.Data()[0] = 0x42
	require.Equal(t, byte(0x42), g2.Data()[0])
	require.Equal(t, 1, bm.PinnedFrames())

	require.NoError(t, g1.Release())
	require.Equal(t, 1, bm.PinnedFrames())
	require.NoError(t, g2.Release())
	require.Equal(t, 0, bm.PinnedFrames())
}

func TestBufferPool_DirtyUnpinWritesThrough(t *testing.T) {
	dm := newTestFile(t, 1)
	bm := NewBufferPoolManager(4, testPageSize, zap.NewNop(), nil)

	g, err := bm.Pin(dm, 1)
	require.NoError(t, err)
	g.Data()[10] = 0x99
	g.MarkDirty()
	require.NoError(t, g.Release())

	// The change is on disk immediately, without any flush call.
	buf := make([]byte, testPageSize)
	require.NoError(t, dm.ReadPage(1, buf))
	require.Equal(t, byte(0x99), buf[10])
}

func TestBufferPool_CleanUnpinDoesNotWrite(t *testing.T) {
	dm := newTestFile(t, 1)
	bm := NewBufferPoolManager(4, testPageSize, zap.NewNop(), nil)

	g, err := bm.Pin(dm, 1)
	require.NoError(t, err)
	g.Data()[10] = 0x99 // modified but never marked dirty
	require.NoError(t, g.Release())

	buf := make([]byte, testPageSize)
	require.NoError(t, dm.ReadPage(1, buf))
	require.Equal(t, byte(0), buf[10])
}

func TestBufferPool_EvictsLRUVictim(t *testing.T) {
	dm := newTestFile(t, 3)
	bm := NewBufferPoolManager(2, testPageSize, zap.NewNop(), nil)

	for _, pageNo := range []disk.PageNo{1, 2} {
		g, err := bm.Pin(dm, pageNo)
		require.NoError(t, err)
		require.NoError(t, g.Release())
	}

	// Pinning a third page evicts page 1, the least recently used.
	g, err := bm.Pin(dm, 3)
	require.NoError(t, err)
	require.NoError(t, g.Release())

	// All three pages are still readable; evicted ones are re-fetched.
	for _, pageNo := range []disk.PageNo{1, 2, 3} {
		g, err := bm.Pin(dm, pageNo)
		require.NoError(t, err)
		require.NoError(t, g.Release())
	}
}

func TestBufferPool_FullWhenAllPinned(t *testing.T) {
	dm := newTestFile(t, 3)
	bm := NewBufferPoolManager(2, testPageSize, zap.NewNop(), nil)

	g1, err := bm.Pin(dm, 1)
	require.NoError(t, err)
	defer g1.Release()
	g2, err := bm.Pin(dm, 2)
	require.NoError(t, err)
	defer g2.Release()

	_, err = bm.Pin(dm, 3)
	require.ErrorIs(t, err, ErrPoolFull)

	// Releasing one pin frees a frame for the blocked page.
	require.NoError(t, g1.Release())
	g3, err := bm.Pin(dm, 3)
	require.NoError(t, err)
	require.NoError(t, g3.Release())
}

func TestBufferPool_AllocPage(t *testing.T) {
	dm := newTestFile(t, 0)
	bm := NewBufferPoolManager(4, testPageSize, zap.NewNop(), nil)

	g, pageNo, err := bm.AllocPage(dm)
	require.NoError(t, err)
	require.Equal(t, disk.PageNo(1), pageNo)
	require.True(t, g.Dirty())
	require.Len(t, g.Data(), testPageSize)

	g.Data()[0] = 0x11
	require.NoError(t, g.Release())

	buf := make([]byte, testPageSize)
	require.NoError(t, dm.ReadPage(1, buf))
	require.Equal(t, byte(0x11), buf[0])
}

func TestPageGuard_ReleaseIdempotent(t *testing.T) {
	dm := newTestFile(t, 1)
	bm := NewBufferPoolManager(4, testPageSize, zap.NewNop(), nil)

	g, err := bm.Pin(dm, 1)
	require.NoError(t, err)
	require.NotNil(t, g.Data())

	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	require.Nil(t, g.Data())
	require.Equal(t, 0, bm.PinnedFrames())
}
