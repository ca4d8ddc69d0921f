package heapfile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/heappage"
)

func TestInsert_RoundTrip(t *testing.T) {
	bm := newTestPool(t)
	path := newTestFile(t, bm)

	ins, err := OpenInsert(bm, path, zap.NewNop())
	require.NoError(t, err)

	rid, err := ins.InsertRecord([]byte("hello heap"))
	require.NoError(t, err)
	require.Equal(t, int32(1), ins.RecordCount())
	require.NoError(t, ins.Close())
	require.Equal(t, 0, bm.PinnedFrames())

	hf, err := Open(bm, path, zap.NewNop())
	require.NoError(t, err)
	defer hf.Close()
	rec, err := hf.GetRecord(rid)
	require.NoError(t, err)
	require.Equal(t, []byte("hello heap"), rec)
}

func TestInsert_OversizedRejectedWithoutMutation(t *testing.T) {
	bm := newTestPool(t)
	path := newTestFile(t, bm)
	insertAll(t, bm, path, [][]byte{[]byte("before")})

	ins, err := OpenInsert(bm, path, zap.NewNop())
	require.NoError(t, err)

	tooBig := make([]byte, heappage.MaxRecordSize(testPageSize)+1)
	_, err = ins.InsertRecord(tooBig)
	require.ErrorIs(t, err, ErrRecordTooLarge)
	require.Equal(t, int32(1), ins.RecordCount())

	// A maximum-size record is still accepted.
	rid, err := ins.InsertRecord(make([]byte, heappage.MaxRecordSize(testPageSize)))
	require.NoError(t, err)
	require.Equal(t, int32(2), ins.RecordCount())
	require.NoError(t, ins.Close())

	hf, err := Open(bm, path, zap.NewNop())
	require.NoError(t, err)
	defer hf.Close()
	rec, err := hf.GetRecord(rid)
	require.NoError(t, err)
	require.Len(t, rec, heappage.MaxRecordSize(testPageSize))
}

func TestInsert_OverflowGrowsChainByOnePage(t *testing.T) {
	bm := newTestPool(t)
	path := newTestFile(t, bm)

	ins, err := OpenInsert(bm, path, zap.NewNop())
	require.NoError(t, err)

	// Two 100-byte records fill the first data page; the third overflows.
	rec := func(i int) []byte { return []byte(fmt.Sprintf("%-100d", i)) }
	rid0, err := ins.InsertRecord(rec(0))
	require.NoError(t, err)
	rid1, err := ins.InsertRecord(rec(1))
	require.NoError(t, err)
	require.Equal(t, rid0.PageNo, rid1.PageNo)

	rid2, err := ins.InsertRecord(rec(2))
	require.NoError(t, err)
	require.NotEqual(t, rid0.PageNo, rid2.PageNo)
	require.Equal(t, int32(0), rid2.SlotNo)
	require.NoError(t, ins.Close())
	require.Equal(t, 0, bm.PinnedFrames())

	// Exactly one page was added: disk header, heap header, two data pages.
	dm, err := disk.OpenFile(path, testPageSize, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, uint64(4), dm.NumPages())
	require.NoError(t, dm.Close())

	// Records on the old tail keep their identifiers and bytes, and a full
	// scan sees all three in order across the boundary.
	s, err := OpenScan(bm, path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	for i, want := range []heappage.RID{rid0, rid1, rid2} {
		rid, err := s.Next()
		require.NoError(t, err)
		require.Equal(t, want, rid)
		got, err := s.CurrentRecord()
		require.NoError(t, err)
		require.Equal(t, rec(i), got)
	}
	_, err = s.Next()
	require.ErrorIs(t, err, ErrEndOfFile)
}

func TestInsert_ResumesOnTailAfterReopen(t *testing.T) {
	bm := newTestPool(t)
	path := newTestFile(t, bm)

	// First session grows the chain to two pages.
	first := insertAll(t, bm, path, [][]byte{
		[]byte(fmt.Sprintf("%-100d", 0)),
		[]byte(fmt.Sprintf("%-100d", 1)),
		[]byte(fmt.Sprintf("%-100d", 2)),
	})

	// A later cursor lands on the grown tail, not the first page.
	ins, err := OpenInsert(bm, path, zap.NewNop())
	require.NoError(t, err)
	rid, err := ins.InsertRecord([]byte("tail"))
	require.NoError(t, err)
	require.Equal(t, first[2].PageNo, rid.PageNo)
	require.Equal(t, int32(4), ins.RecordCount())
	require.NoError(t, ins.Close())
}

func TestInsert_EmptyRecordRejected(t *testing.T) {
	bm := newTestPool(t)
	path := newTestFile(t, bm)

	ins, err := OpenInsert(bm, path, zap.NewNop())
	require.NoError(t, err)
	defer ins.Close()

	_, err = ins.InsertRecord(nil)
	require.ErrorIs(t, err, heappage.ErrInvalidRecord)
	require.Equal(t, int32(0), ins.RecordCount())
}
