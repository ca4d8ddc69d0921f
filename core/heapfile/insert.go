package heapfile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/bufferpool"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/heappage"
)

// InsertFileScan appends records to a heap file. It stays positioned on
// the chain's last page and grows the chain by one page whenever the
// tail fills up.
type InsertFileScan struct {
	*HeapFile
}

// OpenInsert opens name for appending, positioned on the last page of
// the chain.
func OpenInsert(bm *bufferpool.BufferPoolManager, name string, log *zap.Logger) (*InsertFileScan, error) {
	hf, err := Open(bm, name, log)
	if err != nil {
		return nil, err
	}
	ins := &InsertFileScan{HeapFile: hf}
	if err := ins.seekTail(); err != nil {
		_ = hf.Close()
		return nil, err
	}
	return ins, nil
}

// InsertRecord appends rec and returns its identifier. Records larger
// than the maximum page payload are rejected up front with
// ErrRecordTooLarge, before any page is touched. When the tail page is
// full, a new page is allocated, linked as the new tail, and the record
// lands there; earlier records keep their identifiers.
func (ins *InsertFileScan) InsertRecord(rec []byte) (heappage.RID, error) {
	if maxLen := heappage.MaxRecordSize(ins.bm.PageSize()); len(rec) > maxLen {
		return heappage.RID{}, fmt.Errorf("%w: %d bytes, page payload limit %d", ErrRecordTooLarge, len(rec), maxLen)
	}
	if err := ins.seekTail(); err != nil {
		return heappage.RID{}, err
	}

	view := heappage.NewView(ins.cur.Data())
	slot, err := view.InsertRecord(rec)
	if errors.Is(err, heappage.ErrPageFull) {
		view, err = ins.growChain()
		if err != nil {
			return heappage.RID{}, err
		}
		slot, err = view.InsertRecord(rec)
	}
	if err != nil {
		return heappage.RID{}, err
	}

	ins.cur.MarkDirty()
	ins.hdr.setRecCnt(ins.hdr.recCnt() + 1)
	ins.header.MarkDirty()
	ins.curRec = heappage.RID{PageNo: int32(ins.curPageNo), SlotNo: slot}
	return ins.curRec, nil
}

// growChain allocates a fresh page, links it behind the current tail,
// updates the header's last-page field, and leaves the new page pinned
// as the current one. Returns the new page's view.
func (ins *InsertFileScan) growChain() (heappage.View, error) {
	newGuard, newPageNo, err := ins.bm.AllocPage(ins.dm)
	if err != nil {
		return heappage.View{}, err
	}
	newView := heappage.NewView(newGuard.Data())
	newView.Init()

	heappage.NewView(ins.cur.Data()).SetNextPage(int32(newPageNo))
	ins.cur.MarkDirty()
	if err := ins.releaseCur(); err != nil {
		_ = newGuard.Release()
		return heappage.View{}, err
	}

	ins.cur = newGuard
	ins.curPageNo = newPageNo
	ins.hdr.setLastPage(int32(newPageNo))
	ins.header.MarkDirty()
	ins.log.Debug("heap file grew", zap.Int32("new_tail", int32(newPageNo)))
	return newView, nil
}

// seekTail pins the chain's last page as the current page if it is not
// already. Other operations on the shared handle (a GetRecord, say) may
// have moved the cursor elsewhere.
func (ins *InsertFileScan) seekTail() error {
	last := disk.PageNo(ins.hdr.lastPage())
	if ins.cur != nil && ins.curPageNo == last {
		return nil
	}
	if err := ins.switchTo(last); err != nil {
		return err
	}
	ins.curRec = heappage.RID{PageNo: int32(last), SlotNo: heappage.BeforeFirstSlot}
	return nil
}

// Close marks the current page dirty unconditionally before the base
// teardown: an insert cursor exists to mutate, so conservatively writing
// the tail back is correct even when the last operation failed.
func (ins *InsertFileScan) Close() error {
	if ins.cur != nil {
		ins.cur.MarkDirty()
	}
	return ins.HeapFile.Close()
}
