// Package heapfile implements a heap-organized record file: an unordered
// collection of variable-length records spread across fixed-size pages
// chained into a singly-linked list, addressed by stable (page, slot)
// identifiers.
//
// A HeapFile keeps its header page pinned for its whole lifetime and at
// most one data page pinned at a time; every move to a different data
// page releases the old pin first. HeapFileScan adds predicate-filtered
// sequential traversal with mark/reset, InsertFileScan adds appends with
// page-boundary overflow.
package heapfile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/bufferpool"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/heappage"
)

// HeapFile is an open handle on a heap file: the header page pin, the one
// current data page pin, and the cursor position within it. All cursor
// types build on it. A HeapFile is not safe for concurrent use.
type HeapFile struct {
	name string
	dm   *disk.DiskManager
	bm   *bufferpool.BufferPoolManager
	log  *zap.Logger

	header *bufferpool.PageGuard
	hdr    headerView

	cur       *bufferpool.PageGuard
	curPageNo disk.PageNo
	curRec    heappage.RID
}

// Create makes a new heap file with the given name: the underlying
// database file, its header page, and one empty data page linked as both
// first and last. It fails with ErrFileExists when a file of that name
// can already be opened. The file is closed on return; open it with
// Open, OpenScan or OpenInsert.
func Create(bm *bufferpool.BufferPoolManager, name string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if dm, err := disk.OpenFile(name, bm.PageSize(), log); err == nil {
		_ = dm.Close()
		return fmt.Errorf("%w: %s", ErrFileExists, name)
	}

	if err := disk.CreateFile(name, bm.PageSize()); err != nil {
		// The probe above misses files that exist but fail validation;
		// the exclusive create catches those too.
		if errors.Is(err, disk.ErrFileExists) {
			return fmt.Errorf("%w: %s", ErrFileExists, name)
		}
		return err
	}
	dm, err := disk.OpenFile(name, bm.PageSize(), log)
	if err != nil {
		return err
	}

	hdrGuard, hdrPageNo, err := bm.AllocPage(dm)
	if err != nil {
		_ = dm.Close()
		return err
	}
	if hdrPageNo != HeaderPageNo {
		_ = hdrGuard.Release()
		_ = dm.Close()
		return fmt.Errorf("header page allocated at %d, want %d", hdrPageNo, HeaderPageNo)
	}
	hdr := headerView{data: hdrGuard.Data()}
	hdr.init(name)

	// A heap file always carries at least one data page, so openers never
	// observe an empty chain.
	dataGuard, dataPageNo, err := bm.AllocPage(dm)
	if err != nil {
		_ = hdrGuard.Release()
		_ = dm.Close()
		return err
	}
	heappage.NewView(dataGuard.Data()).Init()
	hdr.setFirstPage(int32(dataPageNo))
	hdr.setLastPage(int32(dataPageNo))

	if err := dataGuard.Release(); err != nil {
		_ = hdrGuard.Release()
		_ = dm.Close()
		return err
	}
	if err := hdrGuard.Release(); err != nil {
		_ = dm.Close()
		return err
	}
	log.Info("created heap file", zap.String("file", name), zap.Int32("first_page", int32(dataPageNo)))
	return dm.Close()
}

// Destroy removes the heap file's underlying database file.
func Destroy(name string) error {
	return disk.DestroyFile(name)
}

// Open opens an existing heap file, pins its header page, and, when the
// page chain is non-empty, pins the first data page with the cursor
// positioned before its first record. On failure nothing stays pinned.
func Open(bm *bufferpool.BufferPoolManager, name string, log *zap.Logger) (*HeapFile, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dm, err := disk.OpenFile(name, bm.PageSize(), log)
	if err != nil {
		return nil, err
	}
	hdrGuard, err := bm.Pin(dm, HeaderPageNo)
	if err != nil {
		_ = dm.Close()
		return nil, err
	}

	hf := &HeapFile{
		name:      name,
		dm:        dm,
		bm:        bm,
		log:       log.With(zap.String("file", name)),
		header:    hdrGuard,
		hdr:       headerView{data: hdrGuard.Data()},
		curPageNo: disk.InvalidPageNo,
		curRec:    heappage.RID{PageNo: int32(disk.InvalidPageNo), SlotNo: heappage.BeforeFirstSlot},
	}

	if first := hf.hdr.firstPage(); first != noPage {
		guard, err := bm.Pin(dm, disk.PageNo(first))
		if err != nil {
			// Drop the header pin before bailing out.
			if uerr := hdrGuard.Release(); uerr != nil {
				hf.log.Error("unpin of header page failed", zap.Error(uerr))
			}
			_ = dm.Close()
			return nil, err
		}
		hf.cur = guard
		hf.curPageNo = disk.PageNo(first)
		hf.curRec = heappage.RID{PageNo: first, SlotNo: heappage.BeforeFirstSlot}
	}
	return hf, nil
}

// Name returns the file name the handle was opened on.
func (hf *HeapFile) Name() string { return hf.name }

// RecordCount returns the header's live record count. No I/O happens.
func (hf *HeapFile) RecordCount() int32 { return hf.hdr.recCnt() }

// GetRecord fetches the record at rid, switching the current pinned page
// when rid lives elsewhere, and moves the cursor to rid. The returned
// bytes are a copy and stay valid after the cursor moves on.
func (hf *HeapFile) GetRecord(rid heappage.RID) ([]byte, error) {
	// Data pages start right after the heap header; anything else would
	// misread header bytes as a slot directory.
	if rid.PageNo <= int32(HeaderPageNo) {
		return nil, fmt.Errorf("%w: page %d is not a data page", ErrBadRID, rid.PageNo)
	}
	if hf.cur == nil || disk.PageNo(rid.PageNo) != hf.curPageNo {
		if err := hf.switchTo(disk.PageNo(rid.PageNo)); err != nil {
			return nil, err
		}
	}
	hf.curRec = rid
	rec, err := heappage.NewView(hf.cur.Data()).GetRecord(rid)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}

// Close tears the handle down best-effort: release the current data page
// with its dirty flag, release the header with its dirty flag, close the
// file. Later steps run even when earlier ones fail; secondary failures
// are logged and the first error is returned. No pins survive Close.
func (hf *HeapFile) Close() error {
	var firstErr error
	if hf.cur != nil {
		if err := hf.cur.Release(); err != nil {
			hf.log.Error("unpin of data page failed", zap.Int32("page", int32(hf.curPageNo)), zap.Error(err))
			firstErr = err
		}
		hf.cur = nil
		hf.curPageNo = disk.InvalidPageNo
	}
	if hf.header != nil {
		if err := hf.header.Release(); err != nil {
			hf.log.Error("unpin of header page failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		hf.header = nil
	}
	if err := hf.dm.Close(); err != nil {
		hf.log.Error("close of heap file failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// switchTo releases the current data page, propagating any unpin error,
// and pins pageNo in its place. The caller fixes up curRec.
func (hf *HeapFile) switchTo(pageNo disk.PageNo) error {
	if err := hf.releaseCur(); err != nil {
		return err
	}
	guard, err := hf.bm.Pin(hf.dm, pageNo)
	if err != nil {
		return err
	}
	hf.cur = guard
	hf.curPageNo = pageNo
	return nil
}

// releaseCur drops the current data page pin, if any, writing it through
// when dirty. Safe to call with no page pinned.
func (hf *HeapFile) releaseCur() error {
	if hf.cur == nil {
		return nil
	}
	err := hf.cur.Release()
	hf.cur = nil
	hf.curPageNo = disk.InvalidPageNo
	return err
}
