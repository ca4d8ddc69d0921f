package heapfile

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/bufferpool"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/heappage"
)

// scanState makes the cursor's position explicit instead of overloading
// a nil current page, which cannot distinguish "never started" from
// "ran off the end".
type scanState int

const (
	// scanUnpositioned: no data page pinned; the next advance starts
	// from the chain's first page.
	scanUnpositioned scanState = iota
	// scanOnPage: a data page is pinned and curRec points at a record on
	// it, or before its first record.
	scanOnPage
	// scanEnded: the scan ran off the end of the chain. Further advances
	// keep reporting ErrEndOfFile until the scan is reset or ended.
	scanEnded
)

// HeapFileScan traverses a heap file's page chain in order, page by page
// and slot by slot, optionally filtered by a comparison predicate. The
// visitation order is deterministic and stable as long as no mutation
// changes page linkage or slot layout in between.
type HeapFileScan struct {
	*HeapFile

	filter *predicate
	state  scanState

	markedPageNo disk.PageNo
	markedRec    heappage.RID
}

// OpenScan opens name for sequential scanning. The cursor starts before
// the first record of the first page.
func OpenScan(bm *bufferpool.BufferPoolManager, name string, log *zap.Logger) (*HeapFileScan, error) {
	hf, err := Open(bm, name, log)
	if err != nil {
		return nil, err
	}
	// Correlation id for tracing one scan's lifecycle through the logs.
	hf.log = hf.log.With(zap.String("scan_id", uuid.NewString()))

	s := &HeapFileScan{HeapFile: hf, state: scanUnpositioned}
	if hf.cur != nil {
		s.state = scanOnPage
	}
	s.markedPageNo = hf.curPageNo
	s.markedRec = hf.curRec
	return s, nil
}

// StartScan configures the scan's predicate. A nil filter means no
// filtering and clears any previous predicate. No page is pinned here;
// validation failures return ErrBadScanParam.
func (s *HeapFileScan) StartScan(offset, length int, attrType AttrType, filter []byte, op Operator) error {
	if filter == nil {
		s.filter = nil
		return nil
	}
	p, err := newPredicate(offset, length, attrType, filter, op)
	if err != nil {
		return err
	}
	s.filter = p
	return nil
}

// Next advances to the next record satisfying the predicate and returns
// its identifier, which becomes the new current position. ErrEndOfFile
// signals exhaustion; it is terminal until EndScan or Reset repositions
// the cursor.
func (s *HeapFileScan) Next() (heappage.RID, error) {
	if s.state == scanEnded {
		return heappage.RID{}, ErrEndOfFile
	}
	for {
		if s.cur == nil {
			first := s.hdr.firstPage()
			if first == noPage {
				s.state = scanEnded
				return heappage.RID{}, ErrEndOfFile
			}
			if err := s.switchTo(disk.PageNo(first)); err != nil {
				return heappage.RID{}, err
			}
			s.curRec = heappage.RID{PageNo: first, SlotNo: heappage.BeforeFirstSlot}
			s.state = scanOnPage
		}

		view := heappage.NewView(s.cur.Data())
		slot, err := view.NextRecord(s.curRec)
		if err != nil {
			// Page exhausted. Read the chain link before the unpin; the
			// page bytes are off limits afterwards.
			next := view.NextPage()
			if uerr := s.releaseCur(); uerr != nil {
				return heappage.RID{}, uerr
			}
			if next == heappage.NoNextPage {
				s.state = scanEnded
				return heappage.RID{}, ErrEndOfFile
			}
			if perr := s.switchTo(disk.PageNo(next)); perr != nil {
				// An unreadable successor ends the scan rather than
				// leaving a half-positioned cursor behind.
				s.log.Warn("scan could not read next page", zap.Int32("page", int32(next)), zap.Error(perr))
				s.state = scanEnded
				return heappage.RID{}, ErrEndOfFile
			}
			s.curRec = heappage.RID{PageNo: int32(next), SlotNo: heappage.BeforeFirstSlot}
			continue
		}

		s.curRec = heappage.RID{PageNo: int32(s.curPageNo), SlotNo: slot}
		rec, err := view.GetRecord(s.curRec)
		if err != nil {
			return heappage.RID{}, err
		}
		if s.filter.matches(rec) {
			return s.curRec, nil
		}
	}
}

// Mark snapshots the current position. It touches no pins, so the mark
// stays valid even after the scan moves to other pages.
func (s *HeapFileScan) Mark() {
	s.markedPageNo = s.curPageNo
	s.markedRec = s.curRec
}

// Reset restores the position saved by Mark. When the marked page is no
// longer the pinned one, the current page is released and the marked
// page re-pinned; unpin and read errors propagate.
func (s *HeapFileScan) Reset() error {
	if s.markedPageNo != s.curPageNo {
		if err := s.switchTo(s.markedPageNo); err != nil {
			return err
		}
	}
	s.curRec = s.markedRec
	if s.cur != nil {
		s.state = scanOnPage
	} else {
		s.state = scanUnpositioned
	}
	return nil
}

// CurrentRecord returns a copy of the bytes at the current position
// without advancing the scan.
func (s *HeapFileScan) CurrentRecord() ([]byte, error) {
	if s.cur == nil || s.curRec.SlotNo == heappage.BeforeFirstSlot {
		return nil, ErrNoCurrentRecord
	}
	rec, err := heappage.NewView(s.cur.Data()).GetRecord(s.curRec)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}

// DeleteCurrent removes the record at the current position: the page is
// marked dirty and the header's live-record count drops by one. The
// cursor does not advance, and the deleted slot is never returned again
// by this or any later scan.
func (s *HeapFileScan) DeleteCurrent() error {
	if s.cur == nil || s.curRec.SlotNo == heappage.BeforeFirstSlot {
		return ErrNoCurrentRecord
	}
	if err := heappage.NewView(s.cur.Data()).DeleteRecord(s.curRec); err != nil {
		return err
	}
	s.cur.MarkDirty()
	s.hdr.setRecCnt(s.hdr.recCnt() - 1)
	s.header.MarkDirty()
	return nil
}

// MarkDirty forces the current page's dirty flag, for callers that
// mutate record bytes in place outside the cursor's own mutators.
func (s *HeapFileScan) MarkDirty() {
	if s.cur != nil {
		s.cur.MarkDirty()
	}
}

// EndScan releases the current page, if any, and rewinds the scan state
// so a later Next starts over from the first page. It is idempotent and
// also runs implicitly through Close.
func (s *HeapFileScan) EndScan() error {
	err := s.releaseCur()
	s.state = scanUnpositioned
	s.curRec = heappage.RID{PageNo: int32(disk.InvalidPageNo), SlotNo: heappage.BeforeFirstSlot}
	return err
}
