package heappage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Page layout, all fields little-endian:
//
//	[0:4)   next page number (int32, -1 terminates the chain)
//	[4:6)   slot count (uint16, includes tombstoned slots)
//	[6:8)   free offset (uint16, records grow down from the end of the page)
//	[8:...) slot directory, 4 bytes per slot: record offset and length
//
// A slot with length 0 is a tombstone left by a delete. Record bytes are
// never moved, so offsets stay valid for the life of the page.
const (
	pageHeaderSize = 8
	slotSize       = 4

	nextPageOff  = 0
	slotCountOff = 4
	freeOff      = 6
	slotDirOff   = pageHeaderSize
)

// NoNextPage terminates the singly-linked page chain.
const NoNextPage int32 = -1

var (
	ErrPageFull       = errors.New("page full")
	ErrNoRecords      = errors.New("no more records on page")
	ErrRecordNotFound = errors.New("record not found on page")
	ErrInvalidSlot    = errors.New("invalid slot number")
	ErrInvalidRecord  = errors.New("invalid record length")
)

// MaxRecordSize returns the largest record payload a page of the given
// size can ever hold: one record with its slot entry next to the fixed
// page header.
func MaxRecordSize(pageSize int) int {
	return pageSize - pageHeaderSize - slotSize
}

// View interprets data as a heap data page. The view does not own the
// bytes; it must not be used after the underlying frame is unpinned.
type View struct {
	data []byte
}

// NewView wraps a page-sized byte slice.
func NewView(data []byte) View {
	return View{data: data}
}

// Init formats the page as empty: no records, no next page.
func (v View) Init() {
	v.SetNextPage(NoNextPage)
	binary.LittleEndian.PutUint16(v.data[slotCountOff:], 0)
	binary.LittleEndian.PutUint16(v.data[freeOff:], uint16(len(v.data)))
}

// NextPage returns the page number of the next page in the chain, or
// NoNextPage at the chain's tail.
func (v View) NextPage() int32 {
	return int32(binary.LittleEndian.Uint32(v.data[nextPageOff:]))
}

// SetNextPage updates the forward chain link.
func (v View) SetNextPage(pageNo int32) {
	binary.LittleEndian.PutUint32(v.data[nextPageOff:], uint32(pageNo))
}

// SlotCount returns the number of slot entries, tombstones included.
func (v View) SlotCount() int {
	return int(binary.LittleEndian.Uint16(v.data[slotCountOff:]))
}

// RecordCount returns the number of live records on the page.
func (v View) RecordCount() int {
	n := 0
	for s := 0; s < v.SlotCount(); s++ {
		if _, length := v.slot(s); length > 0 {
			n++
		}
	}
	return n
}

// FreeSpace returns the bytes available for one more record and its slot.
func (v View) FreeSpace() int {
	free := int(binary.LittleEndian.Uint16(v.data[freeOff:]))
	used := slotDirOff + v.SlotCount()*slotSize
	avail := free - used - slotSize
	if avail < 0 {
		return 0
	}
	return avail
}

// GetRecord returns the bytes of the record at rid. The returned slice
// aliases the page; callers must copy it if they outlive the pin.
func (v View) GetRecord(rid RID) ([]byte, error) {
	if rid.SlotNo < 0 || int(rid.SlotNo) >= v.SlotCount() {
		return nil, fmt.Errorf("%w: slot %d", ErrInvalidSlot, rid.SlotNo)
	}
	off, length := v.slot(int(rid.SlotNo))
	if length == 0 {
		return nil, fmt.Errorf("%w: slot %d deleted", ErrRecordNotFound, rid.SlotNo)
	}
	// A slot pointing outside the page means the bytes are not a data
	// page; refuse rather than slice out of range.
	if off < slotDirOff || off+length > len(v.data) {
		return nil, fmt.Errorf("%w: slot %d spans [%d:%d) outside page", ErrInvalidSlot, rid.SlotNo, off, off+length)
	}
	return v.data[off : off+length], nil
}

// InsertRecord places rec on the page and returns its slot number.
// It fails with ErrPageFull when the record plus a slot entry does not
// fit in the remaining free space.
func (v View) InsertRecord(rec []byte) (int32, error) {
	if len(rec) == 0 || len(rec) > MaxRecordSize(len(v.data)) {
		return -1, fmt.Errorf("%w: %d bytes", ErrInvalidRecord, len(rec))
	}
	if len(rec) > v.FreeSpace() {
		return -1, ErrPageFull
	}
	free := int(binary.LittleEndian.Uint16(v.data[freeOff:]))
	off := free - len(rec)
	copy(v.data[off:free], rec)

	slotNo := v.SlotCount()
	v.setSlot(slotNo, off, len(rec))
	binary.LittleEndian.PutUint16(v.data[slotCountOff:], uint16(slotNo+1))
	binary.LittleEndian.PutUint16(v.data[freeOff:], uint16(off))
	return int32(slotNo), nil
}

// DeleteRecord tombstones the slot at rid. The record's bytes stay in
// place and the page is not compacted, so other RIDs are unaffected.
func (v View) DeleteRecord(rid RID) error {
	if rid.SlotNo < 0 || int(rid.SlotNo) >= v.SlotCount() {
		return fmt.Errorf("%w: slot %d", ErrInvalidSlot, rid.SlotNo)
	}
	off, length := v.slot(int(rid.SlotNo))
	if length == 0 {
		return fmt.Errorf("%w: slot %d already deleted", ErrRecordNotFound, rid.SlotNo)
	}
	v.setSlot(int(rid.SlotNo), off, 0)
	return nil
}

// FirstRecord returns the slot number of the first live record, or
// ErrNoRecords when the page holds none.
func (v View) FirstRecord() (int32, error) {
	return v.nextLiveSlot(0)
}

// NextRecord returns the slot number of the first live record after
// rid.SlotNo, skipping tombstones, or ErrNoRecords when the page is
// exhausted. rid.SlotNo may be BeforeFirstSlot.
func (v View) NextRecord(rid RID) (int32, error) {
	return v.nextLiveSlot(int(rid.SlotNo) + 1)
}

func (v View) nextLiveSlot(from int) (int32, error) {
	if from < 0 {
		from = 0
	}
	for s := from; s < v.SlotCount(); s++ {
		if _, length := v.slot(s); length > 0 {
			return int32(s), nil
		}
	}
	return -1, ErrNoRecords
}

func (v View) slot(slotNo int) (off, length int) {
	base := slotDirOff + slotNo*slotSize
	off = int(binary.LittleEndian.Uint16(v.data[base:]))
	length = int(binary.LittleEndian.Uint16(v.data[base+2:]))
	return off, length
}

func (v View) setSlot(slotNo, off, length int) {
	base := slotDirOff + slotNo*slotSize
	binary.LittleEndian.PutUint16(v.data[base:], uint16(off))
	binary.LittleEndian.PutUint16(v.data[base+2:], uint16(length))
}
