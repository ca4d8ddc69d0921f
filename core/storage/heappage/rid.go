// Package heappage implements the record-level view of a fixed-size data
// page: a slot directory over variable-length records plus the forward
// link that chains data pages into a heap file.
package heappage

import "fmt"

// RID identifies one record within one page of a heap file. It stays
// stable for the life of the record: slots are tombstoned on delete,
// never reused or compacted, so an RID observed once either resolves to
// the same bytes or to "record not found".
type RID struct {
	PageNo int32
	SlotNo int32
}

// BeforeFirstSlot is the sentinel slot number for a cursor positioned
// before the first record of a page.
const BeforeFirstSlot int32 = -1

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageNo, r.SlotNo)
}
