package heapfile

import (
	"bytes"
	"encoding/binary"

	"github.com/JaimeZepeda08/CS564-Stage4/core/storage/disk"
)

// HeaderPageNo is the well-known page number of a heap file's header
// page: the first page allocated after the disk-level file header.
const HeaderPageNo disk.PageNo = 1

// noPage marks an empty page chain in the header's first/last fields.
const noPage int32 = -1

// Header page layout, little-endian:
//
//	[0:52)  file name, null-terminated, truncated on overflow
//	[52:56) first data page number (-1 if the chain is empty)
//	[56:60) last data page number
//	[60:64) live record count across all pages
const (
	headerNameCap = 52

	hdrFirstPageOff = headerNameCap
	hdrLastPageOff  = headerNameCap + 4
	hdrRecCntOff    = headerNameCap + 8
)

// headerView interprets the pinned header page's bytes. It aliases the
// frame and is only valid while the header pin is held.
type headerView struct {
	data []byte
}

func (h headerView) init(name string) {
	n := len(name)
	if n > headerNameCap-1 {
		n = headerNameCap - 1
	}
	copy(h.data[:n], name[:n])
	h.data[n] = 0
	h.setFirstPage(noPage)
	h.setLastPage(noPage)
	h.setRecCnt(0)
}

func (h headerView) fileName() string {
	raw := h.data[:headerNameCap]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

func (h headerView) firstPage() int32 {
	return int32(binary.LittleEndian.Uint32(h.data[hdrFirstPageOff:]))
}

func (h headerView) setFirstPage(p int32) {
	binary.LittleEndian.PutUint32(h.data[hdrFirstPageOff:], uint32(p))
}

func (h headerView) lastPage() int32 {
	return int32(binary.LittleEndian.Uint32(h.data[hdrLastPageOff:]))
}

func (h headerView) setLastPage(p int32) {
	binary.LittleEndian.PutUint32(h.data[hdrLastPageOff:], uint32(p))
}

func (h headerView) recCnt() int32 {
	return int32(binary.LittleEndian.Uint32(h.data[hdrRecCntOff:]))
}

func (h headerView) setRecCnt(n int32) {
	binary.LittleEndian.PutUint32(h.data[hdrRecCntOff:], uint32(n))
}
