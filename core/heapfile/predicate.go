package heapfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// AttrType names the typed interpretation of the filtered byte range.
type AttrType int

const (
	AttrString AttrType = iota
	AttrInteger
	AttrFloat
)

// Attribute storage widths. Numeric attributes are fixed-width
// little-endian on every platform; the scan layer never reinterprets
// raw memory at native width.
const (
	IntAttrSize   = 4 // int32
	FloatAttrSize = 4 // IEEE 754 binary32
)

// Operator is one of the six comparisons a scan predicate can apply.
type Operator int

const (
	OpLT Operator = iota
	OpLTE
	OpEQ
	OpGTE
	OpGT
	OpNE
)

// predicate compares length bytes at offset in each record against the
// filter value. A nil predicate matches every record.
type predicate struct {
	offset   int
	length   int
	attrType AttrType
	filter   []byte
	op       Operator
}

func newPredicate(offset, length int, attrType AttrType, filter []byte, op Operator) (*predicate, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrBadScanParam, offset)
	}
	if length < 1 {
		return nil, fmt.Errorf("%w: non-positive length %d", ErrBadScanParam, length)
	}
	switch attrType {
	case AttrString:
		// any positive length
	case AttrInteger:
		if length != IntAttrSize {
			return nil, fmt.Errorf("%w: integer attribute must be %d bytes, got %d", ErrBadScanParam, IntAttrSize, length)
		}
	case AttrFloat:
		if length != FloatAttrSize {
			return nil, fmt.Errorf("%w: float attribute must be %d bytes, got %d", ErrBadScanParam, FloatAttrSize, length)
		}
	default:
		return nil, fmt.Errorf("%w: unknown attribute type %d", ErrBadScanParam, attrType)
	}
	switch op {
	case OpLT, OpLTE, OpEQ, OpGTE, OpGT, OpNE:
	default:
		return nil, fmt.Errorf("%w: unknown operator %d", ErrBadScanParam, op)
	}
	if len(filter) < length {
		return nil, fmt.Errorf("%w: filter value shorter than length %d", ErrBadScanParam, length)
	}
	return &predicate{
		offset:   offset,
		length:   length,
		attrType: attrType,
		filter:   append([]byte(nil), filter[:length]...),
		op:       op,
	}, nil
}

// matches evaluates the predicate against one record's bytes. A record
// too short to cover the filtered range never matches; that is not an
// error.
func (p *predicate) matches(rec []byte) bool {
	if p == nil {
		return true
	}
	if p.offset+p.length > len(rec) {
		return false
	}
	attr := rec[p.offset : p.offset+p.length]

	var cmp int
	switch p.attrType {
	case AttrInteger:
		a := int32(binary.LittleEndian.Uint32(attr))
		b := int32(binary.LittleEndian.Uint32(p.filter))
		cmp = compareOrdered(a, b)
	case AttrFloat:
		a := math.Float32frombits(binary.LittleEndian.Uint32(attr))
		b := math.Float32frombits(binary.LittleEndian.Uint32(p.filter))
		cmp = compareOrdered(a, b)
	case AttrString:
		cmp = bytes.Compare(attr, p.filter)
	}

	switch p.op {
	case OpLT:
		return cmp < 0
	case OpLTE:
		return cmp <= 0
	case OpEQ:
		return cmp == 0
	case OpGTE:
		return cmp >= 0
	case OpGT:
		return cmp > 0
	case OpNE:
		return cmp != 0
	}
	return false
}

func compareOrdered[T int32 | float32](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
