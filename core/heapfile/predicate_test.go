package heapfile

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func float32Rec(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func TestPredicate_NilMatchesEverything(t *testing.T) {
	var p *predicate
	require.True(t, p.matches(nil))
	require.True(t, p.matches([]byte("anything")))
}

func TestPredicate_Integer(t *testing.T) {
	cases := []struct {
		name  string
		rec   int32
		op    Operator
		value int32
		want  bool
	}{
		{"lt true", 1, OpLT, 2, true},
		{"lt false", 2, OpLT, 2, false},
		{"eq negative", -5, OpEQ, -5, true},
		{"gte boundary", 7, OpGTE, 7, true},
		{"gt false", 7, OpGT, 7, false},
		{"ne true", 3, OpNE, 4, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := newPredicate(0, IntAttrSize, AttrInteger, int32Rec(tc.value), tc.op)
			require.NoError(t, err)
			require.Equal(t, tc.want, p.matches(int32Rec(tc.rec)))
		})
	}
}

func TestPredicate_Float(t *testing.T) {
	p, err := newPredicate(0, FloatAttrSize, AttrFloat, float32Rec(2.5), OpLT)
	require.NoError(t, err)
	require.True(t, p.matches(float32Rec(2.25)))
	require.False(t, p.matches(float32Rec(2.5)))
	require.False(t, p.matches(float32Rec(3)))
}

func TestPredicate_String(t *testing.T) {
	p, err := newPredicate(2, 3, AttrString, []byte("mmm"), OpGT)
	require.NoError(t, err)
	require.True(t, p.matches([]byte("..zzz")))
	require.False(t, p.matches([]byte("..aaa")))
	require.False(t, p.matches([]byte("..mmm")))
}

func TestPredicate_OffsetIntoRecord(t *testing.T) {
	// The attribute sits mid-record; bytes around it are ignored.
	rec := append([]byte{0xFF, 0xFF}, int32Rec(9)...)
	p, err := newPredicate(2, IntAttrSize, AttrInteger, int32Rec(9), OpEQ)
	require.NoError(t, err)
	require.True(t, p.matches(rec))
}

func TestPredicate_ShortRecordNeverMatches(t *testing.T) {
	p, err := newPredicate(4, IntAttrSize, AttrInteger, int32Rec(0), OpNE)
	require.NoError(t, err)
	require.False(t, p.matches([]byte{1, 2, 3}))
	require.False(t, p.matches(nil))
}

func TestPredicate_CopiesFilterValue(t *testing.T) {
	val := int32Rec(5)
	p, err := newPredicate(0, IntAttrSize, AttrInteger, val, OpEQ)
	require.NoError(t, err)
	val[0] = 0xEE // caller mutates its buffer after setup
	require.True(t, p.matches(int32Rec(5)))
}
