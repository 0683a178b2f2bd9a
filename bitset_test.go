package handel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitSetBasic(t *testing.T) {
	bs := NewWilffBitset(16)
	require.Equal(t, 16, bs.BitLength())
	require.Equal(t, 0, bs.Cardinality())

	bs.Set(3, true)
	bs.Set(7, true)
	require.True(t, bs.Get(3))
	require.True(t, bs.Get(7))
	require.False(t, bs.Get(4))
	require.Equal(t, 2, bs.Cardinality())

	bs.Set(3, false)
	require.False(t, bs.Get(3))
}

func TestBitSetOrAndXor(t *testing.T) {
	a := NewWilffBitset(8)
	b := NewWilffBitset(8)
	a.Set(0, true)
	a.Set(1, true)
	b.Set(1, true)
	b.Set(2, true)

	or := a.Or(b)
	require.Equal(t, 3, or.Cardinality())

	and := a.And(b)
	require.Equal(t, 1, and.Cardinality())
	require.True(t, and.Get(1))

	xor := a.Xor(b)
	require.Equal(t, 2, xor.Cardinality())
	require.False(t, xor.Get(1))
}

func TestBitSetIsSupersetAndIntersects(t *testing.T) {
	full := NewWilffBitset(8)
	full.Set(0, true)
	full.Set(1, true)
	full.Set(2, true)

	sub := NewWilffBitset(8)
	sub.Set(1, true)

	require.True(t, full.IsSuperset(sub))
	require.False(t, sub.IsSuperset(full))

	disjoint := NewWilffBitset(8)
	disjoint.Set(5, true)
	require.False(t, full.Intersects(disjoint))
	require.True(t, full.Intersects(sub))
}

func TestBitSetMarshalRoundtrip(t *testing.T) {
	bs := NewWilffBitset(32)
	bs.Set(1, true)
	bs.Set(17, true)
	bs.Set(31, true)

	data, err := bs.MarshalBinary()
	require.NoError(t, err)

	out := &wilffBitSet{}
	require.NoError(t, out.UnmarshalBinary(data))
	require.Equal(t, bs.BitLength(), out.BitLength())
	for _, id := range []int{1, 17, 31} {
		require.True(t, out.Get(id), "expected bit %d to survive roundtrip", id)
	}
	require.Equal(t, 3, out.Cardinality())
}

func TestBitSetClone(t *testing.T) {
	bs := NewWilffBitset(8)
	bs.Set(2, true)
	clone := bs.Clone()
	clone.Set(3, true)

	require.False(t, bs.Get(3), "mutating the clone should not affect the original")
	require.True(t, clone.Get(2), "clone should retain bits from the original")
}
