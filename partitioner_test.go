package handel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func registryOfSize(n int) Registry {
	ids, _ := fakeSetup(n)
	return NewArrayRegistry(ids)
}

// TestBinomialPartitionerRanges matches the worked example of an 8-node
// registry partitioned around node 3: level 1 -> {2}, level 2 -> {0,1},
// level 3 -> {4,5,6,7}.
func TestBinomialPartitionerRanges(t *testing.T) {
	reg := registryOfSize(8)
	p := NewBinomialPartitioner(3, 7, reg)

	require.Equal(t, 4, p.NumLevels())

	cases := []struct {
		level    int
		min, max int
	}{
		{0, 3, 3},
		{1, 2, 2},
		{2, 0, 1},
		{3, 4, 7},
	}
	for _, c := range cases {
		min, max, err := p.RangeAt(c.level)
		require.NoError(t, err)
		require.Equal(t, c.min, min, "level %d min", c.level)
		require.Equal(t, c.max, max, "level %d max", c.level)
	}

	_, _, err := p.RangeAt(4)
	require.ErrorIs(t, err, ErrInvalidLevel)
}

func TestBinomialPartitionerIdentitiesAt(t *testing.T) {
	reg := registryOfSize(8)
	p := NewBinomialPartitioner(3, 7, reg)

	ids, err := p.IdentitiesAt(3)
	require.NoError(t, err)
	require.Len(t, ids, 4)

	seen := make(map[int32]bool)
	for _, id := range ids {
		seen[id.ID()] = true
	}
	for _, want := range []int32{4, 5, 6, 7} {
		require.True(t, seen[want], "expected id %d in level 3's identities", want)
	}
}

func TestBinomialPartitionerCombine(t *testing.T) {
	reg := registryOfSize(8)
	p := NewBinomialPartitioner(3, 7, reg)

	a := singleton(newFakeSig(3), 3, 8)
	b := singleton(newFakeSig(2), 2, 8)
	combined, err := p.Combine([]*sigPair{{level: 0, ms: a}, {level: 1, ms: b}})
	require.NoError(t, err)
	require.Equal(t, 2, combined.Cardinality())
}
