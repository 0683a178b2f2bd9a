package handel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateLevelsDeterministic(t *testing.T) {
	reg := registryOfSize(8)
	p := NewBinomialPartitioner(3, 7, reg)

	levels, err := createLevels(p, true, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, levels, 4)
	require.Equal(t, levelActive, levels[0].State(), "level 0 should be born active")
	for i := 1; i < len(levels); i++ {
		require.Equal(t, levelInactive, levels[i].State(), "level %d should be born inactive", i)
	}
	require.Equal(t, 4, levels[3].NumPeers())
}

func TestLevelActivateIsIdempotent(t *testing.T) {
	l := newLevel(1, []int{2}, 2)
	require.True(t, l.activate(), "first activation should succeed")
	require.False(t, l.activate(), "second activation should be a no-op")
	require.Equal(t, levelActive, l.State())
}

func TestLevelMarkReceiveCompleted(t *testing.T) {
	l := newLevel(1, []int{2, 3}, 3)
	require.True(t, l.markReceiveCompleted(), "first completion should succeed")
	require.False(t, l.markReceiveCompleted(), "second completion should be a no-op")
}

func TestLevelSelectNextPeersRotates(t *testing.T) {
	l := newLevel(1, []int{10, 20, 30}, 4)
	first := l.selectNextPeers(3)
	require.Len(t, first, 3)
	second := l.selectNextPeers(3)
	require.Len(t, second, 3)

	// six picks total over 3 peers: every peer should have come up twice.
	counts := map[int]int{}
	for _, p := range append(first, second...) {
		counts[p]++
	}
	for _, p := range []int{10, 20, 30} {
		require.Equal(t, 2, counts[p], "expected peer %d picked exactly twice over two rounds", p)
	}
}

func TestLevelUpdateSignatureToSend(t *testing.T) {
	l := newLevel(1, []int{2, 3}, 3)
	grew, full := l.updateSignatureToSend(1)
	require.True(t, grew)
	require.False(t, full)

	grew, _ = l.updateSignatureToSend(1)
	require.False(t, grew, "same size should not count as growth")

	grew, full = l.updateSignatureToSend(3)
	require.True(t, grew)
	require.True(t, full)
}
