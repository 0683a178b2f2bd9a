package handel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(nodeID, n int) (*replaceStore, Partitioner) {
	reg := registryOfSize(n)
	part := NewBinomialPartitioner(nodeID, n-1, reg)
	return newReplaceStore(part, n), part
}

func TestStoreEvaluateFirstCandidateIsPositive(t *testing.T) {
	store, part := newTestStore(0, 8)
	size, err := part.SizeAt(3)
	require.NoError(t, err)
	require.NotZero(t, size)

	ids, err := part.IdentitiesAt(3)
	require.NoError(t, err)
	cand := singleton(newFakeSig(int(ids[0].ID())), int(ids[0].ID()), 8)
	require.Greater(t, store.Evaluate(cand, 3), 0)
}

func TestStorePutMultisigReplacesOnlyWhenBigger(t *testing.T) {
	store, part := newTestStore(0, 8)
	ids, err := part.IdentitiesAt(3)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ids), 2)
	idA, idB := int(ids[0].ID()), int(ids[1].ID())

	small := singleton(newFakeSig(idA), idA, 8)
	require.True(t, store.PutMultisig(small, 3), "first insert at a level should always be accepted")

	best, ok := store.Best(3)
	require.True(t, ok)
	require.Equal(t, 1, best.Cardinality())

	// A disjoint singleton merges in and should grow the best signature.
	bigger := singleton(newFakeSig(idB), idB, 8)
	require.True(t, store.PutMultisig(bigger, 3), "a strictly growing candidate should replace the best")

	best, ok = store.Best(3)
	require.True(t, ok)
	require.Equal(t, 2, best.Cardinality())

	// Re-submitting the same singleton shouldn't shrink or change anything.
	require.False(t, store.PutMultisig(small, 3), "a non-improving candidate should not replace the best")
}

func TestStoreEvaluateIndividualSkipsDuplicates(t *testing.T) {
	store, _ := newTestStore(0, 8)
	store.PutIndividual(newFakeSig(4), 3, 4)
	require.Equal(t, 0, store.EvaluateIndividual(newFakeSig(4), 3, 4))
}

func TestStoreCombinedDetectsGap(t *testing.T) {
	store, part := newTestStore(0, 8)
	// Seed level 0 and level 2, leaving level 1 empty.
	store.PutIndividual(newFakeSig(0), 0, 0)
	ids, err := part.IdentitiesAt(2)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	store.PutIndividual(newFakeSig(int(ids[0].ID())), 2, int(ids[0].ID()))

	_, err = store.Combined(2)
	require.ErrorIs(t, err, ErrGapInLevels, "expected Combined(2) to report a gap (level 1 never populated)")
}

func TestStoreCombinedPartialIsNotAGap(t *testing.T) {
	store, _ := newTestStore(0, 8)
	store.PutIndividual(newFakeSig(0), 0, 0)

	sp, err := store.Combined(1)
	require.NoError(t, err, "combining up to a level that simply has no data yet is not a gap")
	require.Equal(t, 1, sp.ms.Cardinality())
}
