package handel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiSignatureMerge(t *testing.T) {
	a := singleton(newFakeSig(0), 0, 8)
	b := singleton(newFakeSig(1), 1, 8)

	require.NoError(t, a.Merge(b))
	require.Equal(t, 2, a.Cardinality())
	require.True(t, a.Signers.Get(0))
	require.True(t, a.Signers.Get(1))
}

func TestMultiSignatureMergeOverlapFails(t *testing.T) {
	a := singleton(newFakeSig(0), 0, 8)
	b := singleton(newFakeSig(0), 0, 8)

	require.ErrorIs(t, a.Merge(b), ErrOverlapping)
}

func TestMultiSignatureAddIndividual(t *testing.T) {
	ms := singleton(newFakeSig(0), 0, 8)
	require.NoError(t, ms.AddIndividual(newFakeSig(1), 1))
	require.Equal(t, 2, ms.Cardinality())
	require.ErrorIs(t, ms.AddIndividual(newFakeSig(1), 1), ErrAlreadyContained)
}

func TestMultiSignatureWeight(t *testing.T) {
	ids := []Identity{
		NewIdentity(0, "", &fakePublic{id: 0}, 1),
		NewIdentity(1, "", &fakePublic{id: 1}, 5),
		NewIdentity(2, "", &fakePublic{id: 2}, 10),
	}
	reg := NewArrayRegistry(ids)

	ms := singleton(newFakeSig(0), 0, 3)
	require.NoError(t, ms.AddIndividual(newFakeSig(1), 1))
	require.Equal(t, uint64(6), ms.Weight(reg))

	require.NoError(t, ms.AddIndividual(newFakeSig(2), 2))
	require.Equal(t, uint64(16), ms.Weight(reg))
}

func TestMultiSignatureClone(t *testing.T) {
	ms := singleton(newFakeSig(0), 0, 8)
	clone := ms.Clone()
	require.NoError(t, clone.AddIndividual(newFakeSig(1), 1))

	require.Equal(t, 1, ms.Cardinality(), "original should be unaffected by mutating the clone")
	require.Equal(t, 2, clone.Cardinality())
}
