package handel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTodoQueuePopBestDrainsDisjointIndividuals(t *testing.T) {
	store, part := newTestStore(0, 8)
	ids, err := part.IdentitiesAt(3)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ids), 2)

	q := newTodoQueue()
	q.push(individualTodo(3, int(ids[0].ID()), newFakeSig(int(ids[0].ID()))))
	q.push(individualTodo(3, int(ids[1].ID()), newFakeSig(int(ids[1].ID()))))

	first := q.popBest(store)
	require.NotNil(t, first)
	// Applying the first shouldn't make the second score zero - they're
	// disjoint singletons at the same level.
	first.apply(store)

	second := q.popBest(store)
	require.NotNil(t, second, "expected the second todo to still score positively")
	require.Equal(t, 0, q.len(), "expected queue to be drained")
}

func TestTodoQueuePopBestReturnsNilWhenNothingScores(t *testing.T) {
	store, _ := newTestStore(0, 8)
	store.PutIndividual(newFakeSig(0), 0, 0)

	q := newTodoQueue()
	// Re-queuing the exact same contribution at the same level scores 0.
	q.push(individualTodo(0, 0, newFakeSig(0)))

	require.Nil(t, q.popBest(store), "expected no todo to score positively")
	require.Equal(t, 1, q.len(), "a zero-scoring todo should stay queued")
}
