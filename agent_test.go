package handel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAgentFullAggregation wires n agents together over an in-process
// TestNetwork and checks that every one of them eventually produces a
// final signature covering all n contributions.
func TestAgentFullAggregation(t *testing.T) {
	const n = 8
	msg := []byte("hello handel")
	cons := fakeCons{}

	secrets := make([]*fakeSecret, n)
	ids := make([]Identity, n)
	for i := 0; i < n; i++ {
		secrets[i] = &fakeSecret{id: i}
		ids[i] = NewStaticIdentity(int32(i), "", secrets[i].PublicKey())
	}
	reg := NewArrayRegistry(ids)

	nets := make([]Network, n)
	for i := 0; i < n; i++ {
		nets[i] = NewTestNetwork(int32(i), nets)
	}

	agents := make([]*Agent, n)
	for i := 0; i < n; i++ {
		conf := DefaultConfig(ids[i], reg, secrets[i], cons, uint64(n), msg)
		conf.UpdatePeriod = 5 * time.Millisecond
		conf.LevelTimeout = 10 * time.Millisecond
		conf.DisableShuffling = true
		a, err := NewAgent(conf, nets[i])
		require.NoError(t, err, "node %d", i)
		agents[i] = a
	}

	for i, a := range agents {
		require.NoError(t, a.Start(), "node %d", i)
	}
	defer func() {
		for _, a := range agents {
			a.Stop()
		}
	}()

	for i, a := range agents {
		select {
		case final := <-a.FinalSignature():
			require.Equal(t, n, final.Cardinality(), "node %d", i)
			require.Equal(t, uint64(n), final.Weight(reg), "node %d", i)
		case <-time.After(2 * time.Second):
			require.Fail(t, "timed out waiting for the final signature", "node %d", i)
		}
	}
}

// TestAgentStopIsIdempotent checks that Stop can be called more than
// once without panicking or blocking forever.
func TestAgentStopIsIdempotent(t *testing.T) {
	ids, _ := fakeSetup(2)
	reg := NewArrayRegistry(ids)
	nets := make([]Network, 2)
	nets[0] = NewTestNetwork(0, nets)
	nets[1] = NewTestNetwork(1, nets)

	conf := DefaultConfig(ids[0], reg, &fakeSecret{id: 0}, fakeCons{}, 2, []byte("msg"))
	conf.UpdatePeriod = 5 * time.Millisecond
	conf.LevelTimeout = 10 * time.Millisecond

	a, err := NewAgent(conf, nets[0])
	require.NoError(t, err)
	require.NoError(t, a.Start())
	a.Stop()
	a.Stop()
}
