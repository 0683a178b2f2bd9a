package handel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifierIndividualOkAndUnknownSigner(t *testing.T) {
	ids, _ := fakeSetup(4)
	reg := NewArrayRegistry(ids)
	v := NewVerifier(reg, []byte("msg"), 0, 2)
	defer v.Stop()

	res := <-v.VerifyIndividualAsync(newFakeSig(1), 1)
	require.True(t, res.Ok())

	res = <-v.VerifyIndividualAsync(newFakeSig(9), 9)
	require.Equal(t, VerifyUnknownSigner, res.Kind)
}

func TestVerifierInvalidSignature(t *testing.T) {
	ids := []Identity{NewStaticIdentity(0, "", &fakePublic{id: 0, invalid: true})}
	reg := NewArrayRegistry(ids)
	v := NewVerifier(reg, []byte("msg"), 0, 1)
	defer v.Stop()

	res := <-v.VerifyIndividualAsync(newFakeSig(0), 0)
	require.Equal(t, VerifyInvalidSignature, res.Kind)
}

func TestVerifierMultisigThreshold(t *testing.T) {
	ids := []Identity{
		NewIdentity(0, "", &fakePublic{id: 0}, 5),
		NewIdentity(1, "", &fakePublic{id: 1}, 5),
	}
	reg := NewArrayRegistry(ids)
	v := NewVerifier(reg, []byte("msg"), 10, 1)
	defer v.Stop()

	ms := singleton(newFakeSig(0), 0, 2)
	res := <-v.VerifyMultisigAsync(ms, true)
	require.Equal(t, VerifyThresholdNotReached, res.Kind)

	require.NoError(t, ms.AddIndividual(newFakeSig(1), 1))
	res = <-v.VerifyMultisigAsync(ms, true)
	require.True(t, res.Ok(), "expected Ok once threshold is met")
}
