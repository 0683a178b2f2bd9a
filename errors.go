package handel

import "errors"

// Sentinel errors returned by the core. Categorical verifier outcomes
// (§4.5, §7) are not Go errors on their own - they're reported through
// VerifyResult - but the verifier surfaces them as errors too so callers
// that only care about "did it work" can use the standard errors.Is path.
var (
	// ErrInvalidLevel is returned by the partitioner when asked for a
	// level at or beyond the maximum level for the registry size.
	ErrInvalidLevel = errors.New("handel: invalid level")
	// ErrEmptyLevel is returned when a level's computed range is empty.
	ErrEmptyLevel = errors.New("handel: empty level")
	// ErrOverlapping is returned by MultiSignature.Merge when the two
	// signer sets are not disjoint.
	ErrOverlapping = errors.New("handel: overlapping signer sets")
	// ErrAlreadyContained is returned by MultiSignature.AddIndividual
	// when the signer is already present in the signer set.
	ErrAlreadyContained = errors.New("handel: signer already contained")
	// ErrUnknownSigner is returned by the verifier when a signer id does
	// not exist in the registry.
	ErrUnknownSigner = errors.New("handel: unknown signer")
	// ErrInvalidSignature is returned by the verifier when a signature
	// fails cryptographic verification.
	ErrInvalidSignature = errors.New("handel: invalid signature")
	// ErrThresholdNotReached is returned by verifyMultisig when
	// checkThreshold is set and the summed weight is below threshold.
	ErrThresholdNotReached = errors.New("handel: threshold not reached")
	// ErrGapInLevels is returned by Combined when a lower level is
	// missing from the store below one that's present. The agent applies
	// signatures for any level as they arrive, so a gap appears whenever
	// a higher level is filled before a lower one; callers log it and
	// skip that combination.
	ErrGapInLevels = errors.New("handel: gap in combined levels")

	errShortBitset = errors.New("handel: bitset buffer too short")
)
