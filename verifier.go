package handel

import (
	"context"
	"sync"
)

// VerifyResultKind is the categorical outcome of a verification job
// (spec.md §4.5).
type VerifyResultKind int

const (
	VerifyOk VerifyResultKind = iota
	VerifyUnknownSigner
	VerifyInvalidSignature
	VerifyThresholdNotReached
)

// VerifyResult reports why a verification succeeded or failed. Threshold
// is only meaningful for VerifyThresholdNotReached. Signer is set on
// VerifyUnknownSigner and on a successful individual-signature
// verification. Votes is set on VerifyThresholdNotReached and on every
// successful verification: the signer's own weight for an individual
// signature, the summed weight of all signers for a multi-signature.
type VerifyResult struct {
	Kind      VerifyResultKind
	Signer    int
	Votes     uint64
	Threshold uint64
}

// Ok reports whether verification succeeded.
func (r VerifyResult) Ok() bool { return r.Kind == VerifyOk }

// Err maps a failing VerifyResult to a sentinel error, nil on success.
func (r VerifyResult) Err() error {
	switch r.Kind {
	case VerifyUnknownSigner:
		return ErrUnknownSigner
	case VerifyInvalidSignature:
		return ErrInvalidSignature
	case VerifyThresholdNotReached:
		return ErrThresholdNotReached
	default:
		return nil
	}
}

type verifyJob struct {
	fn     func() VerifyResult
	result chan<- VerifyResult
}

// Verifier dispatches BLS verification work - individual signature
// checks and aggregate-public-key checks over a multi-signature's signer
// bitset - to a bounded pool of goroutines, so CPU-bound pairing
// operations never block the agent's critical sections (spec.md §4.5,
// §5).
type Verifier struct {
	reg       Registry
	message   []byte
	threshold uint64

	jobs   chan verifyJob
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewVerifier starts a pool of workers verifying signatures over message
// against reg, rejecting aggregates below threshold total weight when
// asked to check it.
func NewVerifier(reg Registry, message []byte, threshold uint64, workers int) *Verifier {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &Verifier{
		reg:       reg,
		message:   message,
		threshold: threshold,
		jobs:      make(chan verifyJob, workers*4),
		cancel:    cancel,
	}
	for i := 0; i < workers; i++ {
		v.wg.Add(1)
		go v.worker(ctx)
	}
	return v
}

func (v *Verifier) worker(ctx context.Context) {
	defer v.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-v.jobs:
			if !ok {
				return
			}
			job.result <- job.fn()
		}
	}
}

// Stop cancels all pending and future work and waits for workers to
// drain. Jobs already submitted but not yet started are skipped.
func (v *Verifier) Stop() {
	v.cancel()
	v.wg.Wait()
}

// VerifyIndividualAsync submits an individual-signature verification job
// and returns a channel that will receive exactly one VerifyResult.
func (v *Verifier) VerifyIndividualAsync(sig Signature, signerID int) <-chan VerifyResult {
	out := make(chan VerifyResult, 1)
	v.jobs <- verifyJob{
		fn:     func() VerifyResult { return v.verifyIndividual(sig, signerID) },
		result: out,
	}
	return out
}

// VerifyMultisigAsync submits an aggregate verification job for ms.
// checkThreshold controls whether the job short-circuits with
// VerifyThresholdNotReached before ever touching the pairing.
func (v *Verifier) VerifyMultisigAsync(ms *MultiSignature, checkThreshold bool) <-chan VerifyResult {
	out := make(chan VerifyResult, 1)
	v.jobs <- verifyJob{
		fn:     func() VerifyResult { return v.verifyMultisig(ms, checkThreshold) },
		result: out,
	}
	return out
}

func (v *Verifier) verifyIndividual(sig Signature, signerID int) VerifyResult {
	id, ok := v.reg.Identity(signerID)
	if !ok {
		return VerifyResult{Kind: VerifyUnknownSigner, Signer: signerID}
	}
	if err := id.PublicKey().VerifySignature(v.message, sig); err != nil {
		return VerifyResult{Kind: VerifyInvalidSignature}
	}
	return VerifyResult{Kind: VerifyOk, Signer: signerID, Votes: id.Weight()}
}

func (v *Verifier) verifyMultisig(ms *MultiSignature, checkThreshold bool) VerifyResult {
	var aggPub PublicKey
	var weight uint64
	for i := 0; i < ms.Signers.BitLength(); i++ {
		if !ms.Signers.Get(i) {
			continue
		}
		id, ok := v.reg.Identity(i)
		if !ok {
			return VerifyResult{Kind: VerifyUnknownSigner, Signer: i}
		}
		weight += id.Weight()
		if aggPub == nil {
			aggPub = id.PublicKey()
		} else {
			aggPub = aggPub.Combine(id.PublicKey())
		}
	}

	if checkThreshold && weight < v.threshold {
		return VerifyResult{Kind: VerifyThresholdNotReached, Votes: weight, Threshold: v.threshold}
	}
	if aggPub == nil || ms.Signature == nil {
		return VerifyResult{Kind: VerifyInvalidSignature}
	}
	if err := aggPub.VerifySignature(v.message, ms.Signature); err != nil {
		return VerifyResult{Kind: VerifyInvalidSignature}
	}
	return VerifyResult{Kind: VerifyOk, Votes: weight}
}
