package handel

import "sync"

// sigPair pairs a multi-signature with the level it was produced for or
// received at. It's the unit both the store and the partitioner's
// Combine operate on.
type sigPair struct {
	level int
	ms    *MultiSignature
}

// signatureStore is responsible for tracking the best multi-signature
// seen at every level, scoring candidates before they're verified so the
// agent can prioritize which pending work to apply next (spec.md §4.2).
type signatureStore interface {
	// Evaluate scores a candidate multi-signature against the current
	// state of a level. Higher is more valuable; 0 means "don't bother".
	Evaluate(candidate *MultiSignature, level int) int
	// EvaluateIndividual scores a single signer's contribution the same
	// way, short-circuiting to 0 if that signer is already known.
	EvaluateIndividual(sig Signature, level int, peerID int) int
	// PutMultisig merges/replaces a candidate into the store per the
	// replace policy. Returns true iff best[level] changed.
	PutMultisig(candidate *MultiSignature, level int) bool
	// PutIndividual records an individual signature and folds it into
	// the store as a singleton multi-signature.
	PutIndividual(sig Signature, level int, peerID int) bool
	// Best returns the current best multi-signature at a level.
	Best(level int) (*MultiSignature, bool)
	// Combined merges best[0..=upTo]. It returns (nil, nil) when nothing
	// has been accepted yet anywhere in that range, and ErrGapInLevels
	// when a lower level is missing below one that's present (spec.md
	// §4.2, §8 scenario 5).
	Combined(upTo int) (*sigPair, error)
	// BestLevel returns the highest level that has ever been accepted.
	BestLevel() int
}

// replaceStore is the sole signatureStore implementation: it keeps one
// "best" multi-signature per level and replaces it only when a candidate
// strictly grows the level's coverage (spec.md §4.2).
type replaceStore struct {
	mu sync.RWMutex

	part     Partitioner
	universe int

	bestLevel int
	best      map[int]*MultiSignature

	// individualVerified[level] is the bitset of ids whose individual
	// signature has been verified at that level; individualSignatures
	// holds the signatures themselves. Both are kept per level rather
	// than in one flat map, per spec.md §9's open-question decision.
	individualVerified   map[int]BitSet
	individualSignatures map[int]map[int]Signature
}

// newReplaceStore allocates a replaceStore for every level the
// partitioner knows about. universe is the registry size, used to size
// per-level bitsets (signer ids are global, see bitset.go).
func newReplaceStore(part Partitioner, universe int) *replaceStore {
	n := part.NumLevels()
	iv := make(map[int]BitSet, n)
	isig := make(map[int]map[int]Signature, n)
	for i := 0; i < n; i++ {
		iv[i] = NewWilffBitset(universe)
		isig[i] = make(map[int]Signature)
	}
	return &replaceStore{
		part:                 part,
		universe:             universe,
		best:                 make(map[int]*MultiSignature),
		individualVerified:   iv,
		individualSignatures: isig,
	}
}

func (r *replaceStore) Evaluate(candidate *MultiSignature, level int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evaluateLocked(candidate, level)
}

func (r *replaceStore) EvaluateIndividual(sig Signature, level int, peerID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.individualSignatures[level][peerID]; ok {
		return 0
	}
	return r.evaluateLocked(singleton(sig, peerID, r.universe), level)
}

// evaluateLocked implements spec.md §4.2's scoring formula. Callers must
// hold at least a read lock.
func (r *replaceStore) evaluateLocked(candidate *MultiSignature, level int) int {
	toReceive, err := r.part.SizeAt(level)
	if err != nil {
		return 0
	}
	best := r.best[level]

	if best != nil {
		if best.Len() == toReceive {
			return 0
		}
		if best.Signers.IsSuperset(candidate.Signers) {
			return 0
		}
	}

	verified := r.individualVerified[level]
	withIndividuals := candidate.Signers.Or(verified)

	var newTotal, added, combined int
	switch {
	case best != nil && candidate.Signers.Intersects(best.Signers):
		// can't merge candidate and best directly
		newTotal = withIndividuals.Cardinality()
		added = newTotal - best.Len()
		if added < 0 {
			added = 0
		}
		combined = newTotal - candidate.Len()
	case best != nil:
		final := withIndividuals.Or(best.Signers)
		newTotal = final.Cardinality()
		added = newTotal - best.Len()
		combined = final.Xor(best.Signers.Or(candidate.Signers)).Cardinality()
	default:
		newTotal = withIndividuals.Cardinality()
		added = newTotal
		combined = newTotal - candidate.Len()
	}

	switch {
	case added == 0:
		if candidate.Len() == 1 {
			return 1
		}
		return 0
	case newTotal == toReceive:
		return 1000000 - level*10 - combined
	default:
		return 100000 - level*100 + added*10 - combined
	}
}

func (r *replaceStore) PutMultisig(candidate *MultiSignature, level int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putMultisigLocked(candidate, level)
}

// putMultisigLocked implements the merge/replace policy of spec.md
// §4.2's put_multisig. Callers must hold the write lock.
func (r *replaceStore) putMultisigLocked(candidate *MultiSignature, level int) bool {
	m := candidate.Clone()
	best := r.best[level]
	if best != nil {
		// Overlap means the merge is skipped; m keeps candidate's own
		// signer set and we fall through to the individual top-up.
		_ = m.Merge(best)
	}

	verified := r.individualVerified[level]
	sigs := r.individualSignatures[level]
	for id := 0; id < verified.BitLength(); id++ {
		if !verified.Get(id) || m.Signers.Get(id) {
			continue
		}
		sig, ok := sigs[id]
		if !ok {
			panic("handel: individual signature missing for verified id")
		}
		if err := m.AddIndividual(sig, id); err != nil {
			panic("handel: individual signature invariant violated: " + err.Error())
		}
	}

	if best != nil && m.Len() <= best.Len() {
		return false
	}

	r.best[level] = m
	if level > r.bestLevel {
		r.bestLevel = level
	}
	return true
}

func (r *replaceStore) PutIndividual(sig Signature, level int, peerID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.individualVerified[level].Set(peerID, true)
	r.individualSignatures[level][peerID] = sig
	return r.putMultisigLocked(singleton(sig, peerID, r.universe), level)
}

func (r *replaceStore) Best(level int) (*MultiSignature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.best[level]
	return ms, ok
}

func (r *replaceStore) BestLevel() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bestLevel
}

func (r *replaceStore) Combined(upTo int) (*sigPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sigs []*sigPair
	count := 0
	for i := 0; i <= upTo; i++ {
		ms, ok := r.best[i]
		if !ok {
			continue
		}
		if i > count {
			// a lower level is missing below one that's present
			return nil, ErrGapInLevels
		}
		sigs = append(sigs, &sigPair{level: i, ms: ms})
		count++
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	combined, err := r.part.Combine(sigs)
	if err != nil {
		return nil, err
	}
	if combined == nil {
		return nil, nil
	}

	tagLevel := upTo + 1
	if last := r.part.NumLevels() - 1; tagLevel > last {
		tagLevel = last
	}
	return &sigPair{level: tagLevel, ms: combined}, nil
}