package handel

import "math/bits"

// Partitioner implements the binomial-tree level partitioning described
// in spec.md §4.1: given this node's id, it assigns every other id in
// the registry to exactly one level, with level sizes doubling as the
// level number increases.
type Partitioner interface {
	// NumLevels returns L, the number of levels (0 included) this
	// partitioning uses for the registry size it was built with.
	NumLevels() int
	// RangeAt returns the inclusive [min, max] id range for a level, or
	// ErrInvalidLevel if level >= NumLevels().
	RangeAt(level int) (min, max int, err error)
	// SizeAt returns the number of slots (not necessarily all backed by
	// a live identity) in a level's range.
	SizeAt(level int) (int, error)
	// IdentitiesAt returns the identities actually present in the
	// registry within a level's range.
	IdentitiesAt(level int) ([]Identity, error)
	// Combine merges an ordered (by ascending level) list of per-level
	// multi-signatures into one. Every pair is pairwise disjoint by
	// construction, so this is a plain union over signer bitsets.
	Combine(sigs []*sigPair) (*MultiSignature, error)
}

// binomialPartitioner is the sole Partitioner implementation. It
// partitions ids by common-prefix length with the node's own id, as in
// the original San Fermin / Handel binomial tree construction.
type binomialPartitioner struct {
	nodeID int
	maxID  int
	levels int
	reg    Registry
}

// NewBinomialPartitioner returns a Partitioner anchored at nodeID, over a
// registry whose highest id is maxID.
func NewBinomialPartitioner(nodeID int, maxID int, reg Registry) Partitioner {
	return &binomialPartitioner{
		nodeID: nodeID,
		maxID:  maxID,
		levels: ceilLog2(maxID+1) + 1,
		reg:    reg,
	}
}

func (p *binomialPartitioner) NumLevels() int {
	return p.levels
}

func (p *binomialPartitioner) RangeAt(level int) (int, int, error) {
	if level < 0 || level >= p.levels {
		return 0, 0, ErrInvalidLevel
	}
	if level == 0 {
		return p.nodeID, p.nodeID, nil
	}
	mask := (1 << uint(level-1)) - 1
	flip := 1 << uint(level-1)
	min := (p.nodeID ^ flip) &^ mask
	max := (p.nodeID ^ flip) | mask
	if min < 0 {
		min = 0
	}
	if max > p.maxID {
		max = p.maxID
	}
	return min, max, nil
}

func (p *binomialPartitioner) SizeAt(level int) (int, error) {
	min, max, err := p.RangeAt(level)
	if err != nil {
		return 0, err
	}
	if max < min {
		return 0, ErrEmptyLevel
	}
	return max - min + 1, nil
}

func (p *binomialPartitioner) IdentitiesAt(level int) ([]Identity, error) {
	min, max, err := p.RangeAt(level)
	if err != nil {
		return nil, err
	}
	ids, ok := p.reg.Identities(min, max+1)
	if !ok {
		return nil, nil
	}
	return ids, nil
}

func (p *binomialPartitioner) Combine(sigs []*sigPair) (*MultiSignature, error) {
	if len(sigs) == 0 {
		return nil, nil
	}
	combined := sigs[0].ms.Clone()
	for _, s := range sigs[1:] {
		if err := combined.Merge(s.ms); err != nil {
			return nil, err
		}
	}
	return combined, nil
}

// ceilLog2 returns ceil(log2(n)) for n >= 1.
func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	l := bits.Len(uint(n - 1))
	return l
}
