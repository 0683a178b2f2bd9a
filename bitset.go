package handel

import (
	"bytes"
	"encoding/binary"

	bbloom "github.com/bits-and-blooms/bitset"
)

// BitSet represents a fixed-universe set of participant ids, used both as
// a MultiSignature's signer set and as a level's verified-individual set.
// The universe is always [0, size), regardless of which level a bitset is
// associated with: signer ids are global, not re-indexed per level.
type BitSet interface {
	Set(i int, val bool)
	Get(i int) bool
	BitLength() int
	Cardinality() int
	Or(other BitSet) BitSet
	And(other BitSet) BitSet
	Xor(other BitSet) BitSet
	IsSuperset(other BitSet) bool
	Intersects(other BitSet) bool
	Clone() BitSet
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// wilffBitSet is the default BitSet implementation, backed by a dense
// word-packed bitset.
type wilffBitSet struct {
	bs   *bbloom.BitSet
	size int
}

// NewWilffBitset returns a BitSet with the given fixed universe size, all
// bits initially clear.
func NewWilffBitset(size int) BitSet {
	return &wilffBitSet{bs: bbloom.New(uint(size)), size: size}
}

func (w *wilffBitSet) Set(i int, val bool) {
	if val {
		w.bs.Set(uint(i))
	} else {
		w.bs.Clear(uint(i))
	}
}

func (w *wilffBitSet) Get(i int) bool {
	return w.bs.Test(uint(i))
}

func (w *wilffBitSet) BitLength() int {
	return w.size
}

func (w *wilffBitSet) Cardinality() int {
	return int(w.bs.Count())
}

func (w *wilffBitSet) size2(other *wilffBitSet) int {
	if other.size > w.size {
		return other.size
	}
	return w.size
}

func (w *wilffBitSet) Or(other BitSet) BitSet {
	o := other.(*wilffBitSet)
	return &wilffBitSet{bs: w.bs.Union(o.bs), size: w.size2(o)}
}

func (w *wilffBitSet) And(other BitSet) BitSet {
	o := other.(*wilffBitSet)
	return &wilffBitSet{bs: w.bs.Intersection(o.bs), size: w.size2(o)}
}

func (w *wilffBitSet) Xor(other BitSet) BitSet {
	o := other.(*wilffBitSet)
	return &wilffBitSet{bs: w.bs.SymmetricDifference(o.bs), size: w.size2(o)}
}

func (w *wilffBitSet) IsSuperset(other BitSet) bool {
	o := other.(*wilffBitSet)
	return o.bs.DifferenceCardinality(w.bs) == 0
}

func (w *wilffBitSet) Intersects(other BitSet) bool {
	o := other.(*wilffBitSet)
	return w.bs.IntersectionCardinality(o.bs) > 0
}

func (w *wilffBitSet) Clone() BitSet {
	return &wilffBitSet{bs: w.bs.Clone(), size: w.size}
}

// MarshalBinary serializes the bitset as a 4-byte big-endian size followed
// by the packed words, matching the library-native layout spec.md §6
// leaves unspecified beyond "serialized as its native layout".
func (w *wilffBitSet) MarshalBinary() ([]byte, error) {
	raw, err := w.bs.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(w.size)); err != nil {
		return nil, err
	}
	buf.Write(raw)
	return buf.Bytes(), nil
}

func (w *wilffBitSet) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return errShortBitset
	}
	w.size = int(binary.BigEndian.Uint32(data[:4]))
	w.bs = new(bbloom.BitSet)
	return w.bs.UnmarshalBinary(data[4:])
}
