package handel

import "fmt"

// PublicKey is the public half of a BLS key pair. The core treats it as
// opaque: verification and aggregation are delegated to the concrete
// curve implementation (see crypto/bn256).
type PublicKey interface {
	// Combine aggregates this public key with another, returning the
	// resulting aggregate public key.
	Combine(other PublicKey) PublicKey
	// VerifySignature checks sig against msg under this public key.
	VerifySignature(msg []byte, sig Signature) error
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
	String() string
}

// SecretKey signs messages and derives the corresponding PublicKey.
type SecretKey interface {
	PublicKey() PublicKey
	Sign(msg []byte) (Signature, error)
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Signature is an individual or aggregate BLS signature.
type Signature interface {
	Combine(other Signature) Signature
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
	String() string
}

// Constructor creates empty Signature/PublicKey/SecretKey values so the
// core can unmarshal wire data without depending on a concrete curve.
type Constructor interface {
	Signature() Signature
	PublicKey() PublicKey
}

// Identity is a node's static, read-only identity: its id, how to reach
// it, its public key, and its voting weight.
type Identity struct {
	id      int32
	address string
	public  PublicKey
	weight  uint64
}

// NewIdentity returns a new Identity with the given voting weight.
func NewIdentity(id int32, address string, public PublicKey, weight uint64) Identity {
	return Identity{id: id, address: address, public: public, weight: weight}
}

// NewStaticIdentity returns a new Identity with unit voting weight, the
// common case for test fixtures and unweighted rosters.
func NewStaticIdentity(id int32, address string, public PublicKey) Identity {
	return NewIdentity(id, address, public, 1)
}

func (i Identity) ID() int32           { return i.id }
func (i Identity) Address() string     { return i.address }
func (i Identity) PublicKey() PublicKey { return i.public }
func (i Identity) Weight() uint64      { return i.weight }
func (i Identity) String() string {
	return fmt.Sprintf("id=%d addr=%s weight=%d", i.id, i.address, i.weight)
}

// Registry is the static, read-only roster of all identities
// participating in the aggregation. It is shared read-only by all
// components; nothing in the core mutates it after construction.
type Registry interface {
	// Size returns the number of identities in the roster.
	Size() int
	// Identity returns the identity at the given id, if known.
	Identity(id int) (Identity, bool)
	// Identities returns every known identity whose id lies in [min, max).
	Identities(min, max int) ([]Identity, bool)
}

// arrayRegistry is a Registry backed by a dense, id-indexed slice.
type arrayRegistry struct {
	ids []Identity
}

// NewArrayRegistry returns a Registry over a dense slice of identities,
// indexed by their own ID() value.
func NewArrayRegistry(ids []Identity) Registry {
	return &arrayRegistry{ids: ids}
}

func (a *arrayRegistry) Size() int {
	return len(a.ids)
}

func (a *arrayRegistry) Identity(id int) (Identity, bool) {
	if id < 0 || id >= len(a.ids) {
		return Identity{}, false
	}
	return a.ids[id], true
}

func (a *arrayRegistry) Identities(min, max int) ([]Identity, bool) {
	if min < 0 {
		min = 0
	}
	if max > len(a.ids) {
		max = len(a.ids)
	}
	if min >= max {
		return nil, false
	}
	out := make([]Identity, 0, max-min)
	out = append(out, a.ids[min:max]...)
	return out, true
}
