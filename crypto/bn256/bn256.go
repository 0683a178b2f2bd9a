// Package bn256 implements the handel.PublicKey, handel.SecretKey and
// handel.Signature interfaces with the BLS signature scheme over the
// BN256 pairing groups from golang.org/x/crypto/bn256.
package bn256

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"github.com/aggrecord/handel"
	"golang.org/x/crypto/bn256"
)

// G2Base is the G2 base point, computed once as ScalarMultBase(1).
var G2Base *bn256.G2

// Hash is the hash function used to digest a message before mapping it
// to a point on G1.
var Hash = sha256.New

func init() {
	G2Base = new(bn256.G2)
	G2Base.ScalarBaseMult(big.NewInt(1))
}

// Constructor implements handel.Constructor for the BN256 BLS scheme.
type Constructor struct{}

// NewConstructor returns a handel.Constructor capable of building empty
// signatures and public keys to unmarshal wire data into.
func NewConstructor() *Constructor {
	return &Constructor{}
}

// Signature implements handel.Constructor.
func (c *Constructor) Signature() handel.Signature {
	return new(Signature)
}

// PublicKey implements handel.Constructor.
func (c *Constructor) PublicKey() handel.PublicKey {
	return new(PublicKey)
}

// SecretKey returns an empty SecretKey to unmarshal into, used by
// cmd/handel-node to decode its secret key.
func (c *Constructor) SecretKey() handel.SecretKey {
	return new(SecretKey)
}

// KeyPair generates a fresh BLS key pair using r as the source of
// randomness (crypto/rand.Reader if nil).
func (c *Constructor) KeyPair(r io.Reader) (handel.SecretKey, handel.PublicKey) {
	secret, public, err := NewKeyPair(r)
	if err != nil {
		panic(err)
	}
	return secret, public
}

// PublicKey holds a BLS public key: a point in G2.
type PublicKey struct {
	p *bn256.G2
}

func (p *PublicKey) String() string {
	if p.p == nil {
		return "bn256.PublicKey{nil}"
	}
	return p.p.String()
}

// VerifySignature checks sig against msg by testing the pairing equality
// e(H(m), X) == e(S, B2), where X is this public key, S is the
// signature, and B2 is the G2 base point.
func (p *PublicKey) VerifySignature(msg []byte, sig handel.Signature) error {
	s, ok := sig.(*Signature)
	if !ok || s.e == nil {
		return errors.New("bn256: signature of unexpected type")
	}
	hm, err := hashedMessage(msg)
	if err != nil {
		return err
	}
	left := bn256.Pair(hm, p.p).Marshal()
	right := bn256.Pair(s.e, G2Base).Marshal()
	if !bytes.Equal(left, right) {
		return errors.New("bn256: signature invalid")
	}
	return nil
}

// Combine aggregates two public keys by adding their G2 points.
func (p *PublicKey) Combine(other handel.PublicKey) handel.PublicKey {
	if p.p == nil {
		return other
	}
	o := other.(*PublicKey)
	if o.p == nil {
		return p
	}
	sum := new(bn256.G2)
	sum.Add(p.p, o.p)
	return &PublicKey{p: sum}
}

// MarshalBinary implements handel.PublicKey.
func (p *PublicKey) MarshalBinary() ([]byte, error) {
	if p.p == nil {
		return nil, errors.New("bn256: can't marshal a nil public key")
	}
	return p.p.Marshal(), nil
}

// UnmarshalBinary implements handel.PublicKey.
func (p *PublicKey) UnmarshalBinary(buf []byte) error {
	p.p = new(bn256.G2)
	if _, ok := p.p.Unmarshal(buf); !ok {
		return errors.New("bn256: unable to unmarshal public key")
	}
	return nil
}

// SecretKey holds the secret scalar behind a BLS key pair.
type SecretKey struct {
	s *big.Int
}

// NewKeyPair generates a new BLS key pair from r (crypto/rand.Reader if
// nil).
func NewKeyPair(r io.Reader) (*SecretKey, *PublicKey, error) {
	if r == nil {
		r = rand.Reader
	}
	secret, public, err := bn256.RandomG2(r)
	if err != nil {
		return nil, nil, err
	}
	return &SecretKey{s: secret}, &PublicKey{p: public}, nil
}

// PublicKey derives the public key corresponding to s.
func (s *SecretKey) PublicKey() handel.PublicKey {
	p := new(bn256.G2)
	p.ScalarBaseMult(s.s)
	return &PublicKey{p: p}
}

// Sign produces S = x*H(m), a point on G1.
func (s *SecretKey) Sign(msg []byte) (handel.Signature, error) {
	hashed, err := hashedMessage(msg)
	if err != nil {
		return nil, err
	}
	p := new(bn256.G1)
	p.ScalarMult(hashed, s.s)
	return &Signature{e: p}, nil
}

// MarshalBinary implements handel.SecretKey.
func (s *SecretKey) MarshalBinary() ([]byte, error) {
	return s.s.Bytes(), nil
}

// UnmarshalBinary implements handel.SecretKey.
func (s *SecretKey) UnmarshalBinary(buf []byte) error {
	s.s = new(big.Int).SetBytes(buf)
	return nil
}

// Signature is a BLS signature, or aggregate of several, as a point on G1.
type Signature struct {
	e *bn256.G1
}

// MarshalBinary implements handel.Signature.
func (sig *Signature) MarshalBinary() ([]byte, error) {
	if sig.e == nil {
		return nil, errors.New("bn256: can't marshal a nil signature")
	}
	return sig.e.Marshal(), nil
}

// UnmarshalBinary implements handel.Signature.
func (sig *Signature) UnmarshalBinary(buf []byte) error {
	sig.e = new(bn256.G1)
	if _, ok := sig.e.Unmarshal(buf); !ok {
		return errors.New("bn256: unable to unmarshal signature")
	}
	return nil
}

// Combine aggregates two signatures by adding their G1 points.
func (sig *Signature) Combine(other handel.Signature) handel.Signature {
	if sig.e == nil {
		return other
	}
	o := other.(*Signature)
	if o.e == nil {
		return sig
	}
	res := new(bn256.G1)
	res.Add(sig.e, o.e)
	return &Signature{e: res}
}

func (sig *Signature) String() string {
	if sig.e == nil {
		return "bn256.Signature{nil}"
	}
	return sig.e.String()
}

// hashedMessage maps msg to a point on G1 by hashing it and using the
// digest to seed the curve's random point generator.
//
// TODO: replace with a proper hash-to-curve once one lands in
// golang.org/x/crypto/bn256; seeding RandomG1 from a digest is a
// stand-in, not a general-purpose hash-to-point.
func hashedMessage(msg []byte) (*bn256.G1, error) {
	h := Hash()
	h.Write(msg)
	digest := h.Sum(nil)
	_, hm, err := bn256.RandomG1(bytes.NewReader(digest))
	return hm, err
}
