// Package bls implements §4.1's BLS primitives over BLS12-381: secret
// scalars, public keys (compressed G1), signatures (compressed G2),
// aggregation, verification, and proof-of-possession. Curve arithmetic and
// pairing come from github.com/cloudflare/circl/ecc/bls12381, the
// pairing-friendly-curve library already present in the example pack's
// dependency graph (luxfi-vm's go.mod requires circl).
//
// Every signature uses hash-to-curve-G2 tagged with DST, matching the
// ciphersuite the wider UTXO/validator ecosystem (e.g. Ethereum's BLS,
// Avalanche's warp signatures) standardized on.
package bls

import (
	"crypto/sha256"

	"github.com/cloudflare/circl/ecc/bls12381"
	"golang.org/x/crypto/hkdf"

	"github.com/Slashx124/mynta-core/bls/internal/curveorder"
)

// DST is the domain-separation tag applied to every hash-to-curve call in
// this package, per §4.1.
const DST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"

// PublicKeyLen and SignatureLen are the compressed encoding sizes from
// §4.1 ("public key (compressed G1, 48 B)", "signature (compressed G2,
// 96 B)").
const (
	PublicKeyLen = 48
	SignatureLen = 96
)

// SecretKey is 32 bytes of secret scalar material. It is move-only by
// convention: callers must not copy a SecretKey after construction, and
// must call Zero once it is no longer needed. Go cannot enforce
// non-copyability or true zeroization under GC, so Zero is a best-effort
// overwrite, the same caveat the teacher's own secp256k1 private key
// types carry.
type SecretKey struct {
	scalar bls12381.Scalar
	zeroed bool
}

// PublicKey is a parsed, subgroup-checked G1 point.
type PublicKey struct {
	point bls12381.G1
}

// Signature is a parsed, subgroup-checked G2 point.
type Signature struct {
	point bls12381.G2
}

// KeyGen derives a SecretKey from ikm (>= 32 bytes of entropy) following
// the HKDF-expand construction of §4.1. It returns ErrInvalidKey if the
// expanded scalar lands on or above the curve order; the caller retries
// with fresh ikm.
func KeyGen(ikm []byte) (*SecretKey, error) {
	if len(ikm) < 32 {
		return nil, ErrInvalidKey
	}

	hk := hkdf.New(sha256.New, ikm, []byte("BLS-SIG-KEYGEN-SALT-"), []byte("mynta-bls-keygen"))
	buf := make([]byte, 32)
	if _, err := hk.Read(buf); err != nil {
		return nil, ErrInvalidKey
	}

	if !curveorder.IsValidScalarBytes(buf) {
		return nil, ErrInvalidKey
	}

	var sk SecretKey
	sk.scalar.SetBytes(buf)
	return &sk, nil
}

// Zero overwrites the secret scalar's backing bytes. Best-effort under a
// garbage-collected runtime; see the SecretKey doc comment.
func (sk *SecretKey) Zero() {
	if sk.zeroed {
		return
	}
	sk.scalar = bls12381.Scalar{}
	sk.zeroed = true
}

// PublicKey derives sk's public key: sk·G1, compressed (§4.1 sk_to_pk).
func (sk *SecretKey) PublicKey() *PublicKey {
	var p bls12381.G1
	p.ScalarMult(&sk.scalar, bls12381.G1Generator())
	return &PublicKey{point: p}
}

// Bytes returns the compressed G1 encoding of pk.
func (pk *PublicKey) Bytes() []byte {
	return pk.point.BytesCompressed()
}

// PublicKeyFromBytes parses and subgroup-checks a compressed G1 point.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeyLen {
		return nil, ErrInvalidEncoding
	}
	var p bls12381.G1
	if err := p.SetBytes(b); err != nil {
		return nil, ErrInvalidEncoding
	}
	if !p.IsOnG1() {
		return nil, ErrSubgroupCheckFailed
	}
	return &PublicKey{point: p}, nil
}

// Bytes returns the compressed G2 encoding of sig.
func (sig *Signature) Bytes() []byte {
	return sig.point.BytesCompressed()
}

// SignatureFromBytes parses and subgroup-checks a compressed G2 point.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLen {
		return nil, ErrInvalidEncoding
	}
	var p bls12381.G2
	if err := p.SetBytes(b); err != nil {
		return nil, ErrInvalidEncoding
	}
	if !p.IsOnG2() {
		return nil, ErrSubgroupCheckFailed
	}
	return &Signature{point: p}, nil
}

// hashToG2 maps msg32 to a G2 point under dst, the shared step behind
// Sign, the Verify* functions, and ProofOfPossession/VerifyProofOfPossession.
func hashToG2(msg32 [32]byte, dst string) *bls12381.G2 {
	var h bls12381.G2
	h.Hash(msg32[:], []byte(dst))
	return &h
}

// Sign computes sk · hash_to_G2(msg32, DST), per §4.1.
func Sign(sk *SecretKey, msg32 [32]byte) *Signature {
	h := hashToG2(msg32, DST)
	var p bls12381.G2
	p.ScalarMult(&sk.scalar, h)
	return &Signature{point: p}
}

// VerifyInsecure performs the single-pairing check e(pk, H(m)) ==
// e(G1, sig), rejecting if either input fails its subgroup check. Called
// "insecure" upstream because, unlike AggregateVerify, it offers no
// rogue-key protection on its own — callers aggregating untrusted keys
// must still run proof-of-possession checks at registration time.
func VerifyInsecure(pk *PublicKey, msg32 [32]byte, sig *Signature) bool {
	if !pk.point.IsOnG1() || !sig.point.IsOnG2() {
		return false
	}
	h := hashToG2(msg32, DST)

	negG1 := *bls12381.G1Generator()
	negG1.Neg()

	lhs := bls12381.ProdPairFrac(
		[]*bls12381.G1{&pk.point, &negG1},
		[]*bls12381.G2{h, &sig.point},
		[]int{1, 1},
	)
	return lhs.IsIdentity()
}

// AggregatePubkeys sums a list of G1 points, per §4.1. Returns
// ErrInvalidKey if pks is empty.
func AggregatePubkeys(pks []*PublicKey) (*PublicKey, error) {
	if len(pks) == 0 {
		return nil, ErrInvalidKey
	}
	var sum bls12381.G1
	sum.SetIdentity()
	for _, pk := range pks {
		if pk == nil {
			return nil, ErrInvalidKey
		}
		sum.Add(&sum, &pk.point)
	}
	return &PublicKey{point: sum}, nil
}

// AggregateSigs sums a list of G2 points, per §4.1.
func AggregateSigs(sigs []*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, ErrInvalidKey
	}
	var sum bls12381.G2
	sum.SetIdentity()
	for _, s := range sigs {
		if s == nil {
			return nil, ErrInvalidKey
		}
		sum.Add(&sum, &s.point)
	}
	return &Signature{point: sum}, nil
}

// PubKeyMsgPair binds one signer's public key to the message it signed,
// for VerifyAggregate's multi-pairing accumulator.
type PubKeyMsgPair struct {
	PubKey *PublicKey
	Msg32  [32]byte
}

// VerifyAggregate checks an aggregate signature over possibly-distinct
// messages: e(G1, aggSig) == prod_i e(pk_i, H(m_i)).
func VerifyAggregate(aggSig *Signature, pairs []PubKeyMsgPair) bool {
	if len(pairs) == 0 || !aggSig.point.IsOnG2() {
		return false
	}

	g1s := make([]*bls12381.G1, 0, len(pairs)+1)
	g2s := make([]*bls12381.G2, 0, len(pairs)+1)
	for _, p := range pairs {
		if p.PubKey == nil || !p.PubKey.point.IsOnG1() {
			return false
		}
		h := hashToG2(p.Msg32, DST)
		g1s = append(g1s, &p.PubKey.point)
		g2s = append(g2s, h)
	}

	negG1 := *bls12381.G1Generator()
	negG1.Neg()
	g1s = append(g1s, &negG1)
	g2s = append(g2s, &aggSig.point)

	signs := make([]int, len(g1s))
	for i := range signs {
		signs[i] = 1
	}
	return bls12381.ProdPairFrac(g1s, g2s, signs).IsIdentity()
}

// VerifySameMessage checks an aggregate signature where every signer
// signed the identical msg32; equivalent to
// VerifyInsecure(AggregatePubkeys(pks), msg32, aggSig) per §4.1.
func VerifySameMessage(aggSig *Signature, pks []*PublicKey, msg32 [32]byte) bool {
	aggPk, err := AggregatePubkeys(pks)
	if err != nil {
		return false
	}
	return VerifyInsecure(aggPk, msg32, aggSig)
}

// popDST is the proof-of-possession hash-to-curve domain, distinct from
// the message-signing DST so a PoP can never be replayed as a regular
// signature or vice versa.
const popDST = "BLS_POP_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_"

// ProofOfPossession computes sign(sk, H(pk)) under the PoP domain, per
// §4.1. Registrars MUST verify this at registration time to prevent
// rogue-key attacks against the quorum aggregate public key.
func ProofOfPossession(sk *SecretKey) *Signature {
	pk := sk.PublicKey()
	msg := sha256.Sum256(pk.Bytes())
	h := hashToG2(msg, popDST)
	var p bls12381.G2
	p.ScalarMult(&sk.scalar, h)
	return &Signature{point: p}
}

// VerifyProofOfPossession verifies a PoP produced by ProofOfPossession.
func VerifyProofOfPossession(pk *PublicKey, pop *Signature) bool {
	msg := sha256.Sum256(pk.Bytes())
	h := hashToG2(msg, popDST)

	negG1 := *bls12381.G1Generator()
	negG1.Neg()
	return bls12381.ProdPairFrac(
		[]*bls12381.G1{&pk.point, &negG1},
		[]*bls12381.G2{h, &pop.point},
		[]int{1, 1},
	).IsIdentity()
}
