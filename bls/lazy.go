package bls

import "sync"

// LazyPublicKey defers curve parsing of a compressed G1 point until first
// use, guarded by a single-writer lock around the cached decoded form, per
// §4.1/§9's "lazy public key/signature" design note. Wire messages that
// carry many public keys (e.g. a quorum snapshot) can hold LazyPublicKeys
// and only pay the subgroup-check cost for keys actually verified against.
type LazyPublicKey struct {
	raw []byte

	mu     sync.Mutex
	parsed *PublicKey
	err    error
	done   bool
}

// NewLazyPublicKey wraps raw compressed G1 bytes without parsing them.
func NewLazyPublicKey(raw []byte) *LazyPublicKey {
	return &LazyPublicKey{raw: append([]byte(nil), raw...)}
}

// Get parses raw on first call and caches the result (or error) for every
// subsequent call.
func (l *LazyPublicKey) Get() (*PublicKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.parsed, l.err = PublicKeyFromBytes(l.raw)
		l.done = true
	}
	return l.parsed, l.err
}

// Bytes returns the original compressed encoding without forcing a parse.
func (l *LazyPublicKey) Bytes() []byte {
	return l.raw
}

// LazySignature is the signature analogue of LazyPublicKey.
type LazySignature struct {
	raw []byte

	mu     sync.Mutex
	parsed *Signature
	err    error
	done   bool
}

// NewLazySignature wraps raw compressed G2 bytes without parsing them.
func NewLazySignature(raw []byte) *LazySignature {
	return &LazySignature{raw: append([]byte(nil), raw...)}
}

// Get parses raw on first call and caches the result.
func (l *LazySignature) Get() (*Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.parsed, l.err = SignatureFromBytes(l.raw)
		l.done = true
	}
	return l.parsed, l.err
}

// Bytes returns the original compressed encoding without forcing a parse.
func (l *LazySignature) Bytes() []byte {
	return l.raw
}
