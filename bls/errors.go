package bls

import "errors"

// Error kinds from §4.1. All are returned on data that is attacker or
// peer controlled, never panics.
var (
	ErrInvalidEncoding     = errors.New("bls: invalid encoding")
	ErrSubgroupCheckFailed = errors.New("bls: subgroup check failed")
	ErrInvalidKey          = errors.New("bls: invalid key")
	ErrDomainMismatch      = errors.New("bls: domain mismatch")
)
