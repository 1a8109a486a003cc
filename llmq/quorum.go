// Package llmq implements §4.4's Quorum Manager (C4): deterministic
// member selection over the masternode list, quorum construction, and
// quorum selection for a signing request. The package holds no state:
// the in-memory working set of recent quorums, indexed by type, is kept
// by core.Core, with construction driven by block-height events rather
// than by a goroutine of its own.
package llmq

import (
	"bytes"
	"sort"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
)

// Candidate is the minimal view of a masternode the quorum builder needs:
// its identity and its operator key, per §4.4 step 2 ("every eligible
// masternode mn in L(h) whose operator key is valid"). dmn.Record
// satisfies this shape through a small adapter in core, keeping llmq from
// depending on dmn directly.
type Candidate struct {
	ProTxHash      chainhash.Hash
	OperatorPubKey [48]byte
}

// Member is one seat in a constructed quorum.
type Member struct {
	ProTxHash      chainhash.Hash
	OperatorPubKey [48]byte
	Valid          bool
}

// Quorum is identified by (llmqType, quorumHash), per §3.3: an ordered
// member list, the sum of valid members' G1 points, and the construction
// height. Immutable after construction.
type Quorum struct {
	Type             uint8
	QuorumHash       chainhash.Hash
	Height           int32
	Members          []Member
	AggregatedPubKey *bls.PublicKey
	ValidMemberCount int
}

// Valid reports whether the quorum meets §3.3's "valid iff
// validMemberCount >= minSize".
func (q *Quorum) Valid(params chaincfg.LLMQParams) bool {
	return q.ValidMemberCount >= params.MinSize
}

const (
	modifierDST = "LLMQ_MODIFIER"
	scoreDST    = "LLMQ_SCORE"
	quorumDST   = "LLMQ_QUORUM"
	selectDST   = "LLMQ_SELECT"
)

// BuildQuorum implements §4.4 steps 1-5. It does not check that height
// ≡ 0 (mod dkgInterval), and neither does its caller core.Core.BuildQuorumAt.
func BuildQuorum(params chaincfg.LLMQParams, height int32, blockHash chainhash.Hash, candidates []Candidate) (*Quorum, error) {
	modifier := domainHash(modifierDST, []byte{params.Type}, blockHash[:])

	type scoredCandidate struct {
		c     Candidate
		score chainhash.Hash
	}
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		s := domainHash(scoreDST, modifier[:], c.ProTxHash[:])
		scored = append(scored, scoredCandidate{c: c, score: s})
	}
	sort.Slice(scored, func(i, j int) bool {
		if cmp := bytes.Compare(scored[i].score[:], scored[j].score[:]); cmp != 0 {
			return cmp < 0
		}
		return scored[i].c.ProTxHash.Less(scored[j].c.ProTxHash)
	})

	n := params.Size
	if n > len(scored) {
		n = len(scored)
	}

	members := make([]Member, 0, n)
	pubkeys := make([]*bls.PublicKey, 0, n)
	validCount := 0
	for i := 0; i < n; i++ {
		c := scored[i].c
		pk, err := bls.PublicKeyFromBytes(c.OperatorPubKey[:])
		valid := err == nil
		m := Member{ProTxHash: c.ProTxHash, OperatorPubKey: c.OperatorPubKey, Valid: valid}
		members = append(members, m)
		if valid {
			pubkeys = append(pubkeys, pk)
			validCount++
		}
	}

	aggPK, err := bls.AggregatePubkeys(pubkeys)
	if err != nil && validCount > 0 {
		return nil, cerrors.Wrap(cerrors.CryptoFailure, "aggregating quorum operator pubkeys", err)
	}

	quorumHash := domainHash(quorumDST, []byte{params.Type}, blockHash[:])

	return &Quorum{
		Type:             params.Type,
		QuorumHash:       quorumHash,
		Height:           height,
		Members:          members,
		AggregatedPubKey: aggPK,
		ValidMemberCount: validCount,
	}, nil
}

// SelectForRequest implements §4.4's "quorum selection for a request":
// among active, pick the one minimizing H("LLMQ_SELECT" ‖ quorumHash ‖
// rid). Deterministic across peers given the same active set.
func SelectForRequest(active []*Quorum, requestID chainhash.Hash) (*Quorum, error) {
	if len(active) == 0 {
		return nil, cerrors.New(cerrors.NotFound, "no active quorum to select from")
	}
	best := active[0]
	bestScore := domainHash(selectDST, best.QuorumHash[:], requestID[:])
	for _, q := range active[1:] {
		s := domainHash(selectDST, q.QuorumHash[:], requestID[:])
		if bytes.Compare(s[:], bestScore[:]) < 0 {
			best, bestScore = q, s
		}
	}
	return best, nil
}

func domainHash(dst string, parts ...[]byte) chainhash.Hash {
	var buf bytes.Buffer
	buf.WriteString(dst)
	for _, p := range parts {
		buf.Write(p)
	}
	return chainhash.HashH(buf.Bytes())
}
