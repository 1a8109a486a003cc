// Package chaincfg holds the network-parameterized consensus constants the
// rest of the module needs, the same role chaincfg/params.go plays for
// btcd and claimtrie/param/general.go plays for claimtrie: one struct per
// network, selected once at startup and read everywhere else.
package chaincfg

// LLMQParams describes one recognized LLMQ type from §3.3.
type LLMQParams struct {
	Name              string
	Type              uint8
	Size              int // N: committee size
	MinSize           int // minimum valid members for the quorum to exist
	ThresholdPercent  int // signing threshold, percent of valid members
	DKGInterval       int32
	SigningActiveCount int // number of recent quorums of this type kept active
}

// Threshold returns ceil(validMemberCount * ThresholdPercent / 100).
func (p LLMQParams) Threshold(validMemberCount int) int {
	num := validMemberCount * p.ThresholdPercent
	th := num / 100
	if num%100 != 0 {
		th++
	}
	return th
}

// LLMQ type identifiers, matching §3.3's table order.
const (
	LLMQType50_60  uint8 = 1
	LLMQType400_60 uint8 = 2
	LLMQType400_85 uint8 = 3
	LLMQType100_67 uint8 = 4
)

// LLMQ50_60, LLMQ400_60, LLMQ400_85 and LLMQ100_67 are the recognized LLMQ
// parameter sets of §3.3.
var (
	LLMQ50_60 = LLMQParams{
		Name: "LLMQ_50_60", Type: LLMQType50_60,
		Size: 50, MinSize: 40, ThresholdPercent: 60,
		DKGInterval: 24, SigningActiveCount: 24,
	}
	LLMQ400_60 = LLMQParams{
		Name: "LLMQ_400_60", Type: LLMQType400_60,
		Size: 400, MinSize: 300, ThresholdPercent: 60,
		DKGInterval: 288, SigningActiveCount: 4,
	}
	LLMQ400_85 = LLMQParams{
		Name: "LLMQ_400_85", Type: LLMQType400_85,
		Size: 400, MinSize: 350, ThresholdPercent: 85,
		DKGInterval: 576, SigningActiveCount: 4,
	}
	LLMQ100_67 = LLMQParams{
		Name: "LLMQ_100_67", Type: LLMQType100_67,
		Size: 100, MinSize: 80, ThresholdPercent: 67,
		DKGInterval: 24, SigningActiveCount: 24,
	}
)

// LLMQByType indexes the recognized LLMQ parameter sets by their type id.
var LLMQByType = map[uint8]LLMQParams{
	LLMQType50_60:  LLMQ50_60,
	LLMQType400_60: LLMQ400_60,
	LLMQType400_85: LLMQ400_85,
	LLMQType100_67: LLMQ100_67,
}

// InstantSendLLMQType and ChainLockLLMQType pin which quorum type signs
// each message class, per §4.6 step 1 and §4.7 step 1.
const (
	InstantSendLLMQType = LLMQType50_60
	ChainLockLLMQType   = LLMQType400_60
)

// Params is the full set of consensus constants for one network.
type Params struct {
	Name string

	// Masternode collateral (§4.3 rule 1).
	CollateralAmount        int64
	CollateralConfirmations int32

	// PoSe scoring (§4.3 "PoSe scoring").
	PoSeBanThreshold  int32
	PoSeDefaultIncrement int32
	PoSeDecayInterval    int32 // blocks between decay passes
	PoSeDecayAmount      int32

	// Snapshot caching (§3.2, §4.3 "Caching").
	SnapshotLRUSize int

	// InstantSend (§4.6).
	InstantSendMaxInputs int

	// ChainLocks (§4.7 "Activation").
	ChainLockActivationHeight int32

	// HTLC policy bounds (§4.8 "Timeout bounds").
	HTLCMinTimeoutBlocks int32
	HTLCMaxTimeoutBlocks int32

	// Signing session bookkeeping (§4.5 "Cleanup", §5 "Cancellation").
	SigningSessionHorizon int32
}

// MainNetParams, TestNetParams and RegtestParams mirror the distinctions
// chaincfg/params.go draws between btcd's three networks; the consensus
// constants named literally in spec.md appear verbatim in MainNetParams.
var (
	MainNetParams = Params{
		Name: "mainnet",

		CollateralAmount:        10000 * 1e8,
		CollateralConfirmations: 15,

		PoSeBanThreshold:     100,
		PoSeDefaultIncrement: 66,
		PoSeDecayInterval:    576, // one LLMQ_400_85 DKG interval
		PoSeDecayAmount:      1,

		SnapshotLRUSize: 100,

		InstantSendMaxInputs: 32,

		ChainLockActivationHeight: 1000,

		HTLCMinTimeoutBlocks: 10,
		HTLCMaxTimeoutBlocks: 5040,

		SigningSessionHorizon: 100,
	}

	TestNetParams = Params{
		Name: "testnet",

		CollateralAmount:        1000 * 1e8,
		CollateralConfirmations: 1,

		PoSeBanThreshold:     100,
		PoSeDefaultIncrement: 66,
		PoSeDecayInterval:    576,
		PoSeDecayAmount:      1,

		SnapshotLRUSize: 100,

		InstantSendMaxInputs: 32,

		ChainLockActivationHeight: 100,

		HTLCMinTimeoutBlocks: 10,
		HTLCMaxTimeoutBlocks: 5040,

		SigningSessionHorizon: 100,
	}

	RegtestParams = Params{
		Name: "regtest",

		CollateralAmount:        100 * 1e8,
		CollateralConfirmations: 1,

		PoSeBanThreshold:     100,
		PoSeDefaultIncrement: 66,
		PoSeDecayInterval:    24,
		PoSeDecayAmount:      1,

		SnapshotLRUSize: 100,

		InstantSendMaxInputs: 32,

		ChainLockActivationHeight: 1,

		HTLCMinTimeoutBlocks: 10,
		HTLCMaxTimeoutBlocks: 5040,

		SigningSessionHorizon: 100,
	}
)
