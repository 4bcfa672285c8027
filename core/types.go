// Package core implements the NOVA settlement core: mempool, state
// commitment tree, block producer, and consensus engine. Types that would
// otherwise force cyclic imports across the package live in this file,
// following the teacher's common_structs.go convention.
package core

import (
	"encoding/hex"
	"fmt"
)

// Hash32 is a 32-byte digest used for block hashes, state roots, tx roots
// and SCT node hashes.
type Hash32 [32]byte

// String returns the lowercase hex encoding of h.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero digest (used for genesis parent
// hashes and empty tx roots).
func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

// Address identifies an account. Key generation, encoding (Bech32 or
// otherwise) and signature primitives are treated as an external black box
// per the core scope; Address here is the 20-byte opaque identifier derived
// from a public key by the Signer implementation.
type Address [20]byte

// String returns the lowercase hex encoding of a, prefixed with "nova1" to
// distinguish it from a raw hash in logs.
func (a Address) String() string {
	return "nova1" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the all-zero address (genesis proposer
// placeholder).
func (a Address) IsZero() bool {
	return a == Address{}
}

// AddressFromHex parses the hex-encoded tail of a String()-formatted
// address, or a bare hex string, into an Address.
func AddressFromHex(s string) (Address, error) {
	if len(s) >= 5 && s[:5] == "nova1" {
		s = s[5:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	if len(b) != 20 {
		return Address{}, fmt.Errorf("decode address: want 20 bytes, got %d", len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Currency tags an Amount. Only CurrencyNOVA affects account balances;
// every other tag is carried opaquely.
type Currency string

// CurrencyNOVA is the only currency tag with core-level balance semantics.
const CurrencyNOVA Currency = "NOVA"

// Amount is a value tagged with a currency.
type Amount struct {
	Value    uint64
	Currency Currency
}

// AccountState is the per-account leaf value stored in the state
// commitment tree. Nonce is strictly non-decreasing; Frozen accounts may
// not be debited.
type AccountState struct {
	Nonce     uint64
	Balance   uint64
	Frozen    bool
	Auxiliary []byte
}

// TransactionType tags the variant of a Transaction. Only Transfer carries
// core-level balance semantics; every other variant is a deterministic
// passthrough no-op at this layer (see core/producer.go apply logic).
type TransactionType byte

const (
	TxTransfer TransactionType = iota
	TxCreditRequest
	TxCreditSettlement
	TxTokenMint
	TxTokenBurn
	TxConfidentialTransfer
)

// String renders t for logging.
func (t TransactionType) String() string {
	switch t {
	case TxTransfer:
		return "transfer"
	case TxCreditRequest:
		return "credit_request"
	case TxCreditSettlement:
		return "credit_settlement"
	case TxTokenMint:
		return "token_mint"
	case TxTokenBurn:
		return "token_burn"
	case TxConfidentialTransfer:
		return "confidential_transfer"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Transaction is the canonical NOVA transaction envelope. ID,
// SenderPublicKey, Signature, Proof and AmountCommitment are excluded from
// the canonical signing image (see CanonicalBytes in transaction.go).
type Transaction struct {
	ID               string
	Version          uint16
	Type             TransactionType
	Sender           Address
	Receiver         Address
	Amount           Amount
	Fee              uint64
	Nonce            uint64
	TimestampMs      uint64
	Payload          []byte
	SenderPublicKey  []byte
	Signature        []byte
	Proof            []byte
	AmountCommitment []byte
}

// BlockHeader is the signed envelope over a block's metadata. Hash covers
// every field except Signature.
type BlockHeader struct {
	Height     uint64
	Hash       Hash32
	ParentHash Hash32
	TimestampMs uint64
	Proposer   Address
	StateRoot  Hash32
	TxRoot     Hash32
	Signature  []byte
}

// Block pairs a header with its ordered transaction body.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// Vote is a single validator's signed endorsement of a block at a round.
// The signed image is exactly BlockHash || Round (little-endian), binding
// the vote to one block and one round so it cannot be replayed across
// rounds.
type Vote struct {
	Validator Address
	BlockHash Hash32
	Round     uint64
	Signature []byte
}

// ValidatorInfo describes one member of the active validator set.
// PublicKey is the raw key the engine verifies proposer header signatures
// and vote signatures against; the core treats key distribution (how a
// deployment learns a peer validator's key) as external, but once known
// it travels with the rest of a validator's bookkeeping.
type ValidatorInfo struct {
	Address       Address
	PublicKey     []byte
	Stake         uint64
	Active        bool
	ProposedCount uint64
	VotedCount    uint64
}

// MempoolEntry wraps a transaction with the bookkeeping the mempool needs
// for priority ordering and expiry.
type MempoolEntry struct {
	Transaction Transaction
	AddedAt     int64 // unix seconds
	FeePerByte  uint64
}

// TxResult records the outcome of attempting to apply one transaction
// during block production. Failures are data, not exceptions: a failed
// result means the transaction was dropped from the block body, not that
// production itself failed.
type TxResult struct {
	ID      string
	Success bool
	Error   string
}

// FinalizedBlock is the result of a successful finalize_block call: the
// block together with the votes that reached quorum for it.
type FinalizedBlock struct {
	Block Block
	Votes []Vote
	Round uint64
}

// ConsensusRound names one phase of the four-phase BFT state machine.
// Phase transitions are informational in the single-node driver path;
// finalize_block is the sole authoritative finalization rule (spec §9).
type ConsensusRound byte

const (
	RoundPropose ConsensusRound = iota
	RoundPrevote
	RoundPrecommit
	RoundCommit
)

// Next returns the phase following r, wrapping Commit back to Propose.
func (r ConsensusRound) Next() ConsensusRound {
	return (r + 1) % 4
}

// String renders r for logging.
func (r ConsensusRound) String() string {
	switch r {
	case RoundPropose:
		return "propose"
	case RoundPrevote:
		return "prevote"
	case RoundPrecommit:
		return "precommit"
	case RoundCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// ConsensusConfig bounds the behaviour of the consensus engine.
type ConsensusConfig struct {
	BlockTimeMS          uint64
	MinValidators        int
	MaxValidators        int
	StakeRequirement     uint64
	EpochLength          uint64
	MaxBlockTransactions int
	RoundTimeoutMS       uint64
}

// DefaultConsensusConfig mirrors original_source's ConsensusConfig::default().
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		BlockTimeMS:          5_000,
		MinValidators:        4,
		MaxValidators:        100,
		StakeRequirement:     1_000_000_000,
		EpochLength:          100,
		MaxBlockTransactions: 1_000,
		RoundTimeoutMS:       5_000,
	}
}

// MempoolConfig bounds the behaviour of the mempool.
type MempoolConfig struct {
	MaxSize       int
	MaxPerSender  int
	ExpirySeconds int64
	MinFee        uint64
}

// DefaultMempoolConfig mirrors original_source's MempoolConfig::default().
func DefaultMempoolConfig() MempoolConfig {
	return MempoolConfig{
		MaxSize:       10_000,
		MaxPerSender:  100,
		ExpirySeconds: 3_600,
		MinFee:        0,
	}
}

// LoopConfig bounds the behaviour of the consensus driver loop.
type LoopConfig struct {
	BlockTimeMS           uint64
	MaxTxsPerBlock        int
	EmptyBlockDelayMS     uint64
	MaxRoundsWithoutBlock uint64
}

// DefaultLoopConfig mirrors original_source's ConsensusLoopConfig::default().
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		BlockTimeMS:           5_000,
		MaxTxsPerBlock:        1_000,
		EmptyBlockDelayMS:     1_000,
		MaxRoundsWithoutBlock: 10,
	}
}
