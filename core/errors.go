package core

import "errors"

// Block structural errors (spec §3/§8 P3).
var (
	ErrBlockHashMismatch    = errors.New("block: header hash does not match recomputed hash")
	ErrTxRootMismatch       = errors.New("block: tx_root does not match recomputed merkle root")
	ErrGenesisParentNotZero = errors.New("block: genesis block must have a zero parent hash")
)

// Consensus engine errors (spec §4.4/§7).
var (
	ErrUnauthorizedProposer  = errors.New("consensus: caller is not the scheduled proposer for this round")
	ErrTooManyTransactions   = errors.New("consensus: block exceeds max_block_transactions")
	ErrHeightMismatch        = errors.New("consensus: block height does not match expected next height")
	ErrParentMismatch        = errors.New("consensus: block parent_hash does not match last finalized hash")
	ErrProposerNotActive     = errors.New("consensus: proposer is not an active validator")
	ErrProposerSignatureBad  = errors.New("consensus: proposer signature does not verify")
	ErrDuplicateVote         = errors.New("consensus: duplicate vote from validator")
	ErrVoteFromNonValidator  = errors.New("consensus: vote from an address outside the active validator set")
	ErrInvalidVote           = errors.New("consensus: vote signature does not verify")
	ErrInsufficientVotes     = errors.New("consensus: valid vote count below quorum threshold")
	ErrNoActiveValidators    = errors.New("consensus: validator set has no active members")
)

// Block producer errors (spec §4.5/§7).
var (
	ErrEmptyMempool  = errors.New("producer: mempool has no pending transactions")
	ErrSigningFailed = errors.New("producer: failed to sign produced block header")
)
