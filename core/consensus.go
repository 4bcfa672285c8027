package core

import (
	"encoding/binary"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ValidatorSet holds the active and inactive validators the consensus
// engine schedules proposers and counts votes against. Grounded on
// original_source's network/consensus.rs ValidatorSet, adapted from the
// teacher's stake-sorted authority-set idiom (AuthoritySet in
// common_structs.go).
type ValidatorSet struct {
	mu         sync.RWMutex
	validators []ValidatorInfo
}

// NewValidatorSet returns an empty set.
func NewValidatorSet() *ValidatorSet {
	return &ValidatorSet{}
}

// sortLocked keeps validators ordered by stake descending, ties broken by
// address ascending, matching the deterministic proposer schedule spec
// §4.4 requires. Caller must hold mu.
func (vs *ValidatorSet) sortLocked() {
	sort.SliceStable(vs.validators, func(i, j int) bool {
		a, b := vs.validators[i], vs.validators[j]
		if a.Stake != b.Stake {
			return a.Stake > b.Stake
		}
		return lessAddress(a.Address, b.Address)
	})
}

func lessAddress(a, b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Add inserts or replaces a validator by address.
func (vs *ValidatorSet) Add(v ValidatorInfo) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for i := range vs.validators {
		if vs.validators[i].Address == v.Address {
			vs.validators[i] = v
			vs.sortLocked()
			return
		}
	}
	vs.validators = append(vs.validators, v)
	vs.sortLocked()
}

// Remove drops the validator at addr, if present.
func (vs *ValidatorSet) Remove(addr Address) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for i := range vs.validators {
		if vs.validators[i].Address == addr {
			vs.validators = append(vs.validators[:i], vs.validators[i+1:]...)
			return
		}
	}
}

// List returns a copy of every validator, active or not, in schedule
// order.
func (vs *ValidatorSet) List() []ValidatorInfo {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]ValidatorInfo, len(vs.validators))
	copy(out, vs.validators)
	return out
}

// activeLocked returns the active subset, in schedule order. Caller must
// hold mu (read or write).
func (vs *ValidatorSet) activeLocked() []ValidatorInfo {
	var out []ValidatorInfo
	for _, v := range vs.validators {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

// ProposerForRound returns the deterministic round-robin proposer for
// round r: index r mod len(active), over the active subset in stake-sorted
// order. No grinding/VRF (spec §4.4).
func (vs *ValidatorSet) ProposerForRound(r uint64) (Address, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	active := vs.activeLocked()
	if len(active) == 0 {
		return Address{}, ErrNoActiveValidators
	}
	return active[r%uint64(len(active))].Address, nil
}

// QuorumThreshold returns floor(2*N/3)+1 where N is the active validator
// count, or 0 if there are no active validators (spec §4.4/§8 P9).
func (vs *ValidatorSet) QuorumThreshold() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	n := len(vs.activeLocked())
	if n == 0 {
		return 0
	}
	return (2*n)/3 + 1
}

// Contains reports whether addr is an active validator.
func (vs *ValidatorSet) Contains(addr Address) bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	for _, v := range vs.activeLocked() {
		if v.Address == addr {
			return true
		}
	}
	return false
}

// TotalStake sums the stake of every active validator.
func (vs *ValidatorSet) TotalStake() uint64 {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	var total uint64
	for _, v := range vs.activeLocked() {
		total += v.Stake
	}
	return total
}

// ActiveCount returns the number of active validators.
func (vs *ValidatorSet) ActiveCount() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.activeLocked())
}

// incrementProposed bumps the ProposedCount of addr. Caller must hold no
// external lock; this acquires its own.
func (vs *ValidatorSet) incrementProposed(addr Address) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for i := range vs.validators {
		if vs.validators[i].Address == addr {
			vs.validators[i].ProposedCount++
			return
		}
	}
}

func (vs *ValidatorSet) incrementVoted(addr Address) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for i := range vs.validators {
		if vs.validators[i].Address == addr {
			vs.validators[i].VotedCount++
			return
		}
	}
}

// voteImage is the exact signed byte image of a Vote: BlockHash ||
// Round (little-endian u64), per spec §6.
func voteImage(blockHash Hash32, round uint64) []byte {
	buf := make([]byte, 32+8)
	copy(buf[:32], blockHash[:])
	binary.LittleEndian.PutUint64(buf[32:], round)
	return buf
}

// SignVote produces a Vote from validator for (blockHash, round).
func SignVote(signer Signer, blockHash Hash32, round uint64) (Vote, error) {
	sig, err := signer.Sign(voteImage(blockHash, round))
	if err != nil {
		return Vote{}, err
	}
	return Vote{Validator: signer.Address(), BlockHash: blockHash, Round: round, Signature: sig}, nil
}

// headerCacheSize bounds the LRU of recently finalized header hashes,
// readable through CachedHeaderHash. ValidateBlock does not consult it: it
// checks the parent hash against the engine's lastHash.
const headerCacheSize = 256

// ConsensusEngine drives proposer scheduling, block validation and
// finalization per spec §4.4. propose_block/validate_block are reader
// operations; finalize_block/advance_round/update_validator_set/
// set_chain_state take the writer lock (spec §5).
type ConsensusEngine struct {
	mu sync.RWMutex

	cfg           ConsensusConfig
	validators    *ValidatorSet
	verifier      Verifier
	log           *logrus.Logger
	headerCache   *lru.Cache[uint64, Hash32]

	nextHeight   uint64
	lastHash     Hash32
	currentRound uint64
	phase        ConsensusRound
}

// NewConsensusEngine constructs an engine over vs, starting at height 1
// with lastHash set to the genesis block's hash.
func NewConsensusEngine(cfg ConsensusConfig, vs *ValidatorSet, verifier Verifier, log *logrus.Logger) *ConsensusEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if verifier == nil {
		verifier = defaultVerifier
	}
	cache, _ := lru.New[uint64, Hash32](headerCacheSize)
	genesis := GenesisBlock()
	return &ConsensusEngine{
		cfg:         cfg,
		validators:  vs,
		verifier:    verifier,
		log:         log,
		headerCache: cache,
		nextHeight:  1,
		lastHash:    genesis.Header.Hash,
		phase:       RoundPropose,
	}
}

// SetChainState reinitializes the engine's chain tip after loading from
// persistence (spec §4.4).
func (e *ConsensusEngine) SetChainState(height uint64, lastHash Hash32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextHeight = height
	e.lastHash = lastHash
}

// UpdateValidatorSet atomically swaps the active validator set. This is
// the epoch-rotation hook spec §1/§9 describes as policy-external: no
// rotation schedule lives here.
func (e *ConsensusEngine) UpdateValidatorSet(vs *ValidatorSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators = vs
}

// CurrentRound returns the round the engine is currently scheduling for.
func (e *ConsensusEngine) CurrentRound() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentRound
}

// NextHeight returns the height the engine expects the next block to
// carry.
func (e *ConsensusEngine) NextHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nextHeight
}

// LastHash returns the hash of the last finalized block.
func (e *ConsensusEngine) LastHash() Hash32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastHash
}

// AdvanceRound rotates the proposer schedule without finalizing a block,
// for use when the scheduled proposer for a round fails to produce one in
// time (spec §5 "external driver may call advance_round to rotate
// proposer").
func (e *ConsensusEngine) AdvanceRound() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentRound++
	e.phase = RoundPropose
}

// ProposeBlock builds an unsigned-except-header block for the caller,
// provided the caller is the scheduled proposer for the current round
// (spec §4.4). It does not touch mempool or state; producer.go calls this
// after selecting and executing transactions.
func (e *ConsensusEngine) ProposeBlock(txs []Transaction, stateRoot Hash32, proposer Signer) (Block, error) {
	e.mu.RLock()
	round := e.currentRound
	nextHeight := e.nextHeight
	lastHash := e.lastHash
	vs := e.validators
	e.mu.RUnlock()

	scheduled, err := vs.ProposerForRound(round)
	if err != nil {
		return Block{}, err
	}
	if scheduled != proposer.Address() {
		return Block{}, ErrUnauthorizedProposer
	}
	if len(txs) > e.cfg.MaxBlockTransactions {
		return Block{}, ErrTooManyTransactions
	}

	header := BlockHeader{
		Height:      nextHeight,
		ParentHash:  lastHash,
		TimestampMs: nowMillis(),
		Proposer:    proposer.Address(),
		StateRoot:   stateRoot,
		TxRoot:      TxRoot(txs),
	}
	header.Hash = RecomputeHeaderHash(&header)
	sig, err := proposer.Sign(HeaderImage(&header))
	if err != nil {
		return Block{}, ErrSigningFailed
	}
	header.Signature = sig

	return Block{Header: header, Transactions: txs}, nil
}

// ValidateBlock checks block against the engine's expected chain state
// and the active validator set (spec §4.4).
func (e *ConsensusEngine) ValidateBlock(block *Block) error {
	e.mu.RLock()
	nextHeight := e.nextHeight
	lastHash := e.lastHash
	vs := e.validators
	maxTxs := e.cfg.MaxBlockTransactions
	e.mu.RUnlock()

	if block.Header.Height != nextHeight {
		return ErrHeightMismatch
	}
	if block.Header.ParentHash != lastHash {
		return ErrParentMismatch
	}
	if !vs.Contains(block.Header.Proposer) {
		return ErrProposerNotActive
	}
	if len(block.Transactions) > maxTxs {
		return ErrTooManyTransactions
	}
	if err := VerifyBlockStructure(block); err != nil {
		return err
	}
	proposerInfo := findValidator(vs, block.Header.Proposer)
	if proposerInfo == nil {
		return ErrProposerNotActive
	}
	headerNoSig := block.Header
	headerNoSig.Signature = nil
	if len(proposerInfo.PublicKey) == 0 || !e.verifier.Verify(proposerInfo.PublicKey, HeaderImage(&headerNoSig), block.Header.Signature) {
		return ErrProposerSignatureBad
	}
	return nil
}

func findValidator(vs *ValidatorSet, addr Address) *ValidatorInfo {
	for _, v := range vs.List() {
		if v.Address == addr {
			v := v
			return &v
		}
	}
	return nil
}

// verifyVotesConcurrently checks every candidate vote's signature against
// its validator's known public key, fanning the cryptographic verify
// calls out across an errgroup since each is independent and the
// validator set can be large. Every verification runs to completion; the
// first error any of them returned is reported. Caller must already hold
// e.mu.
func (e *ConsensusEngine) verifyVotesConcurrently(candidates []Vote) ([]Vote, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var g errgroup.Group
	for i := range candidates {
		v := candidates[i]
		g.Go(func() error {
			info := findValidator(e.validators, v.Validator)
			if info == nil || len(info.PublicKey) == 0 {
				return ErrInvalidVote
			}
			if !e.verifier.Verify(info.PublicKey, voteImage(v.BlockHash, v.Round), v.Signature) {
				return ErrInvalidVote
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// FinalizeBlock filters votes down to those matching block.Hash, rejects
// duplicate or invalid votes, and finalizes the block if the retained
// valid count reaches quorum (spec §4.4/§8 P9). Each retained vote's
// validator must carry a known PublicKey in the active validator set
// (wired via ValidatorSet.Add); a validator with no known key can never
// contribute a valid vote.
func (e *ConsensusEngine) FinalizeBlock(block *Block, votes []Vote) (*FinalizedBlock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[Address]bool, len(votes))
	var candidates []Vote
	for _, v := range votes {
		if v.BlockHash != block.Header.Hash {
			continue
		}
		if seen[v.Validator] {
			return nil, ErrDuplicateVote
		}
		seen[v.Validator] = true
		if !e.validators.Contains(v.Validator) {
			return nil, ErrVoteFromNonValidator
		}
		candidates = append(candidates, v)
	}

	retained, err := e.verifyVotesConcurrently(candidates)
	if err != nil {
		return nil, err
	}

	threshold := e.validators.QuorumThreshold()
	if threshold == 0 || len(retained) < threshold {
		return nil, ErrInsufficientVotes
	}

	e.nextHeight = block.Header.Height + 1
	e.lastHash = block.Header.Hash
	e.currentRound++
	e.phase = RoundPropose
	if e.headerCache != nil {
		e.headerCache.Add(block.Header.Height, block.Header.Hash)
	}
	e.validators.incrementProposed(block.Header.Proposer)
	for _, v := range retained {
		e.validators.incrementVoted(v.Validator)
	}

	e.log.WithFields(logrus.Fields{
		"height": block.Header.Height,
		"hash":   block.Header.Hash.String(),
		"votes":  len(retained),
	}).Info("consensus: block finalized")

	return &FinalizedBlock{Block: *block, Votes: retained, Round: e.currentRound - 1}, nil
}

// ScheduledProposer returns the address scheduled to propose the current
// round.
func (e *ConsensusEngine) ScheduledProposer() (Address, error) {
	e.mu.RLock()
	round := e.currentRound
	vs := e.validators
	e.mu.RUnlock()
	return vs.ProposerForRound(round)
}

// CachedHeaderHash returns the finalized hash recorded for height, if it
// is still present in the LRU.
func (e *ConsensusEngine) CachedHeaderHash(height uint64) (Hash32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.headerCache == nil {
		return Hash32{}, false
	}
	return e.headerCache.Get(height)
}
