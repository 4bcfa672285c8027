package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrStateRootMismatch is returned by IngestBlock when re-executing a
// proposed block's transactions against the local state tree does not
// reproduce the header's declared state root.
var ErrStateRootMismatch = errors.New("ingest: recomputed state root does not match block header")

// Gateway is the thin external-facing surface spec §6 describes: block
// ingestion from gossip, vote accumulation toward quorum, and transaction
// submission into the mempool. It owns no network transport itself (P2P
// gossip and block dissemination are external collaborators per spec §1)
// — it is the seam a gossip layer calls into.
type Gateway struct {
	engine  *ConsensusEngine
	sct     *StateTree
	mempool *Mempool
	kv      *Store
	log     *logrus.Logger

	mu           sync.Mutex
	pendingVotes map[Hash32][]Vote
}

// NewGateway wires a Gateway over its collaborators. log may be nil.
func NewGateway(engine *ConsensusEngine, sct *StateTree, mempool *Mempool, kv *Store, log *logrus.Logger) *Gateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{
		engine:       engine,
		sct:          sct,
		mempool:      mempool,
		kv:           kv,
		log:          log,
		pendingVotes: make(map[Hash32][]Vote),
	}
}

// IngestBlock validates block against the engine's expected chain state,
// speculatively re-executes its transactions to confirm the declared
// state root, and — only once confirmed — adopts the resulting state and
// persists the block. It does not finalize the block; callers gather
// votes via SubmitVote and call TryFinalize once quorum may have been
// reached (spec §6: "execution-before-ingest" strict-consistency mode).
func (g *Gateway) IngestBlock(block Block) error {
	if err := g.engine.ValidateBlock(&block); err != nil {
		return fmt.Errorf("ingest block: %w", err)
	}

	trial := g.sct.Clone()
	for i := range block.Transactions {
		tx := block.Transactions[i]
		if tx.Type == TxTransfer && tx.Amount.Currency == CurrencyNOVA {
			if err := applyTransfer(trial, &tx); err != nil {
				return fmt.Errorf("ingest block: transaction %s: %w", tx.ID, err)
			}
		}
	}
	if trial.Root() != block.Header.StateRoot {
		return ErrStateRootMismatch
	}

	batch := g.kv.NewBatch()
	batch.Put(NamespaceBlocks, heightKey(block.Header.Height), EncodeBlock(&block))
	batch.Put(NamespaceBlockHashes, block.Header.Hash[:], heightKey(block.Header.Height))
	for i := range block.Transactions {
		tx := block.Transactions[i]
		batch.Put(NamespaceTransactions, []byte(tx.ID), EncodeTransaction(&tx))
	}
	batch.Put(NamespaceMetadata, []byte(MetadataLatestHeight), heightKey(block.Header.Height))
	trial.StageInto(batch)

	if err := batch.Apply(); err != nil {
		return fmt.Errorf("ingest block: %w", err)
	}
	if err := g.kv.Flush(); err != nil {
		return fmt.Errorf("ingest block: %w", err)
	}
	g.sct.AdoptFrom(trial)

	ids := make([]string, len(block.Transactions))
	for i := range block.Transactions {
		ids[i] = block.Transactions[i].ID
	}
	g.mempool.RemoveBatch(ids)

	g.log.WithField("height", block.Header.Height).Info("gateway: ingested block")
	return nil
}

// SubmitVote accumulates vote toward quorum for the block it names.
// Signature verification happens inside FinalizeBlock against each
// validator's known public key, so SubmitVote itself only buffers.
func (g *Gateway) SubmitVote(vote Vote) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingVotes[vote.BlockHash] = append(g.pendingVotes[vote.BlockHash], vote)
}

// TryFinalize attempts to finalize block using whatever votes have been
// accumulated for its hash via SubmitVote. On success the accumulated
// votes for that hash are cleared.
func (g *Gateway) TryFinalize(block *Block) (*FinalizedBlock, error) {
	g.mu.Lock()
	votes := append([]Vote(nil), g.pendingVotes[block.Header.Hash]...)
	g.mu.Unlock()

	finalized, err := g.engine.FinalizeBlock(block, votes)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	delete(g.pendingVotes, block.Header.Hash)
	g.mu.Unlock()

	return finalized, nil
}

// SubmitTransaction runs stateless verification and, on success, admits
// tx into the mempool (spec §6).
func (g *Gateway) SubmitTransaction(tx Transaction) error {
	if err := VerifyStateless(&tx, time.Now()); err != nil {
		return fmt.Errorf("submit transaction: %w", err)
	}
	if err := g.mempool.Add(tx, nowUnix()); err != nil {
		return fmt.Errorf("submit transaction: %w", err)
	}
	return nil
}
