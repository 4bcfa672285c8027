package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Execution errors (spec §4.5/§7). These are never returned from
// ProduceBlock itself — a failing transfer is recorded as a TxResult and
// excluded from the block body, not propagated as an error.
var (
	errAccountFrozen      = errors.New("producer: sender account is frozen")
	errNonceMismatch      = errors.New("producer: transaction nonce does not match sender's current nonce")
	errInsufficientFunds  = errors.New("producer: sender balance is insufficient")
	errBalanceOverflow    = errors.New("producer: receiver balance would overflow")
)

// ProducedBlock is the output of a single production pipeline run: the
// assembled, signed block, the per-transaction outcomes for every
// candidate considered (including dropped ones), and the state root the
// block's header carries.
type ProducedBlock struct {
	Block     Block
	TxResults []TxResult
	StateRoot Hash32
}

// BlockProducer runs the SELECT -> EXECUTE -> CAPTURE -> BUILD -> SIGN
// pipeline of spec §4.5, grounded on original_source's
// network/producer.rs staging and the teacher's applyBlock/AddBlock
// commit-then-drain ordering in ledger.go.
type BlockProducer struct {
	kv      *Store
	sct     *StateTree
	mempool *Mempool
	engine  *ConsensusEngine
	signer  Signer
	log     *logrus.Logger
}

// NewBlockProducer wires a producer over its collaborators. log may be
// nil.
func NewBlockProducer(kv *Store, sct *StateTree, mempool *Mempool, engine *ConsensusEngine, signer Signer, log *logrus.Logger) *BlockProducer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BlockProducer{kv: kv, sct: sct, mempool: mempool, engine: engine, signer: signer, log: log}
}

// Store exposes the producer's kv target so a driver (core/loop.go) can
// load the chain tip from the same persistence boundary the producer
// commits blocks into.
func (p *BlockProducer) Store() *Store {
	return p.kv
}

// applyTransfer is the sole state-mutating execution path: Transfer-type
// transactions in the NOVA currency. It enforces, in order: sender not
// frozen, nonce match, sufficient balance, no receiver-balance overflow.
// Applying strictly in candidate (priority) order against live account
// state is what gives "ascending nonce order, gap drops later txs" its
// meaning without any separate per-sender bookkeeping: a transaction
// whose nonce doesn't match the account's current nonce simply fails and
// never advances that nonce, so any later same-sender transaction in the
// batch that depended on it failing through also fails its own nonce
// check.
func applyTransfer(sct *StateTree, tx *Transaction) error {
	sender := sct.Get(tx.Sender)
	if sender.Frozen {
		return errAccountFrozen
	}
	if tx.Nonce != sender.Nonce {
		return errNonceMismatch
	}
	if sender.Balance < tx.Amount.Value {
		return errInsufficientFunds
	}
	receiver := sct.Get(tx.Receiver)
	if receiver.Balance+tx.Amount.Value < receiver.Balance {
		return errBalanceOverflow
	}

	sender.Balance -= tx.Amount.Value
	sender.Nonce++
	sct.Put(tx.Sender, sender)

	receiver.Balance += tx.Amount.Value
	sct.Put(tx.Receiver, receiver)
	return nil
}

// ProduceBlock runs the full pipeline: select up to maxTxs candidates from
// the mempool, execute each deterministically against the state tree,
// capture the resulting root, then delegate to the consensus engine to
// build and sign the header. An empty mempool is not an error: it simply
// yields an empty block.
func (p *BlockProducer) ProduceBlock(maxTxs int) (*ProducedBlock, error) {
	candidates := p.mempool.Select(maxTxs)

	results := make([]TxResult, 0, len(candidates))
	included := make([]Transaction, 0, len(candidates))

	for i := range candidates {
		tx := candidates[i]
		var execErr error
		if tx.Type == TxTransfer && tx.Amount.Currency == CurrencyNOVA {
			execErr = applyTransfer(p.sct, &tx)
		}
		if execErr != nil {
			results = append(results, TxResult{ID: tx.ID, Success: false, Error: execErr.Error()})
			p.log.WithFields(logrus.Fields{"tx": tx.ID, "error": execErr}).Debug("producer: transaction dropped from block")
			continue
		}
		results = append(results, TxResult{ID: tx.ID, Success: true})
		included = append(included, tx)
	}

	stateRoot := p.sct.Root()

	block, err := p.engine.ProposeBlock(included, stateRoot, p.signer)
	if err != nil {
		return nil, fmt.Errorf("produce block: %w", err)
	}

	return &ProducedBlock{Block: block, TxResults: results, StateRoot: stateRoot}, nil
}

// CommitBlock atomically persists pb.Block across the blocks,
// block_hashes, transactions and metadata namespaces, together with every
// account the EXECUTE stage touched (accounts and SCT-node namespaces, via
// StateTree.StageInto) in a single batch, flushes for durability, and only
// then drains the block's transaction ids from the mempool. This ordering
// (persist-before-drain) is what makes crash recovery safe (spec §8 P10):
// if the process dies after persist but before drain, the same
// transactions remain pending and will fail nonce-mismatch on
// re-execution rather than double-apply. Folding the SCT writes into the
// same batch as the block is what makes a crash before this point leave
// neither the block nor its account-state effects on disk (spec §4.1: a
// crash before commit discards the uncommitted root).
func (p *BlockProducer) CommitBlock(pb *ProducedBlock) error {
	block := pb.Block
	batch := p.kv.NewBatch()
	batch.Put(NamespaceBlocks, heightKey(block.Header.Height), EncodeBlock(&block))
	batch.Put(NamespaceBlockHashes, block.Header.Hash[:], heightKey(block.Header.Height))
	for i := range block.Transactions {
		tx := block.Transactions[i]
		batch.Put(NamespaceTransactions, []byte(tx.ID), EncodeTransaction(&tx))
	}
	batch.Put(NamespaceMetadata, []byte(MetadataLatestHeight), heightKey(block.Header.Height))
	p.sct.StageInto(batch)

	if err := batch.Apply(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	if err := p.kv.Flush(); err != nil {
		return fmt.Errorf("commit block: flush: %w", err)
	}
	p.sct.MarkClean()

	ids := make([]string, len(block.Transactions))
	for i := range block.Transactions {
		ids[i] = block.Transactions[i].ID
	}
	p.mempool.RemoveBatch(ids)

	p.log.WithFields(logrus.Fields{"height": block.Header.Height, "txs": len(block.Transactions)}).Info("producer: block committed")
	return nil
}
