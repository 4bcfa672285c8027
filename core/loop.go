package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConsensusLoop is the single-task driver coordinating the mempool, block
// producer and consensus engine (spec §4.6), grounded on original_source's
// network/consensus_loop.rs (shutdown watch-channel -> close(chan struct{})
// pattern, single-validator self-vote path) and the teacher's ticker-driven
// subBlockLoop/blockLoop goroutines in consensus.go.
type ConsensusLoop struct {
	cfg      LoopConfig
	engine   *ConsensusEngine
	producer *BlockProducer
	mempool  *Mempool
	signer   Signer
	log      *logrus.Logger

	shutdown chan struct{}

	consecutiveSkips uint64
}

// NewConsensusLoop wires a driver over its collaborators. log may be nil.
// Vote signature verification during finalization looks public keys up
// from the engine's own validator set (populated via ValidatorSet.Add),
// not from the loop, so multi-validator deployments need only keep that
// set current.
func NewConsensusLoop(cfg LoopConfig, engine *ConsensusEngine, producer *BlockProducer, mempool *Mempool, signer Signer, log *logrus.Logger) *ConsensusLoop {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConsensusLoop{
		cfg:      cfg,
		engine:   engine,
		producer: producer,
		mempool:  mempool,
		signer:   signer,
		log:      log,
		shutdown: make(chan struct{}),
	}
}

// Shutdown signals the loop to exit at the next round boundary or sleep
// wake; in-progress rounds complete before it does. Calls after the first
// are no-ops.
func (l *ConsensusLoop) Shutdown() {
	select {
	case <-l.shutdown:
		// already closed
	default:
		close(l.shutdown)
	}
}

// RunSingleRound executes exactly one round of spec §4.6's procedure. If
// the driver is not the scheduled proposer for the current round it
// returns skipped=true and a nil error: a multi-validator deployment would
// wait for a peer's block via external gossip, which is out of the core's
// scope.
func (l *ConsensusLoop) RunSingleRound() (finalized *FinalizedBlock, skipped bool, err error) {
	roundID := uuid.NewString()
	log := l.log.WithField("round_id", roundID)

	scheduled, err := l.engine.ScheduledProposer()
	if err != nil {
		return nil, false, fmt.Errorf("run round: %w", err)
	}
	if scheduled != l.signer.Address() {
		log.Debug("loop: not scheduled proposer, skipping round")
		return nil, true, nil
	}

	tip, err := LoadChainTip(l.producer.Store())
	if err != nil {
		return nil, false, fmt.Errorf("run round: load chain tip: %w", err)
	}
	l.engine.SetChainState(tip.Header.Height+1, tip.Header.Hash)

	pb, err := l.producer.ProduceBlock(l.cfg.MaxTxsPerBlock)
	if err != nil {
		return nil, false, fmt.Errorf("run round: produce block: %w", err)
	}

	round := l.engine.CurrentRound()
	selfVote, err := SignVote(l.signer, pb.Block.Header.Hash, round)
	if err != nil {
		return nil, false, fmt.Errorf("run round: sign self vote: %w", err)
	}

	finalized, err = l.engine.FinalizeBlock(&pb.Block, []Vote{selfVote})
	if err != nil {
		return nil, false, fmt.Errorf("run round: finalize block: %w", err)
	}

	if err := l.producer.CommitBlock(pb); err != nil {
		return nil, false, fmt.Errorf("run round: commit block: %w", err)
	}

	log.WithField("height", finalized.Block.Header.Height).Info("loop: round finalized")
	return finalized, false, nil
}

// Run drives rounds until ctx is cancelled or Shutdown is called. After
// MaxRoundsWithoutBlock consecutive skipped rounds it calls
// engine.AdvanceRound to rotate the proposer schedule, rather than waiting
// indefinitely for a round that will never be this driver's turn.
func (l *ConsensusLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.shutdown:
			return nil
		default:
		}

		_, skipped, err := l.RunSingleRound()
		if err != nil {
			l.log.WithError(err).Warn("loop: round failed, will retry next cadence")
		}

		if skipped {
			l.consecutiveSkips++
			if l.cfg.MaxRoundsWithoutBlock > 0 && l.consecutiveSkips >= l.cfg.MaxRoundsWithoutBlock {
				l.log.WithField("skips", l.consecutiveSkips).Info("loop: advancing round after max consecutive skips")
				l.engine.AdvanceRound()
				l.consecutiveSkips = 0
			}
		} else {
			l.consecutiveSkips = 0
		}

		delay := time.Duration(l.cfg.BlockTimeMS) * time.Millisecond
		if l.mempool.Len() == 0 {
			delay += time.Duration(l.cfg.EmptyBlockDelayMS) * time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-l.shutdown:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
