// Command novad is a thin devnet scaffold around the NOVA core: a
// single-validator consensus loop wired to a local bbolt store, outside
// the specified core per spec §1 (no RPC/gateway surface lives here).
// Grounded on the teacher's cmd/synnergy/main.go cobra wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nova.dev/core/core"
	"nova.dev/core/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "novad",
		Short: "NOVA settlement core devnet driver",
	}
	root.AddCommand(newDevnetCmd())
	return root
}

func newDevnetCmd() *cobra.Command {
	devnet := &cobra.Command{
		Use:   "devnet",
		Short: "Run a single-validator NOVA devnet",
	}
	devnet.AddCommand(newDevnetStartCmd())
	return devnet
}

func newDevnetStartCmd() *cobra.Command {
	var dbPath string
	var env string

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the consensus loop against a local bbolt store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevnet(dbPath, env)
		},
	}
	start.Flags().StringVar(&dbPath, "db", "./nova-devnet.db", "path to the bbolt store")
	start.Flags().StringVar(&env, "env", "", "environment overlay config name")
	return start
}

func runDevnet(dbPath, env string) error {
	log := logrus.StandardLogger()

	cfg, err := config.Load(env)
	if err != nil {
		log.WithError(err).Warn("novad: no config file found, using defaults")
		cfg = &config.Config{}
		cfg.Consensus.BlockTimeMS = 5_000
		cfg.Consensus.MinValidators = 1
		cfg.Consensus.MaxValidators = 100
		cfg.Consensus.MaxBlockTransactions = 1_000
		cfg.Mempool.MaxSize = 10_000
		cfg.Mempool.MaxPerSender = 100
		cfg.Mempool.ExpirySeconds = 3_600
		cfg.Loop.BlockTimeMS = 5_000
		cfg.Loop.MaxTxsPerBlock = 1_000
		cfg.Loop.EmptyBlockDelayMS = 1_000
		cfg.Loop.MaxRoundsWithoutBlock = 10
	}

	kv, err := core.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	signer, err := core.GenerateSigner()
	if err != nil {
		return fmt.Errorf("generate signer: %w", err)
	}

	bootstrapTree := core.NewStateTree(kv)
	if _, err := core.Bootstrap(kv, bootstrapTree, nil); err != nil {
		return fmt.Errorf("bootstrap chain: %w", err)
	}

	// Reconstruct account state and the chain tip from kv rather than
	// starting both from zero: a restart must not silently reset every
	// account balance/nonce and the engine's expected height (spec §4.1's
	// "committed account-state tree" survives a restart).
	sct, err := core.LoadStateTree(kv)
	if err != nil {
		return fmt.Errorf("load state tree: %w", err)
	}
	tip, err := core.LoadChainTip(kv)
	if err != nil {
		return fmt.Errorf("load chain tip: %w", err)
	}

	validators := core.NewValidatorSet()
	validators.Add(core.ValidatorInfo{
		Address:   signer.Address(),
		PublicKey: signer.PublicKey(),
		Stake:     uint64(cfg.Consensus.StakeRequirement),
		Active:    true,
	})

	engine := core.NewConsensusEngine(cfg.ConsensusConfig(), validators, nil, log)
	engine.SetChainState(tip.Header.Height+1, tip.Header.Hash)
	mempool := core.NewMempool(cfg.MempoolConfig(), log)
	producer := core.NewBlockProducer(kv, sct, mempool, engine, signer, log)
	loop := core.NewConsensusLoop(cfg.LoopConfig(), engine, producer, mempool, signer, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithField("proposer", signer.Address().String()).Info("novad: starting devnet consensus loop")
	return loop.Run(ctx)
}
