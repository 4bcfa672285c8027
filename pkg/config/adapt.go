package config

import "nova.dev/core/core"

// ConsensusConfig converts the loaded Consensus section into the domain
// type core/consensus.go operates on.
func (c *Config) ConsensusConfig() core.ConsensusConfig {
	return core.ConsensusConfig{
		BlockTimeMS:          uint64(c.Consensus.BlockTimeMS),
		MinValidators:        c.Consensus.MinValidators,
		MaxValidators:        c.Consensus.MaxValidators,
		StakeRequirement:     uint64(c.Consensus.StakeRequirement),
		EpochLength:          uint64(c.Consensus.EpochLength),
		MaxBlockTransactions: c.Consensus.MaxBlockTransactions,
		RoundTimeoutMS:       uint64(c.Consensus.RoundTimeoutMS),
	}
}

// MempoolConfig converts the loaded Mempool section into the domain type
// core/mempool.go operates on.
func (c *Config) MempoolConfig() core.MempoolConfig {
	return core.MempoolConfig{
		MaxSize:       c.Mempool.MaxSize,
		MaxPerSender:  c.Mempool.MaxPerSender,
		ExpirySeconds: c.Mempool.ExpirySeconds,
		MinFee:        uint64(c.Mempool.MinFee),
	}
}

// LoopConfig converts the loaded Loop section into the domain type
// core/loop.go operates on.
func (c *Config) LoopConfig() core.LoopConfig {
	return core.LoopConfig{
		BlockTimeMS:           uint64(c.Loop.BlockTimeMS),
		MaxTxsPerBlock:        c.Loop.MaxTxsPerBlock,
		EmptyBlockDelayMS:     uint64(c.Loop.EmptyBlockDelayMS),
		MaxRoundsWithoutBlock: uint64(c.Loop.MaxRoundsWithoutBlock),
	}
}
