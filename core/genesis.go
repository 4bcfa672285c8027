package core

import "fmt"

// GenesisAllocation seeds an account's initial balance at chain bootstrap.
// This is devnet/test scaffolding, not part of the genesis block's hash
// (the genesis state root is the fixed coinbase-derived constant from
// spec §3/§6 regardless of what a deployment chooses to allocate
// afterwards at height 1 onward).
type GenesisAllocation struct {
	Address Address
	Balance uint64
}

// Bootstrap persists the well-known genesis block into kv (if not already
// present) and applies any initial allocations to sct. It is the external
// initializer spec §4.4's set_chain_state exists for: callers load chain
// state from persistence, falling back to Bootstrap only for a brand new
// chain.
func Bootstrap(kv *Store, sct *StateTree, allocations []GenesisAllocation) (*Block, error) {
	genesis := GenesisBlock()

	_, exists, err := kv.Get(NamespaceBlocks, heightKey(0))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if !exists {
		batch := kv.NewBatch()
		batch.Put(NamespaceBlocks, heightKey(0), EncodeBlock(&genesis))
		batch.Put(NamespaceBlockHashes, genesis.Header.Hash[:], heightKey(0))
		batch.Put(NamespaceMetadata, []byte(MetadataLatestHeight), heightKey(0))
		if err := batch.Apply(); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		if err := kv.Flush(); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	if len(allocations) > 0 {
		for _, alloc := range allocations {
			state := sct.Get(alloc.Address)
			state.Balance = alloc.Balance
			sct.Put(alloc.Address, state)
		}
		if err := sct.FlushDirty(); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	return &genesis, nil
}

// LoadChainTip reads the latest committed block height and its header
// from kv, falling back to the genesis block if metadata is absent
// (spec §4.6 step 2).
func LoadChainTip(kv *Store) (Block, error) {
	raw, ok, err := kv.Get(NamespaceMetadata, []byte(MetadataLatestHeight))
	if err != nil {
		return Block{}, fmt.Errorf("load chain tip: %w", err)
	}
	if !ok {
		return GenesisBlock(), nil
	}
	if len(raw) != 8 {
		return Block{}, fmt.Errorf("load chain tip: malformed latest height value")
	}
	var height uint64
	for i := 0; i < 8; i++ {
		height = height<<8 | uint64(raw[i])
	}
	blockRaw, ok, err := kv.Get(NamespaceBlocks, heightKey(height))
	if err != nil {
		return Block{}, fmt.Errorf("load chain tip: %w", err)
	}
	if !ok {
		return Block{}, fmt.Errorf("load chain tip: block at height %d missing", height)
	}
	return DecodeBlock(blockRaw)
}
