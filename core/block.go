package core

import "encoding/binary"

// genesisCoinbaseSeed is the constant string the genesis state root is
// derived from (spec §3: "deterministic state_root from constant coinbase
// string").
const genesisCoinbaseSeed = "NOVA genesis coinbase"

// genesisTimestampMs is the fixed genesis timestamp (spec §6).
const genesisTimestampMs = 0

// HeaderImage returns the byte image a BlockHeader's hash is computed
// over: everything except Signature.
func HeaderImage(h *BlockHeader) []byte {
	buf := make([]byte, 0, 8+32+32+8+20+32+32)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], h.Height)
	buf = append(buf, u64[:]...)
	buf = append(buf, h.ParentHash[:]...)
	binary.LittleEndian.PutUint64(u64[:], h.TimestampMs)
	buf = append(buf, u64[:]...)
	buf = append(buf, h.Proposer[:]...)
	buf = append(buf, h.StateRoot[:]...)
	buf = append(buf, h.TxRoot[:]...)
	return buf
}

// RecomputeHeaderHash returns the hash h should carry given its other
// fields (spec §3/§8 P3).
func RecomputeHeaderHash(h *BlockHeader) Hash32 {
	return DomainHash("nova-block-header", HeaderImage(h))
}

// GenesisStateRoot is the deterministic state root every NOVA chain's
// genesis block carries, derived from a fixed coinbase seed rather than
// any real account set.
func GenesisStateRoot() Hash32 {
	return DomainHash("nova-genesis-state-root", []byte(genesisCoinbaseSeed))
}

// GenesisBlock returns the well-known height-0 block: zero parent hash,
// zero tx root, the fixed genesis state root, a zero-value placeholder
// proposer, and an empty signature (spec §3/§6).
func GenesisBlock() Block {
	header := BlockHeader{
		Height:      0,
		ParentHash:  Hash32{},
		TimestampMs: genesisTimestampMs,
		Proposer:    Address{},
		StateRoot:   GenesisStateRoot(),
		TxRoot:      Hash32{},
	}
	header.Hash = RecomputeHeaderHash(&header)
	return Block{Header: header, Transactions: nil}
}

// VerifyBlockStructure checks the invariants every block (including
// genesis) must satisfy independent of chain context (spec §3/§4.3): the
// header hash matches its recomputed value, the tx_root matches the
// recomputed Merkle root over the block's transactions, and a height-0
// block has a zero parent hash.
func VerifyBlockStructure(b *Block) error {
	wantHash := RecomputeHeaderHash(&b.Header)
	if b.Header.Hash != wantHash {
		return ErrBlockHashMismatch
	}
	wantTxRoot := TxRoot(b.Transactions)
	if b.Header.TxRoot != wantTxRoot {
		return ErrTxRootMismatch
	}
	if b.Header.Height == 0 && !b.Header.ParentHash.IsZero() {
		return ErrGenesisParentNotZero
	}
	return nil
}
