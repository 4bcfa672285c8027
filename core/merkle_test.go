package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxRootEmptyIsZero(t *testing.T) {
	require.True(t, TxRoot(nil).IsZero())
}

func TestTxRootMatchesManualRecomputation(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)

	txs := []Transaction{
		newTestTransfer(t, signer, receiver.Address(), 1),
		newTestTransfer(t, signer, receiver.Address(), 2),
		newTestTransfer(t, signer, receiver.Address(), 3),
	}

	got := TxRoot(txs)

	leaves := make([]Hash32, len(txs))
	for i := range txs {
		tx := txs[i]
		leaves[i] = DomainHash("nova-merkle-leaf", CanonicalBytes(&tx))
	}
	want := merkleRoot(leaves)

	require.Equal(t, want, got, "P4: tx_root must equal merkle_root(hash(canonical_bytes(tx_i)))")
}

func TestMerkleProofRoundTrip(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)

	txs := []Transaction{
		newTestTransfer(t, signer, receiver.Address(), 1),
		newTestTransfer(t, signer, receiver.Address(), 2),
		newTestTransfer(t, signer, receiver.Address(), 3),
		newTestTransfer(t, signer, receiver.Address(), 4),
		newTestTransfer(t, signer, receiver.Address(), 5),
	}
	root := TxRoot(txs)

	for i := range txs {
		proof, ok := BuildMerkleProof(txs, i)
		require.True(t, ok)
		tx := txs[i]
		leaf := DomainHash("nova-merkle-leaf", CanonicalBytes(&tx))
		require.True(t, VerifyMerkleProof(root, leaf, proof), "proof for index %d must verify", i)
	}
}
