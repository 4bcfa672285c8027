package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTransfer(t *testing.T, signer Signer, receiver Address, nonce uint64) Transaction {
	t.Helper()
	tx := Transaction{
		Version:     1,
		Type:        TxTransfer,
		Sender:      signer.Address(),
		Receiver:    receiver,
		Amount:      Amount{Value: 500, Currency: CurrencyNOVA},
		Fee:         100,
		Nonce:       nonce,
		TimestampMs: nowMillis(),
	}
	require.NoError(t, SignTransaction(&tx, signer))
	return tx
}

func TestRecomputeIDDeterminism(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)

	tx := newTestTransfer(t, signer, receiver.Address(), 1)
	require.Equal(t, tx.ID, RecomputeID(&tx), "P1: recompute_id(canonical_bytes(tx)) must equal tx.id")
}

func TestCanonicalBytesExcludesSignatureFields(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)

	tx := newTestTransfer(t, signer, receiver.Address(), 1)
	before := CanonicalBytes(&tx)

	mutated := tx
	mutated.ID = "deadbeef"
	mutated.SenderPublicKey = []byte{1, 2, 3}
	mutated.Signature = []byte{4, 5, 6}
	mutated.Proof = []byte{7, 8, 9}
	mutated.AmountCommitment = []byte{10, 11, 12}

	after := CanonicalBytes(&mutated)
	require.Equal(t, before, after, "P2: canonical bytes must be invariant under id/key/signature/proof/commitment changes")
}

func TestVerifyStatelessOrderedChecks(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)
	now := time.UnixMilli(int64(nowMillis()))

	t.Run("valid transaction passes", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		require.NoError(t, VerifyStateless(&tx, now))
	})

	t.Run("zero nonce rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		tx.Nonce = 0
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrInvalidNonce)
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		tx.Amount.Value = 0
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrInvalidAmount)
	})

	t.Run("self transfer rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		tx.Receiver = tx.Sender
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrSelfTransfer)
	})

	t.Run("future timestamp rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		tx.TimestampMs += maxFutureSkewMs + 1_000
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrTimestampTooFarFuture)
	})

	t.Run("tampered id rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		tx.ID = "0000000000000000000000000000000000000000000000000000000000000000"
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrIDMismatch)
	})

	t.Run("tampered signature rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		tx.Signature[0] ^= 0xFF
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrSignatureInvalid)
	})

	t.Run("substituted public key rejected", func(t *testing.T) {
		tx := newTestTransfer(t, signer, receiver.Address(), 1)
		other, err := GenerateSigner()
		require.NoError(t, err)
		tx.SenderPublicKey = other.PublicKey()
		require.ErrorIs(t, VerifyStateless(&tx, now), ErrPublicKeyAddressBinding)
	})
}

func TestVerifyStatelessConfidentialTransfer(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)
	now := time.UnixMilli(int64(nowMillis()))

	tx := newTestTransfer(t, signer, receiver.Address(), 1)
	tx.Type = TxConfidentialTransfer
	require.NoError(t, SignTransaction(&tx, signer))
	require.ErrorIs(t, VerifyStateless(&tx, now), ErrConfidentialFieldsMissing)
}
