package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put(NamespaceAccounts, []byte("addr-1"), []byte("payload")))

	value, ok, err := store.Get(NamespaceAccounts, []byte("addr-1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)

	_, ok, err = store.Get(NamespaceAccounts, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchApplyIsAtomicAcrossNamespaces(t *testing.T) {
	store := newTestStore(t)
	batch := store.NewBatch()
	batch.Put(NamespaceBlocks, heightKey(1), []byte("block-1"))
	batch.Put(NamespaceMetadata, []byte(MetadataLatestHeight), heightKey(1))
	require.NoError(t, batch.Apply())

	_, ok, err := store.Get(NamespaceBlocks, heightKey(1))
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = store.Get(NamespaceMetadata, []byte(MetadataLatestHeight))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRangeReturnsHeightsInNumericOrder(t *testing.T) {
	store := newTestStore(t)
	for _, h := range []uint64{5, 1, 1000, 2} {
		require.NoError(t, store.Put(NamespaceBlocks, heightKey(h), []byte("x")))
	}

	var seen []uint64
	err := store.Range(NamespaceBlocks, nil, func(key, _ []byte) bool {
		var h uint64
		for i := 0; i < 8; i++ {
			h = h<<8 | uint64(key[i])
		}
		seen = append(seen, h)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 5, 1000}, seen)
}

func TestArchiveBlocksBelowRemovesFromLiveStore(t *testing.T) {
	store := newTestStore(t)
	for h := uint64(0); h < 5; h++ {
		b := Block{Header: BlockHeader{Height: h}}
		b.Header.Hash = RecomputeHeaderHash(&b.Header)
		require.NoError(t, store.Put(NamespaceBlocks, heightKey(h), EncodeBlock(&b)))
		require.NoError(t, store.Put(NamespaceBlockHashes, b.Header.Hash[:], heightKey(h)))
	}

	archivePath := filepath.Join(t.TempDir(), "archive.gz")
	archived, err := store.ArchiveBlocksBelow(archivePath, 3, nil)
	require.NoError(t, err)
	require.Equal(t, 3, archived)

	for h := uint64(0); h < 3; h++ {
		_, ok, err := store.Get(NamespaceBlocks, heightKey(h))
		require.NoError(t, err)
		require.False(t, ok)
	}
	for h := uint64(3); h < 5; h++ {
		_, ok, err := store.Get(NamespaceBlocks, heightKey(h))
		require.NoError(t, err)
		require.True(t, ok)
	}
}
