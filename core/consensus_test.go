package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestValidatorSet(t *testing.T, n int) (*ValidatorSet, []Signer) {
	t.Helper()
	vs := NewValidatorSet()
	signers := make([]Signer, n)
	for i := 0; i < n; i++ {
		s, err := GenerateSigner()
		require.NoError(t, err)
		signers[i] = s
		vs.Add(ValidatorInfo{
			Address:   s.Address(),
			PublicKey: s.PublicKey(),
			Stake:     uint64(1000 + i),
			Active:    true,
		})
	}
	return vs, signers
}

func TestQuorumThresholdFormula(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{6, 5},
		{7, 5},
	}
	for _, c := range cases {
		vs, _ := newTestValidatorSet(t, c.n)
		require.Equal(t, c.want, vs.QuorumThreshold(), "n=%d", c.n)
	}
}

func TestProposerScheduleIsDeterministicRoundRobin(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 4)

	// Round r and round r+N (N = active count) must name the same
	// proposer, and every round in between must stay within the set.
	first, err := vs.ProposerForRound(0)
	require.NoError(t, err)
	wrapped, err := vs.ProposerForRound(uint64(len(signers)))
	require.NoError(t, err)
	require.Equal(t, first, wrapped)

	for r := uint64(0); r < 8; r++ {
		got, err := vs.ProposerForRound(r)
		require.NoError(t, err)
		require.Contains(t, addressesOf(signers), got)
	}
}

func addressesOf(signers []Signer) []Address {
	out := make([]Address, len(signers))
	for i, s := range signers {
		out[i] = s.Address()
	}
	return out
}

func TestProposeValidateFinalizeSingleValidator(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 1)
	proposer := signers[0]
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	block, err := engine.ProposeBlock(nil, Hash32{}, proposer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Header.Height)

	require.NoError(t, engine.ValidateBlock(&block))

	vote, err := SignVote(proposer, block.Header.Hash, engine.CurrentRound())
	require.NoError(t, err)

	finalized, err := engine.FinalizeBlock(&block, []Vote{vote})
	require.NoError(t, err)
	require.Equal(t, uint64(2), engine.NextHeight())
	require.Equal(t, block.Header.Hash, engine.LastHash())
	require.Len(t, finalized.Votes, 1)
}

func TestProposeBlockRejectsUnauthorizedProposer(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 2)
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	scheduled, err := engine.ScheduledProposer()
	require.NoError(t, err)

	var impostor Signer
	for _, s := range signers {
		if s.Address() != scheduled {
			impostor = s
			break
		}
	}
	require.NotNil(t, impostor)

	_, err = engine.ProposeBlock(nil, Hash32{}, impostor)
	require.ErrorIs(t, err, ErrUnauthorizedProposer)
}

func TestValidateBlockRejectsBadProposerSignature(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 1)
	proposer := signers[0]
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	block, err := engine.ProposeBlock(nil, Hash32{}, proposer)
	require.NoError(t, err)

	block.Header.Signature[0] ^= 0xFF
	require.ErrorIs(t, engine.ValidateBlock(&block), ErrProposerSignatureBad)
}

// TestFinalizeBlockDuplicateVote mirrors spec §8 scenario 4: 3 active
// validators, submitting [v1, v1, v2] must fail with DuplicateVote.
func TestFinalizeBlockDuplicateVote(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 3)
	proposer := signers[0]
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	// Proposer might not be signers[0]; find the scheduled one.
	scheduledAddr, err := engine.ScheduledProposer()
	require.NoError(t, err)
	for _, s := range signers {
		if s.Address() == scheduledAddr {
			proposer = s
		}
	}

	block, err := engine.ProposeBlock(nil, Hash32{}, proposer)
	require.NoError(t, err)

	v1, err := SignVote(signers[0], block.Header.Hash, engine.CurrentRound())
	require.NoError(t, err)
	v1Dup, err := SignVote(signers[0], block.Header.Hash, engine.CurrentRound())
	require.NoError(t, err)
	v2, err := SignVote(signers[1], block.Header.Hash, engine.CurrentRound())
	require.NoError(t, err)

	_, err = engine.FinalizeBlock(&block, []Vote{v1, v1Dup, v2})
	require.ErrorIs(t, err, ErrDuplicateVote)
}

func TestFinalizeBlockInsufficientVotes(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 3)
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	scheduledAddr, err := engine.ScheduledProposer()
	require.NoError(t, err)
	var proposer Signer
	for _, s := range signers {
		if s.Address() == scheduledAddr {
			proposer = s
		}
	}

	block, err := engine.ProposeBlock(nil, Hash32{}, proposer)
	require.NoError(t, err)

	v1, err := SignVote(signers[0], block.Header.Hash, engine.CurrentRound())
	require.NoError(t, err)

	_, err = engine.FinalizeBlock(&block, []Vote{v1})
	require.ErrorIs(t, err, ErrInsufficientVotes)
}

func TestFinalizeBlockVoteFromNonValidator(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 1)
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	block, err := engine.ProposeBlock(nil, Hash32{}, signers[0])
	require.NoError(t, err)

	outsider, err := GenerateSigner()
	require.NoError(t, err)
	vote, err := SignVote(outsider, block.Header.Hash, engine.CurrentRound())
	require.NoError(t, err)

	_, err = engine.FinalizeBlock(&block, []Vote{vote})
	require.ErrorIs(t, err, ErrVoteFromNonValidator)
}

func TestValidateBlockRejectsHeightOrParentMismatch(t *testing.T) {
	vs, signers := newTestValidatorSet(t, 1)
	engine := NewConsensusEngine(DefaultConsensusConfig(), vs, nil, nil)

	block, err := engine.ProposeBlock(nil, Hash32{}, signers[0])
	require.NoError(t, err)

	bad := block
	bad.Header.Height = 99
	require.ErrorIs(t, engine.ValidateBlock(&bad), ErrHeightMismatch)

	badParent := block
	badParent.Header.ParentHash = Hash32{9}
	require.ErrorIs(t, engine.ValidateBlock(&badParent), ErrParentMismatch)
}
