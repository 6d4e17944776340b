package service_test

import (
	"context"
	"testing"

	"github.com/dom/scrimhub/internal/config"
	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAssignsContiguousPositions(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, 3)

	queue, err := s.Repos.Queue.GetWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, queue.Entries, 3)
	for i, entry := range queue.Entries {
		assert.Equal(t, i+1, entry.Position)
	}

	for _, u := range users {
		fresh, err := s.Repos.User.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, fresh.InQueue)
	}
}

func TestJoinTwiceRejected(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, 1)

	_, err := s.Services.Queue.Join(ctx, users[0].ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)
}

func TestLeaveRenumbersPositions(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, 3)

	require.NoError(t, s.Services.Queue.Leave(ctx, users[1].ID))

	queue, err := s.Repos.Queue.GetWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, queue.Entries, 2)
	assert.Equal(t, 1, queue.Entries[0].Position)
	assert.Equal(t, 2, queue.Entries[1].Position)
	assert.Equal(t, users[0].ID, queue.Entries[0].UserID)
	assert.Equal(t, users[2].ID, queue.Entries[1].UserID)

	left, err := s.Repos.User.GetByID(ctx, users[1].ID)
	require.NoError(t, err)
	assert.False(t, left.InQueue)
}

func TestLeaveWithoutJoining(t *testing.T) {
	s := newStack(t, nil)

	user, _ := testutil.NewUserBuilder().Build(t, s.DB.DB)
	err := s.Services.Queue.Leave(context.Background(), user.ID)
	assert.ErrorIs(t, err, domain.ErrNotQueued)
}

func TestFullPoolStartsReadyCheck(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	session, err := s.Repos.ReadySession.GetActiveByUserID(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReadySessionActive, session.Status)
	assert.Len(t, session.Players, domain.DefaultQueueSize)

	match, err := s.Repos.Match.GetByID(ctx, session.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseAccept, match.Phase)

	queue, err := s.Repos.Queue.GetByID(ctx, session.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusAcceptPhase, queue.Status)
}

func TestJoinDuringAcceptPhaseRejected(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	// Pool members cannot re-join while the ready check runs.
	_, err := s.Services.Queue.Join(ctx, users[0].ID)
	assert.Error(t, err)

	// An eleventh player lands in a fresh waiting pool instead.
	extra, _ := testutil.NewUserBuilder().Build(t, s.DB.DB)
	queue, err := s.Services.Queue.Join(ctx, extra.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusWaiting, queue.Status)
	assert.Len(t, queue.Entries, 1)
}

func TestSkipAcceptPhaseGoesStraightToDraft(t *testing.T) {
	s := newStack(t, func(cfg *config.Config) { cfg.SkipAcceptPhase = true })
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	match := activeMatchOf(t, s, users[0].ID)
	assert.Equal(t, domain.MatchPhaseDraft, match.Phase)
	require.NotNil(t, match.CurrentPicker)
	assert.Equal(t, domain.SideAlpha, *match.CurrentPicker)

	for _, u := range users {
		fresh, err := s.Repos.User.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, fresh.InQueue)
		require.NotNil(t, fresh.CurrentMatchID)
		assert.Equal(t, match.ID, *fresh.CurrentMatchID)
	}
}

func TestStatusReportsPosition(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, 2)

	view, err := s.Services.Queue.Status(ctx, users[1].ID)
	require.NoError(t, err)
	assert.True(t, view.InQueue)
	assert.Equal(t, 2, view.Position)
	assert.Nil(t, view.ReadySession)
}
