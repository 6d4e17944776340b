package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/scrimhub/internal/config"
	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllAcceptBeginsDraft(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	var session *domain.ReadySession
	for i, u := range users {
		var err error
		session, err = s.Services.Ready.AcceptByUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, session.AcceptedCount(), "response must include the caller's own accept")
	}
	assert.Equal(t, domain.ReadySessionCompleted, session.Status)

	match := waitForPhase(t, s, session.MatchID, domain.MatchPhaseDraft)
	require.NotNil(t, match.CurrentPicker)
	assert.Equal(t, domain.SideAlpha, *match.CurrentPicker)

	final, err := s.Repos.ReadySession.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReadySessionCompleted, final.Status)

	queue, err := s.Repos.Queue.GetByID(ctx, session.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusCompleted, queue.Status)

	for _, u := range users {
		fresh, err := s.Repos.User.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, fresh.InQueue)
		require.NotNil(t, fresh.CurrentMatchID)
		assert.Equal(t, match.ID, *fresh.CurrentMatchID)
	}
}

func TestDoubleAcceptIsIdempotent(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	first, err := s.Services.Ready.AcceptByUser(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AcceptedCount())

	second, err := s.Services.Ready.AcceptByUser(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.AcceptedCount())

	session, err := s.Repos.ReadySession.GetActiveByUserID(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.AcceptedCount())
}

func TestAcceptByMatchHitsSameSession(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	session, err := s.Repos.ReadySession.GetActiveByUserID(ctx, users[0].ID)
	require.NoError(t, err)

	// Accept through the match endpoint, then again through the queue
	// endpoint. One session backs both, so the count stays at one.
	_, err = s.Services.Ready.AcceptByMatch(ctx, session.MatchID, users[0].ID)
	require.NoError(t, err)
	_, err = s.Services.Ready.AcceptByUser(ctx, users[0].ID)
	require.NoError(t, err)

	fresh, err := s.Services.Ready.StatusByMatch(ctx, session.MatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.AcceptedCount())
}

func TestAcceptByOutsiderRejected(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	session, err := s.Repos.ReadySession.GetActiveByUserID(ctx, users[0].ID)
	require.NoError(t, err)

	outsider, _ := testutil.NewUserBuilder().Build(t, s.DB.DB)
	_, err = s.Services.Ready.AcceptByMatch(ctx, session.MatchID, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrNotAParticipant)
}

func TestDeadlinePartitionsAndRequeuesAcceptors(t *testing.T) {
	s := newStack(t, func(cfg *config.Config) { cfg.AcceptTimeout = 700 * time.Millisecond })
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	session, err := s.Repos.ReadySession.GetActiveByUserID(ctx, users[0].ID)
	require.NoError(t, err)

	// Seven of ten accept, the rest let the clock run out.
	for _, u := range users[:7] {
		_, err := s.Services.Ready.AcceptByUser(ctx, u.ID)
		require.NoError(t, err)
	}

	waitForSessionStatus(t, s, session.ID, domain.ReadySessionTimeout)

	match, err := s.Repos.Match.GetByID(ctx, session.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseCancelled, match.Phase)

	// Acceptors head the fresh pool with priority, in their old order.
	queue, err := s.Repos.Queue.GetWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, queue.Entries, 7)
	for i, entry := range queue.Entries {
		assert.Equal(t, i+1, entry.Position)
		assert.True(t, entry.HasPriority)
		assert.Equal(t, users[i].ID, entry.UserID)
	}

	// Non-acceptors are out entirely.
	for _, u := range users[7:] {
		fresh, err := s.Repos.User.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, fresh.InQueue)
		assert.Nil(t, fresh.CurrentMatchID)
	}

	// The failure broadcast names the non-acceptors so clients can show
	// who let the check lapse.
	assert.Len(t, s.Notify.payloads("player-accepted"), 7)
	failed := s.Notify.payloads("queue:accept-failed")
	require.Len(t, failed, 1)
	refs, ok := failed[0]["nonAcceptors"].([]domain.PlayerRef)
	require.True(t, ok)
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.UserID)
	}
	assert.ElementsMatch(t, []uuid.UUID{users[7].ID, users[8].ID, users[9].ID}, ids)
}

func TestDeclineKeepsEarlierAccept(t *testing.T) {
	s := newStack(t, func(cfg *config.Config) { cfg.AcceptTimeout = time.Hour })
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	session, err := s.Services.Ready.AcceptByUser(ctx, users[0].ID)
	require.NoError(t, err)
	require.NoError(t, s.Services.Ready.DeclineByUser(ctx, users[0].ID))

	final, err := s.Repos.ReadySession.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReadySessionCancelled, final.Status)

	// The accept flag never resets; the decline still makes the player a
	// non-acceptor.
	p := final.Participant(users[0].ID)
	require.NotNil(t, p)
	assert.True(t, p.Accepted)
	assert.True(t, p.Declined)
	require.NotNil(t, p.AcceptedAt)

	acceptors, nonAcceptors := final.Partition()
	assert.Empty(t, acceptors)
	found := false
	for i := range nonAcceptors {
		if nonAcceptors[i].UserID == users[0].ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDeclineResolvesImmediately(t *testing.T) {
	s := newStack(t, func(cfg *config.Config) { cfg.AcceptTimeout = time.Hour })
	ctx := context.Background()

	users := fillQueue(t, s, domain.DefaultQueueSize)

	session, err := s.Repos.ReadySession.GetActiveByUserID(ctx, users[0].ID)
	require.NoError(t, err)

	for _, u := range users[:3] {
		_, err := s.Services.Ready.AcceptByUser(ctx, u.ID)
		require.NoError(t, err)
	}

	// A decline must not wait for the one hour deadline.
	require.NoError(t, s.Services.Ready.DeclineByUser(ctx, users[9].ID))

	final, err := s.Repos.ReadySession.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReadySessionCancelled, final.Status)

	match, err := s.Repos.Match.GetByID(ctx, session.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseCancelled, match.Phase)

	queue, err := s.Repos.Queue.GetWaiting(ctx)
	require.NoError(t, err)
	assert.Len(t, queue.Entries, 3)

	// Accepting after resolution fails.
	_, err = s.Services.Ready.AcceptByUser(ctx, users[1].ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func waitForSessionStatus(t *testing.T, s *stack, sessionID uuid.UUID, status domain.ReadySessionStatus) {
	t.Helper()

	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		session, err := s.Repos.ReadySession.GetByID(ctx, sessionID)
		require.NoError(t, err)
		if session.Status == status {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %s", sessionID, status)
}
