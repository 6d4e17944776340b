package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/scrimhub/internal/config"
	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// draftMatch fills the queue with the accept phase disabled, landing a
// match directly in the draft.
func draftMatch(t *testing.T, s *stack) (*domain.Match, []*domain.User) {
	t.Helper()

	users := fillQueue(t, s, domain.DefaultQueueSize)
	return activeMatchOf(t, s, users[0].ID), users
}

func newDraftStack(t *testing.T, mutate func(*config.Config)) *stack {
	return newStack(t, func(cfg *config.Config) {
		cfg.SkipAcceptPhase = true
		if mutate != nil {
			mutate(cfg)
		}
	})
}

func TestDraftFollowsPickOrder(t *testing.T) {
	s := newDraftStack(t, nil)
	match, _ := draftMatch(t, s)

	done := runDraft(t, s, match.ID)

	assert.Equal(t, domain.MatchPhaseVeto, done.Phase)
	assert.Len(t, done.PickHistory, len(done.PickOrder))
	for i, record := range done.PickHistory {
		assert.Equal(t, i, record.Index)
		assert.Equal(t, done.PickOrder[i], record.Side)
		assert.False(t, record.Auto)
	}

	// Five per side, nobody left over, nobody on two teams.
	assert.Len(t, done.Team(domain.SideAlpha), 5)
	assert.Len(t, done.Team(domain.SideBeta), 5)
	assert.Empty(t, done.Undrafted())

	// Every pick is broadcast, the final one included.
	updates := s.Notify.payloads("draft-update")
	require.Len(t, updates, len(done.PickOrder))
	last := updates[len(updates)-1]
	assert.Equal(t, len(done.PickOrder), last["pickIndex"])
	assert.Equal(t, done.PickHistory[len(done.PickHistory)-1].UserID, last["picked"])
}

func TestDraftRejectsOutOfTurnPick(t *testing.T) {
	s := newDraftStack(t, nil)
	match, _ := draftMatch(t, s)
	ctx := context.Background()

	pool := match.Undrafted()
	require.NotEmpty(t, pool)

	// Alpha picks first, so beta's captain must wait.
	_, err := s.Services.Match.PickPlayer(ctx, match.ID, match.CaptainBeta, pool[0].UserID)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	// Non-captains never pick.
	_, err = s.Services.Match.PickPlayer(ctx, match.ID, pool[0].UserID, pool[1].UserID)
	assert.ErrorIs(t, err, domain.ErrNotACaptain)
}

func TestDraftRejectsUnavailablePlayer(t *testing.T) {
	s := newDraftStack(t, nil)
	match, _ := draftMatch(t, s)
	ctx := context.Background()

	// Captains are already on a team.
	_, err := s.Services.Match.PickPlayer(ctx, match.ID, match.CaptainAlpha, match.CaptainBeta)
	assert.ErrorIs(t, err, domain.ErrPlayerUnavailable)

	pool := match.Undrafted()
	_, err = s.Services.Match.PickPlayer(ctx, match.ID, match.CaptainAlpha, pool[0].UserID)
	require.NoError(t, err)

	// Picking the same player again fails regardless of whose turn it is.
	fresh, err := s.Services.Match.Get(ctx, match.ID)
	require.NoError(t, err)
	_, err = s.Services.Match.PickPlayer(ctx, match.ID, captainOf(fresh, *fresh.CurrentPicker), pool[0].UserID)
	assert.ErrorIs(t, err, domain.ErrPlayerUnavailable)
}

func TestVetoLeavesExactlyOneMap(t *testing.T) {
	s := newDraftStack(t, nil)
	match, _ := draftMatch(t, s)

	runDraft(t, s, match.ID)
	done := runVeto(t, s, match.ID)

	require.Len(t, done.BannedMaps, len(s.Cfg.MapPool)-1)
	assert.NotEmpty(t, done.SelectedMap)
	assert.Nil(t, done.CurrentVeto)

	// Bans alternate strictly, alpha first.
	for i, ban := range done.BannedMaps {
		assert.Equal(t, i, ban.Index)
		if i%2 == 0 {
			assert.Equal(t, domain.SideAlpha, ban.BannedBy)
		} else {
			assert.Equal(t, domain.SideBeta, ban.BannedBy)
		}
	}

	// Provisioning runs in the background and the match goes live even
	// though no game server API is configured.
	live := waitForPhase(t, s, match.ID, domain.MatchPhaseLive)
	assert.Equal(t, domain.MatchPhaseLive, live.Phase)
}

func TestVetoTwelveMapPool(t *testing.T) {
	s := newDraftStack(t, func(cfg *config.Config) {
		cfg.MapPool = []string{
			"de_ancient", "de_anubis", "de_cache", "de_cbble",
			"de_dust2", "de_inferno", "de_mirage", "de_nuke",
			"de_overpass", "de_train", "de_tuscan", "de_vertigo",
		}
	})
	match, _ := draftMatch(t, s)

	runDraft(t, s, match.ID)
	done := runVeto(t, s, match.ID)

	assert.Len(t, done.BannedMaps, 11)
	assert.NotEmpty(t, done.SelectedMap)
	waitForPhase(t, s, match.ID, domain.MatchPhaseLive)
}

func TestVetoRejectsBannedMap(t *testing.T) {
	s := newDraftStack(t, nil)
	match, _ := draftMatch(t, s)
	ctx := context.Background()

	runDraft(t, s, match.ID)

	fresh, err := s.Services.Match.Get(ctx, match.ID)
	require.NoError(t, err)
	first := fresh.AvailableMaps[0]

	_, err = s.Services.Match.BanMap(ctx, match.ID, captainOf(fresh, *fresh.CurrentVeto), first)
	require.NoError(t, err)

	fresh, err = s.Services.Match.Get(ctx, match.ID)
	require.NoError(t, err)
	_, err = s.Services.Match.BanMap(ctx, match.ID, captainOf(fresh, *fresh.CurrentVeto), first)
	assert.ErrorIs(t, err, domain.ErrMapUnavailable)
}

func TestCompleteAppliesStatsExactlyOnce(t *testing.T) {
	s := newDraftStack(t, nil)
	match, users := draftMatch(t, s)
	ctx := context.Background()

	runDraft(t, s, match.ID)
	runVeto(t, s, match.ID)
	waitForPhase(t, s, match.ID, domain.MatchPhaseLive)

	winner := domain.SideAlpha
	done, err := s.Services.Match.Complete(ctx, match.ID, users[0].ID, service.CompleteRequest{
		Winner:     &winner,
		ScoreAlpha: 16,
		ScoreBeta:  9,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseComplete, done.Phase)
	require.NotNil(t, done.CompletedAt)

	for i := range done.Players {
		p := done.Players[i]
		fresh, err := s.Repos.User.GetByID(ctx, p.UserID)
		require.NoError(t, err)
		assert.Nil(t, fresh.CurrentMatchID)
		if *p.Team == domain.SideAlpha {
			assert.Equal(t, domain.DefaultRating+domain.RatingDelta, fresh.Rating)
			assert.Equal(t, 1, fresh.Wins)
			assert.Equal(t, 0, fresh.Losses)
		} else {
			assert.Equal(t, domain.DefaultRating-domain.RatingDelta, fresh.Rating)
			assert.Equal(t, 0, fresh.Wins)
			assert.Equal(t, 1, fresh.Losses)
		}
	}

	// Re-reporting returns the finished match without touching stats.
	again, err := s.Services.Match.Complete(ctx, match.ID, users[1].ID, service.CompleteRequest{
		Winner: &winner,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseComplete, again.Phase)

	sample, err := s.Repos.User.GetByID(ctx, done.Players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, sample.Wins+sample.Losses)
}

func TestCompletedPhaseBlocksRecount(t *testing.T) {
	s := newDraftStack(t, nil)
	match, users := draftMatch(t, s)
	ctx := context.Background()

	runDraft(t, s, match.ID)
	runVeto(t, s, match.ID)
	waitForPhase(t, s, match.ID, domain.MatchPhaseLive)

	// A report that persisted the terminal phase but died before the
	// stats write leaves phase complete with stats unapplied. A client
	// retry must not count the result then.
	winner := domain.SideAlpha
	fresh, err := s.Services.Match.Get(ctx, match.ID)
	require.NoError(t, err)
	fresh.Phase = domain.MatchPhaseComplete
	fresh.WinnerSide = &winner
	require.NoError(t, s.Repos.Match.Update(ctx, fresh))

	again, err := s.Services.Match.Complete(ctx, match.ID, users[0].ID, service.CompleteRequest{
		Winner: &winner,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseComplete, again.Phase)

	for i := range again.Players {
		sample, err := s.Repos.User.GetByID(ctx, again.Players[i].UserID)
		require.NoError(t, err)
		assert.Zero(t, sample.Wins+sample.Losses+sample.Draws)
	}
}

func TestCompleteDrawCountsGamesOnly(t *testing.T) {
	s := newDraftStack(t, nil)
	match, users := draftMatch(t, s)
	ctx := context.Background()

	runDraft(t, s, match.ID)
	runVeto(t, s, match.ID)
	waitForPhase(t, s, match.ID, domain.MatchPhaseLive)

	done, err := s.Services.Match.Complete(ctx, match.ID, users[0].ID, service.CompleteRequest{
		IsDraw:     true,
		ScoreAlpha: 15,
		ScoreBeta:  15,
	})
	require.NoError(t, err)
	assert.True(t, done.IsDraw)

	for i := range done.Players {
		fresh, err := s.Repos.User.GetByID(ctx, done.Players[i].UserID)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultRating, fresh.Rating, "draws leave ratings alone")
		assert.Equal(t, 1, fresh.Draws)
	}
}

func TestRatingFlooredAtZero(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	user, _ := newUserWithRating(t, s, 10)
	err := s.Repos.User.ApplyResult(ctx, user.ID, domain.OutcomeBeta, false, -domain.RatingDelta)
	require.NoError(t, err)

	fresh, err := s.Repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Rating)
	assert.Equal(t, 1, fresh.Losses)
}

func TestCompleteRequiresLivePhase(t *testing.T) {
	s := newDraftStack(t, nil)
	match, users := draftMatch(t, s)

	winner := domain.SideAlpha
	_, err := s.Services.Match.Complete(context.Background(), match.ID, users[0].ID, service.CompleteRequest{
		Winner: &winner,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMatchPhase)
}

func TestCancelClearsFlagsAndFreezesMatch(t *testing.T) {
	s := newDraftStack(t, nil)
	match, users := draftMatch(t, s)
	ctx := context.Background()

	require.NoError(t, s.Services.Match.Cancel(ctx, match.ID, users[0].ID))

	done, err := s.Services.Match.Get(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPhaseCancelled, done.Phase)

	for _, u := range users {
		fresh, err := s.Repos.User.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, fresh.CurrentMatchID)
	}

	// No further moves on a cancelled match.
	pool := done.Undrafted()
	require.NotEmpty(t, pool)
	_, err = s.Services.Match.PickPlayer(ctx, match.ID, done.CaptainAlpha, pool[0].UserID)
	assert.ErrorIs(t, err, domain.ErrInvalidMatchPhase)

	// Cancelling twice is harmless.
	require.NoError(t, s.Services.Match.Cancel(ctx, match.ID, users[1].ID))
}

func TestCancelByOutsiderRejected(t *testing.T) {
	s := newDraftStack(t, nil)
	match, _ := draftMatch(t, s)

	outsider, _ := newUserWithRating(t, s, domain.DefaultRating)
	err := s.Services.Match.Cancel(context.Background(), match.ID, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrNotAParticipant)
}

func TestTurnTimeoutAutoPicks(t *testing.T) {
	s := newDraftStack(t, func(cfg *config.Config) { cfg.TurnTimeout = 300 * time.Millisecond })
	match, _ := draftMatch(t, s)
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		fresh, err := s.Services.Match.Get(ctx, match.ID)
		require.NoError(t, err)
		if len(fresh.PickHistory) > 0 {
			assert.True(t, fresh.PickHistory[0].Auto)
			assert.Equal(t, domain.SideAlpha, fresh.PickHistory[0].Side)
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("turn timer never made an automatic pick")
}

func TestMatchCodesAreSequential(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	first, err := s.Repos.Counter.NextMatchCode(ctx)
	require.NoError(t, err)
	second, err := s.Repos.Counter.NextMatchCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}
