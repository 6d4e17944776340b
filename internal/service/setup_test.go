package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/scrimhub/internal/config"
	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/provision"
	"github.com/dom/scrimhub/internal/repository"
	repoPostgres "github.com/dom/scrimhub/internal/repository/postgres"
	"github.com/dom/scrimhub/internal/service"
	"github.com/dom/scrimhub/internal/testutil"
	"github.com/dom/scrimhub/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stack struct {
	DB       *testutil.TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Cfg      *config.Config
	Notify   *recordingNotifier
}

// recordingNotifier captures broadcasts so tests can assert on event
// names and payloads.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

type notifierEvent struct {
	room    string
	name    string
	payload map[string]any
}

func (n *recordingNotifier) ToQueue(event string, payload any) {
	n.add("queue", event, payload)
}

func (n *recordingNotifier) ToMatch(matchID uuid.UUID, event string, payload any) {
	n.add("match:"+matchID.String(), event, payload)
}

func (n *recordingNotifier) add(room, name string, payload any) {
	body, _ := payload.(map[string]any)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifierEvent{room: room, name: name, payload: body})
}

// payloads returns the payloads of every recorded event with the name,
// oldest first.
func (n *recordingNotifier) payloads(name string) []map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []map[string]any
	for _, e := range n.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

// newStack spins up a database and the full service graph with fast
// timers. mutate tweaks the config before wiring.
func newStack(t *testing.T, mutate func(*config.Config)) *stack {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	cfg := testutil.TestConfig()
	cfg.AcceptTimeout = 3 * time.Second
	cfg.TurnTimeout = 0 // no auto moves unless a test opts in
	if mutate != nil {
		mutate(cfg)
	}

	repos := repoPostgres.NewRepositories(testDB.DB)
	notify := &recordingNotifier{}
	services := service.NewServices(repos, notify, provision.Noop{}, cfg, logger.NewNop())

	return &stack{
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Cfg:      cfg,
		Notify:   notify,
	}
}

// fillQueue creates n users and joins them all.
func fillQueue(t *testing.T, s *stack, n int) []*domain.User {
	t.Helper()

	users := testutil.BuildUsers(t, s.DB.DB, n)
	for _, u := range users {
		_, err := s.Services.Queue.Join(context.Background(), u.ID)
		require.NoError(t, err)
	}
	return users
}

// newUserWithRating creates a user with a specific starting rating.
func newUserWithRating(t *testing.T, s *stack, rating int) (*domain.User, string) {
	t.Helper()
	return testutil.NewUserBuilder().WithRating(rating).Build(t, s.DB.DB)
}

// activeMatchOf loads the user's current non-terminal match.
func activeMatchOf(t *testing.T, s *stack, userID uuid.UUID) *domain.Match {
	t.Helper()

	match, err := s.Repos.Match.GetActiveByUserID(context.Background(), userID)
	require.NoError(t, err)
	return match
}

// captainOf returns the captain user ID for a side.
func captainOf(match *domain.Match, side domain.Side) uuid.UUID {
	if side == domain.SideAlpha {
		return match.CaptainAlpha
	}
	return match.CaptainBeta
}

// runDraft performs captain picks until the match leaves the draft
// phase, always picking the first undrafted player.
func runDraft(t *testing.T, s *stack, matchID uuid.UUID) *domain.Match {
	t.Helper()

	ctx := context.Background()
	for {
		match, err := s.Services.Match.Get(ctx, matchID)
		require.NoError(t, err)
		if match.Phase != domain.MatchPhaseDraft {
			return match
		}
		require.NotNil(t, match.CurrentPicker)

		pool := match.Undrafted()
		require.NotEmpty(t, pool)

		_, err = s.Services.Match.PickPlayer(ctx, matchID,
			captainOf(match, *match.CurrentPicker), pool[0].UserID)
		require.NoError(t, err)
	}
}

// runVeto bans the first available map on every turn until the match
// leaves the veto phase.
func runVeto(t *testing.T, s *stack, matchID uuid.UUID) *domain.Match {
	t.Helper()

	ctx := context.Background()
	for {
		match, err := s.Services.Match.Get(ctx, matchID)
		require.NoError(t, err)
		if match.Phase != domain.MatchPhaseVeto {
			return match
		}
		require.NotNil(t, match.CurrentVeto)

		_, err = s.Services.Match.BanMap(ctx, matchID,
			captainOf(match, *match.CurrentVeto), match.AvailableMaps[0])
		require.NoError(t, err)
	}
}

// waitForPhase polls until the match reaches the wanted phase.
func waitForPhase(t *testing.T, s *stack, matchID uuid.UUID, phase domain.MatchPhase) *domain.Match {
	t.Helper()

	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		match, err := s.Services.Match.Get(ctx, matchID)
		require.NoError(t, err)
		if match.Phase == phase {
			return match
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("match %s never reached phase %s", matchID, phase)
	return nil
}
