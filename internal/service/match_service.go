package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/provision"
	"github.com/dom/scrimhub/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MatchService drives a match through draft, veto, provisioning and
// completion. Every mutation takes the per-match lock first, so the
// phase machine only ever moves forward.
type MatchService struct {
	matches  repository.MatchRepository
	users    repository.UserRepository
	counters repository.CounterRepository

	provisioner provision.Provisioner
	notifier    Notifier
	auto        AutoParticipant
	log         *zap.SugaredLogger

	turnTimeout time.Duration
	mapPool     []string

	locks keyedLocks

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func NewMatchService(
	matches repository.MatchRepository,
	users repository.UserRepository,
	counters repository.CounterRepository,
	provisioner provision.Provisioner,
	notifier Notifier,
	auto AutoParticipant,
	log *zap.SugaredLogger,
	turnTimeout time.Duration,
	mapPool []string,
) *MatchService {
	return &MatchService{
		matches:     matches,
		users:       users,
		counters:    counters,
		provisioner: provisioner,
		notifier:    notifier,
		auto:        auto,
		log:         log,
		turnTimeout: turnTimeout,
		mapPool:     mapPool,
		timers:      make(map[uuid.UUID]*time.Timer),
	}
}

// CompleteRequest is the reported result of a live match.
type CompleteRequest struct {
	Winner     *domain.Side `json:"winner"`
	IsDraw     bool         `json:"isDraw"`
	ScoreAlpha int          `json:"scoreAlpha"`
	ScoreBeta  int          `json:"scoreBeta"`
}

// CreateFromRoster builds a match from a full pool. The two highest
// rated players captain, highest on alpha. The match starts in the
// given phase: accept while the ready check runs, or draft directly.
func (s *MatchService) CreateFromRoster(ctx context.Context, queue *domain.Queue, phase domain.MatchPhase) (*domain.Match, error) {
	type rated struct {
		entry  *domain.QueueEntry
		rating int
	}
	roster := make([]rated, 0, len(queue.Entries))
	for i := range queue.Entries {
		e := &queue.Entries[i]
		user, err := s.users.GetByID(ctx, e.UserID)
		if err != nil {
			return nil, err
		}
		roster = append(roster, rated{entry: e, rating: user.Rating})
	}
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].rating > roster[j].rating
	})

	code, err := s.counters.NextMatchCode(ctx)
	if err != nil {
		return nil, err
	}

	captainAlpha := roster[0].entry.UserID
	captainBeta := roster[1].entry.UserID

	match := &domain.Match{
		Code:          code,
		Phase:         phase,
		CaptainAlpha:  captainAlpha,
		CaptainBeta:   captainBeta,
		PickOrder:     domain.DefaultPickOrder(),
		AvailableMaps: append([]string(nil), s.mapPool...),
		VetoOrder:     domain.DefaultVetoOrder(len(s.mapPool)),
	}
	if phase == domain.MatchPhaseDraft {
		match.CurrentPicker = domain.TurnAt(match.PickOrder, 0)
	}

	now := time.Now()
	for _, r := range roster {
		player := domain.MatchPlayer{
			UserID:      r.entry.UserID,
			DisplayName: r.entry.DisplayName,
			AvatarURL:   r.entry.AvatarURL,
		}
		switch r.entry.UserID {
		case captainAlpha:
			side := domain.SideAlpha
			player.Team = &side
			player.IsCaptain = true
			player.PickedAt = &now
		case captainBeta:
			side := domain.SideBeta
			player.Team = &side
			player.IsCaptain = true
			player.PickedAt = &now
		}
		match.Players = append(match.Players, player)
	}

	if err := s.matches.Create(ctx, match); err != nil {
		return nil, err
	}

	if phase == domain.MatchPhaseDraft {
		s.scheduleTurn(match)
	}
	return match, nil
}

// BeginDraft moves a match out of the accept phase once the ready check
// completed. Calling it on a match already drafting is a no-op.
func (s *MatchService) BeginDraft(ctx context.Context, matchID uuid.UUID) error {
	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Phase == domain.MatchPhaseDraft {
		return nil
	}
	if match.Phase != domain.MatchPhaseAccept {
		return domain.ErrInvalidMatchPhase
	}

	match.Phase = domain.MatchPhaseDraft
	match.CurrentPicker = domain.TurnAt(match.PickOrder, 0)
	if err := s.matches.Update(ctx, match); err != nil {
		return err
	}

	s.notifier.ToMatch(match.ID, "phase-change", map[string]any{
		"matchId": match.ID,
		"phase":   match.Phase,
	})
	s.scheduleTurn(match)
	return nil
}

// PickPlayer drafts a player onto the calling captain's team.
func (s *MatchService) PickPlayer(ctx context.Context, matchID, captainID, targetID uuid.UUID) (*domain.Match, error) {
	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Phase != domain.MatchPhaseDraft {
		return nil, domain.ErrInvalidMatchPhase
	}
	side, ok := match.CaptainSide(captainID)
	if !ok {
		return nil, domain.ErrNotACaptain
	}
	if match.CurrentPicker == nil || *match.CurrentPicker != side {
		return nil, domain.ErrNotYourTurn
	}

	if err := s.applyPick(ctx, match, side, targetID, false); err != nil {
		return nil, err
	}
	return match, nil
}

// BanMap removes a map from the veto pool on the calling captain's turn.
func (s *MatchService) BanMap(ctx context.Context, matchID, captainID uuid.UUID, mapName string) (*domain.Match, error) {
	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Phase != domain.MatchPhaseVeto {
		return nil, domain.ErrInvalidMatchPhase
	}
	side, ok := match.CaptainSide(captainID)
	if !ok {
		return nil, domain.ErrNotACaptain
	}
	if match.CurrentVeto == nil || *match.CurrentVeto != side {
		return nil, domain.ErrNotYourTurn
	}

	if err := s.applyBan(ctx, match, side, mapName, false); err != nil {
		return nil, err
	}
	return match, nil
}

// Complete records the result of a live match and applies player stats
// exactly once. Re-reporting a completed match returns it unchanged.
func (s *MatchService) Complete(ctx context.Context, matchID, callerID uuid.UUID, req CompleteRequest) (*domain.Match, error) {
	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Player(callerID) == nil {
		return nil, domain.ErrNotAParticipant
	}
	if match.Phase == domain.MatchPhaseComplete {
		return match, nil
	}
	if match.Phase != domain.MatchPhaseLive {
		return nil, domain.ErrInvalidMatchPhase
	}
	if !req.IsDraw && req.Winner == nil {
		return nil, domain.ErrInvalidMatchPhase
	}

	now := time.Now()
	match.Phase = domain.MatchPhaseComplete
	match.IsDraw = req.IsDraw
	match.WinnerSide = req.Winner
	match.ScoreAlpha = req.ScoreAlpha
	match.ScoreBeta = req.ScoreBeta
	match.CompletedAt = &now

	// The terminal phase goes down first; a retried report then returns
	// early instead of counting the result twice.
	if err := s.matches.Update(ctx, match); err != nil {
		return nil, err
	}

	if !match.StatsApplied {
		if err := s.applyStats(ctx, match); err != nil {
			return nil, err
		}
		match.StatsApplied = true
		if err := s.matches.Update(ctx, match); err != nil {
			return nil, err
		}
	}
	for i := range match.Players {
		if err := s.users.SetCurrentMatch(ctx, match.Players[i].UserID, nil); err != nil {
			return nil, err
		}
	}

	s.stopTurn(match.ID)
	s.notifier.ToMatch(match.ID, "match-complete", map[string]any{
		"matchId":    match.ID,
		"winnerSide": match.WinnerSide,
		"isDraw":     match.IsDraw,
		"scoreAlpha": match.ScoreAlpha,
		"scoreBeta":  match.ScoreBeta,
	})

	go s.teardownAsync(match.Code)
	return match, nil
}

// Cancel aborts a non-terminal match at a participant's request.
func (s *MatchService) Cancel(ctx context.Context, matchID, callerID uuid.UUID) error {
	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Player(callerID) == nil {
		return domain.ErrNotAParticipant
	}
	return s.cancelLocked(ctx, match, "cancelled by participant")
}

// CancelInternal aborts a match on behalf of the system, e.g. when its
// ready check fails.
func (s *MatchService) CancelInternal(ctx context.Context, matchID uuid.UUID, reason string) error {
	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		return err
	}
	return s.cancelLocked(ctx, match, reason)
}

// Current returns the caller's active match.
func (s *MatchService) Current(ctx context.Context, userID uuid.UUID) (*domain.Match, error) {
	match, err := s.matches.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// Get returns a match by ID.
func (s *MatchService) Get(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	return s.get(ctx, matchID)
}

func (s *MatchService) get(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// applyPick performs one draft turn. Caller holds the match lock and
// has validated the turn.
func (s *MatchService) applyPick(ctx context.Context, match *domain.Match, side domain.Side, targetID uuid.UUID, auto bool) error {
	player := match.Player(targetID)
	if player == nil || player.Team != nil {
		return domain.ErrPlayerUnavailable
	}

	now := time.Now()
	player.Team = &side
	player.PickedAt = &now
	if err := s.matches.UpdatePlayer(ctx, player); err != nil {
		return err
	}

	match.PickHistory = append(match.PickHistory, domain.PickRecord{
		Index:    match.PickIndex,
		Side:     side,
		UserID:   targetID,
		Auto:     auto,
		PickedAt: now,
	})
	match.PickIndex++

	// The undrafted pool can run dry before the order does when the
	// roster is smaller than the standard ten.
	if match.PickIndex >= len(match.PickOrder) || len(match.Undrafted()) == 0 {
		match.CurrentPicker = nil
		s.notifier.ToMatch(match.ID, "draft-update", map[string]any{
			"matchId":       match.ID,
			"pickIndex":     match.PickIndex,
			"currentPicker": match.CurrentPicker,
			"picked":        targetID,
			"auto":          auto,
		})
		if err := s.assignRemainder(ctx, match); err != nil {
			return err
		}
		return s.beginVeto(ctx, match)
	}

	match.CurrentPicker = domain.TurnAt(match.PickOrder, match.PickIndex)
	if err := s.matches.Update(ctx, match); err != nil {
		return err
	}

	s.notifier.ToMatch(match.ID, "draft-update", map[string]any{
		"matchId":       match.ID,
		"pickIndex":     match.PickIndex,
		"currentPicker": match.CurrentPicker,
		"picked":        targetID,
		"auto":          auto,
	})
	s.scheduleTurn(match)
	return nil
}

// assignRemainder places any player left after the pick order runs out
// onto the smaller team. With the standard ten player pool the order
// covers everyone and this is a no-op.
func (s *MatchService) assignRemainder(ctx context.Context, match *domain.Match) error {
	for {
		pool := match.Undrafted()
		if len(pool) == 0 {
			return nil
		}
		side := match.SmallerTeam()
		now := time.Now()
		player := match.Player(pool[0].UserID)
		player.Team = &side
		player.PickedAt = &now
		if err := s.matches.UpdatePlayer(ctx, player); err != nil {
			return err
		}
	}
}

func (s *MatchService) beginVeto(ctx context.Context, match *domain.Match) error {
	match.Phase = domain.MatchPhaseVeto
	match.CurrentPicker = nil
	match.CurrentVeto = domain.TurnAt(match.VetoOrder, 0)
	if err := s.matches.Update(ctx, match); err != nil {
		return err
	}

	s.notifier.ToMatch(match.ID, "phase-change", map[string]any{
		"matchId": match.ID,
		"phase":   match.Phase,
	})
	s.scheduleTurn(match)
	return nil
}

// applyBan performs one veto turn. Caller holds the match lock and has
// validated the turn.
func (s *MatchService) applyBan(ctx context.Context, match *domain.Match, side domain.Side, mapName string, auto bool) error {
	if !match.MapAvailable(mapName) {
		return domain.ErrMapUnavailable
	}

	remaining := make([]string, 0, len(match.AvailableMaps)-1)
	for _, m := range match.AvailableMaps {
		if m != mapName {
			remaining = append(remaining, m)
		}
	}
	match.AvailableMaps = remaining
	match.BannedMaps = append(match.BannedMaps, domain.BanRecord{
		Index:    match.VetoIndex,
		Map:      mapName,
		BannedBy: side,
		Auto:     auto,
		BannedAt: time.Now(),
	})
	match.VetoIndex++

	if len(match.AvailableMaps) == 1 {
		match.SelectedMap = match.AvailableMaps[0]
		match.CurrentVeto = nil
		match.Phase = domain.MatchPhaseReady
		if err := s.matches.Update(ctx, match); err != nil {
			return err
		}
		s.stopTurn(match.ID)
		s.notifier.ToMatch(match.ID, "phase-change", map[string]any{
			"matchId":     match.ID,
			"phase":       match.Phase,
			"selectedMap": match.SelectedMap,
		})
		go s.provisionAsync(match.ID)
		return nil
	}

	match.CurrentVeto = domain.TurnAt(match.VetoOrder, match.VetoIndex)
	if err := s.matches.Update(ctx, match); err != nil {
		return err
	}

	s.notifier.ToMatch(match.ID, "veto-update", map[string]any{
		"matchId":     match.ID,
		"vetoIndex":   match.VetoIndex,
		"currentVeto": match.CurrentVeto,
		"banned":      mapName,
		"auto":        auto,
	})
	s.scheduleTurn(match)
	return nil
}

// provisionAsync requests a game server and moves the match live. A
// failed allocation still goes live: players fall back to arranging a
// server themselves rather than losing the match.
func (s *MatchService) provisionAsync(matchID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	match, err := s.get(ctx, matchID)
	if err != nil {
		s.log.Errorw("provisioning: loading match", "matchId", matchID, "error", err)
		return
	}

	req := provision.AllocateRequest{
		MatchCode: match.Code,
		Map:       match.SelectedMap,
	}
	for _, p := range match.Team(domain.SideAlpha) {
		req.TeamAlpha = append(req.TeamAlpha, domain.PlayerRef{UserID: p.UserID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL})
	}
	for _, p := range match.Team(domain.SideBeta) {
		req.TeamBeta = append(req.TeamBeta, domain.PlayerRef{UserID: p.UserID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL})
	}

	info, allocErr := s.provisioner.Allocate(ctx, req)
	if allocErr != nil {
		s.log.Warnw("provisioning failed, going live without a server",
			"matchId", matchID, "error", allocErr)
	}

	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err = s.get(ctx, matchID)
	if err != nil {
		s.log.Errorw("provisioning: reloading match", "matchId", matchID, "error", err)
		return
	}
	if match.Phase != domain.MatchPhaseReady {
		// Cancelled while we were allocating.
		return
	}

	if info != nil {
		match.ServerInfo = datatypes.NewJSONType(*info)
	}
	match.Phase = domain.MatchPhaseLive
	if err := s.matches.Update(ctx, match); err != nil {
		s.log.Errorw("provisioning: updating match", "matchId", matchID, "error", err)
		return
	}

	s.notifier.ToMatch(match.ID, "server-ready", map[string]any{
		"matchId":    match.ID,
		"serverInfo": info,
	})
	s.notifier.ToMatch(match.ID, "phase-change", map[string]any{
		"matchId": match.ID,
		"phase":   match.Phase,
	})
}

func (s *MatchService) teardownAsync(matchCode int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.provisioner.Teardown(ctx, matchCode); err != nil {
		s.log.Warnw("tearing down game server", "matchCode", matchCode, "error", err)
	}
}

func (s *MatchService) applyStats(ctx context.Context, match *domain.Match) error {
	for i := range match.Players {
		p := &match.Players[i]
		var outcome domain.Outcome
		won := false
		delta := 0
		switch {
		case match.IsDraw:
			outcome = domain.OutcomeDraw
		case p.Team != nil && *p.Team == *match.WinnerSide:
			outcome = domain.Outcome(*match.WinnerSide)
			won = true
			delta = domain.RatingDelta
		default:
			outcome = domain.Outcome(*match.WinnerSide)
			delta = -domain.RatingDelta
		}
		if err := s.users.ApplyResult(ctx, p.UserID, outcome, won, delta); err != nil {
			return err
		}
	}
	return nil
}

// cancelLocked finishes a cancellation. Caller holds the match lock.
func (s *MatchService) cancelLocked(ctx context.Context, match *domain.Match, reason string) error {
	if match.IsTerminal() {
		return nil
	}

	hadServer := match.Phase == domain.MatchPhaseReady || match.Phase == domain.MatchPhaseLive
	match.Phase = domain.MatchPhaseCancelled
	if err := s.matches.Update(ctx, match); err != nil {
		return err
	}

	for i := range match.Players {
		if err := s.users.SetCurrentMatch(ctx, match.Players[i].UserID, nil); err != nil {
			return err
		}
	}

	s.stopTurn(match.ID)
	s.notifier.ToMatch(match.ID, "match-cancelled", map[string]any{
		"matchId": match.ID,
		"reason":  reason,
	})

	if hadServer {
		go s.teardownAsync(match.Code)
	}
	return nil
}

// scheduleTurn arms the turn deadline for the match's current phase and
// index. Firing on a stale turn is a no-op.
func (s *MatchService) scheduleTurn(match *domain.Match) {
	if s.turnTimeout <= 0 || s.auto == nil {
		return
	}

	matchID := match.ID
	phase := match.Phase
	index := match.PickIndex
	if phase == domain.MatchPhaseVeto {
		index = match.VetoIndex
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[matchID]; ok {
		t.Stop()
	}
	s.timers[matchID] = time.AfterFunc(s.turnTimeout, func() {
		s.turnExpired(matchID, phase, index)
	})
}

func (s *MatchService) stopTurn(matchID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[matchID]; ok {
		t.Stop()
		delete(s.timers, matchID)
	}
}

// turnExpired makes the automated move for a captain who let the turn
// clock run out.
func (s *MatchService) turnExpired(matchID uuid.UUID, phase domain.MatchPhase, index int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unlock := s.locks.lock(matchID)
	defer unlock()

	match, err := s.get(ctx, matchID)
	if err != nil {
		s.log.Warnw("turn timeout: loading match", "matchId", matchID, "error", err)
		return
	}
	if match.Phase != phase {
		return
	}

	switch phase {
	case domain.MatchPhaseDraft:
		if match.PickIndex != index || match.CurrentPicker == nil {
			return
		}
		side := *match.CurrentPicker
		targetID, ok := s.auto.PickFor(match, side)
		if !ok {
			return
		}
		if err := s.applyPick(ctx, match, side, targetID, true); err != nil {
			s.log.Warnw("turn timeout: auto pick", "matchId", matchID, "error", err)
		}
	case domain.MatchPhaseVeto:
		if match.VetoIndex != index || match.CurrentVeto == nil {
			return
		}
		side := *match.CurrentVeto
		mapName, ok := s.auto.BanFor(match, side)
		if !ok {
			return
		}
		if err := s.applyBan(ctx, match, side, mapName, true); err != nil {
			s.log.Warnw("turn timeout: auto ban", "matchId", matchID, "error", err)
		}
	}
}
