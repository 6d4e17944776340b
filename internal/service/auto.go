package service

import (
	"github.com/dom/scrimhub/internal/domain"
	"github.com/google/uuid"
)

// AutoParticipant decides the move made on behalf of a captain whose
// turn timer expired. Implementations must not mutate the match.
type AutoParticipant interface {
	PickFor(match *domain.Match, side domain.Side) (uuid.UUID, bool)
	BanFor(match *domain.Match, side domain.Side) (string, bool)
}

// FirstAvailable picks the first undrafted player and bans the first
// remaining map. Deterministic, which keeps timeout behavior testable.
type FirstAvailable struct{}

func (FirstAvailable) PickFor(match *domain.Match, _ domain.Side) (uuid.UUID, bool) {
	pool := match.Undrafted()
	if len(pool) == 0 {
		return uuid.Nil, false
	}
	return pool[0].UserID, true
}

func (FirstAvailable) BanFor(match *domain.Match, _ domain.Side) (string, bool) {
	if len(match.AvailableMaps) == 0 {
		return "", false
	}
	return match.AvailableMaps[0], true
}
