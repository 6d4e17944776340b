package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Side identifies one of the two match halves. Captains and teams are
// always keyed by side.
type Side string

const (
	SideAlpha Side = "alpha"
	SideBeta  Side = "beta"
)

// MatchPhase is the strictly forward phase enum of a match, with cancel
// reachable from any non-terminal phase.
type MatchPhase string

const (
	MatchPhaseAccept    MatchPhase = "accept"
	MatchPhaseDraft     MatchPhase = "draft"
	MatchPhaseVeto      MatchPhase = "veto"
	MatchPhaseReady     MatchPhase = "ready"
	MatchPhaseLive      MatchPhase = "live"
	MatchPhaseComplete  MatchPhase = "complete"
	MatchPhaseCancelled MatchPhase = "cancelled"
)

// Outcome is the recorded result of a completed match.
type Outcome string

const (
	OutcomeAlpha Outcome = "alpha"
	OutcomeBeta  Outcome = "beta"
	OutcomeDraw  Outcome = "draw"
)

// RatingDelta is applied to every winner (+) and loser (-), floored at 0.
const RatingDelta = 25

type PickRecord struct {
	Index    int       `json:"index"`
	Side     Side      `json:"side"`
	UserID   uuid.UUID `json:"userId"`
	Auto     bool      `json:"auto"`
	PickedAt time.Time `json:"pickedAt"`
}

type BanRecord struct {
	Index    int       `json:"index"`
	Map      string    `json:"map"`
	BannedBy Side      `json:"bannedBy"`
	Auto     bool      `json:"auto"`
	BannedAt time.Time `json:"bannedAt"`
}

type ServerInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

// Match is the central aggregate owning the draft, veto and result
// sub-protocols once a ready check has succeeded.
type Match struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Code         int64      `json:"code" gorm:"uniqueIndex;not null"`
	Phase        MatchPhase `json:"phase" gorm:"type:varchar(20);not null;default:'accept'"`
	CaptainAlpha uuid.UUID  `json:"captainAlpha" gorm:"type:uuid;not null"`
	CaptainBeta  uuid.UUID  `json:"captainBeta" gorm:"type:uuid;not null"`

	PickOrder     datatypes.JSONSlice[Side]       `json:"pickOrder" gorm:"type:jsonb"`
	PickIndex     int                             `json:"pickIndex" gorm:"not null;default:0"`
	CurrentPicker *Side                           `json:"currentPicker" gorm:"type:varchar(10)"`
	PickHistory   datatypes.JSONSlice[PickRecord] `json:"pickHistory" gorm:"type:jsonb"`

	AvailableMaps datatypes.JSONSlice[string]    `json:"availableMaps" gorm:"type:jsonb"`
	BannedMaps    datatypes.JSONSlice[BanRecord] `json:"bannedMaps" gorm:"type:jsonb"`
	SelectedMap   string                         `json:"selectedMap" gorm:"type:varchar(64)"`
	VetoOrder     datatypes.JSONSlice[Side]      `json:"vetoOrder" gorm:"type:jsonb"`
	VetoIndex     int                            `json:"vetoIndex" gorm:"not null;default:0"`
	CurrentVeto   *Side                          `json:"currentVeto" gorm:"type:varchar(10)"`

	ServerInfo datatypes.JSONType[ServerInfo] `json:"serverInfo" gorm:"type:jsonb"`

	WinnerSide   *Side      `json:"winnerSide" gorm:"type:varchar(10)"`
	IsDraw       bool       `json:"isDraw" gorm:"not null;default:false"`
	ScoreAlpha   int        `json:"scoreAlpha" gorm:"not null;default:0"`
	ScoreBeta    int        `json:"scoreBeta" gorm:"not null;default:0"`
	StatsApplied bool       `json:"-" gorm:"not null;default:false"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt"`

	Players []MatchPlayer `json:"players,omitempty" gorm:"foreignKey:MatchID"`
}

func (Match) TableName() string {
	return "matches"
}

// IsTerminal reports whether the match can no longer be mutated.
func (m *Match) IsTerminal() bool {
	return m.Phase == MatchPhaseComplete || m.Phase == MatchPhaseCancelled
}

// Player returns the roster entry for a user, or nil.
func (m *Match) Player(userID uuid.UUID) *MatchPlayer {
	for i := range m.Players {
		if m.Players[i].UserID == userID {
			return &m.Players[i]
		}
	}
	return nil
}

// CaptainSide returns the side a user captains, if any.
func (m *Match) CaptainSide(userID uuid.UUID) (Side, bool) {
	switch userID {
	case m.CaptainAlpha:
		return SideAlpha, true
	case m.CaptainBeta:
		return SideBeta, true
	}
	return "", false
}

// Team returns the players assigned to a side.
func (m *Match) Team(side Side) []MatchPlayer {
	var team []MatchPlayer
	for _, p := range m.Players {
		if p.Team != nil && *p.Team == side {
			team = append(team, p)
		}
	}
	return team
}

// Undrafted returns the players not yet assigned to a side.
func (m *Match) Undrafted() []MatchPlayer {
	var pool []MatchPlayer
	for _, p := range m.Players {
		if p.Team == nil {
			pool = append(pool, p)
		}
	}
	return pool
}

// MapAvailable reports whether a map is still in the veto pool.
func (m *Match) MapAvailable(name string) bool {
	for _, mp := range m.AvailableMaps {
		if mp == name {
			return true
		}
	}
	return false
}

type MatchPlayer struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MatchID     uuid.UUID  `json:"matchId" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID  `json:"userId" gorm:"type:uuid;not null"`
	DisplayName string     `json:"displayName" gorm:"type:varchar(100)"`
	AvatarURL   string     `json:"avatarUrl" gorm:"type:varchar(255)"`
	Team        *Side      `json:"team" gorm:"type:varchar(10)"`
	IsCaptain   bool       `json:"isCaptain" gorm:"not null;default:false"`
	PickedAt    *time.Time `json:"pickedAt"`
}

func (MatchPlayer) TableName() string {
	return "match_players"
}

// MatchCounter backs the sequential, human-shareable external match code
// used by the provisioning integration.
type MatchCounter struct {
	ID    int   `gorm:"primary_key"`
	Value int64 `gorm:"not null;default:0"`
}

func (MatchCounter) TableName() string {
	return "match_counters"
}
