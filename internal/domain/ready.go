package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadySessionStatus is the one-shot terminal state machine of a ready check.
type ReadySessionStatus string

const (
	ReadySessionActive    ReadySessionStatus = "active"
	ReadySessionCompleted ReadySessionStatus = "completed"
	ReadySessionTimeout   ReadySessionStatus = "timeout"
	ReadySessionCancelled ReadySessionStatus = "cancelled"
)

// ReadySession is the bounded-time consensus round gating match creation.
// The roster is fixed at creation and never mutated; Accepted flips true
// at most once per player and is never reset.
type ReadySession struct {
	ID        uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MatchID   uuid.UUID          `json:"matchId" gorm:"type:uuid;not null;index"`
	QueueID   uuid.UUID          `json:"queueId" gorm:"type:uuid;not null"`
	Status    ReadySessionStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	ExpiresAt time.Time          `json:"expiresAt" gorm:"not null"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`

	Players []ReadyPlayer `json:"players,omitempty" gorm:"foreignKey:SessionID"`
}

func (ReadySession) TableName() string {
	return "ready_sessions"
}

// AcceptedCount returns how many participants have accepted so far.
func (s *ReadySession) AcceptedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Accepted {
			n++
		}
	}
	return n
}

// AllAccepted reports whether every participant has accepted and nobody
// has declined.
func (s *ReadySession) AllAccepted() bool {
	for _, p := range s.Players {
		if !p.Accepted || p.Declined {
			return false
		}
	}
	return true
}

// AnyDeclined reports whether a participant has explicitly declined.
func (s *ReadySession) AnyDeclined() bool {
	for _, p := range s.Players {
		if p.Declined {
			return true
		}
	}
	return false
}

// Participant returns the roster entry for a user, or nil.
func (s *ReadySession) Participant(userID uuid.UUID) *ReadyPlayer {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

// Partition splits the roster into acceptors and non-acceptors. The two
// sets are disjoint and their union is the original roster.
func (s *ReadySession) Partition() (acceptors, nonAcceptors []ReadyPlayer) {
	for _, p := range s.Players {
		if p.Accepted && !p.Declined {
			acceptors = append(acceptors, p)
		} else {
			nonAcceptors = append(nonAcceptors, p)
		}
	}
	return acceptors, nonAcceptors
}

type ReadyPlayer struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID   uuid.UUID  `json:"sessionId" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID  `json:"userId" gorm:"type:uuid;not null"`
	DisplayName string     `json:"displayName" gorm:"type:varchar(100)"`
	AvatarURL   string     `json:"avatarUrl" gorm:"type:varchar(255)"`
	Accepted    bool       `json:"accepted" gorm:"not null;default:false"`
	Declined    bool       `json:"declined" gorm:"not null;default:false"`
	AcceptedAt  *time.Time `json:"acceptedAt"`
}

func (ReadyPlayer) TableName() string {
	return "ready_players"
}

func (p *ReadyPlayer) Ref() PlayerRef {
	return PlayerRef{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}
