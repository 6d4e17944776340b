package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus represents the lifecycle state of a queue pool.
type QueueStatus string

const (
	QueueStatusWaiting     QueueStatus = "waiting"
	QueueStatusAcceptPhase QueueStatus = "accept_phase"
	QueueStatusFull        QueueStatus = "full"
	QueueStatusProcessing  QueueStatus = "processing"
	QueueStatusCompleted   QueueStatus = "completed"
)

// DefaultQueueSize is the number of players required to fill a pool.
const DefaultQueueSize = 10

// Queue is the waiting pool of not-yet-matched players. At most one
// non-completed pool exists at a time; a fresh one is created lazily on
// the first join after the previous pool completed.
type Queue struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Status       QueueStatus `json:"status" gorm:"type:varchar(20);not null;default:'waiting'"`
	RequiredSize int         `json:"requiredSize" gorm:"not null;default:10"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	Entries []QueueEntry `json:"entries,omitempty" gorm:"foreignKey:QueueID"`
}

func (Queue) TableName() string {
	return "queues"
}

// IsFull returns true if the pool has reached its required size.
func (q *Queue) IsFull() bool {
	return len(q.Entries) >= q.RequiredSize
}

// QueueEntry is one player's membership in a pool. Positions are 1-based
// and contiguous after every add and remove. Priority entries sort ahead
// of non-priority entries, ties broken by join time.
type QueueEntry struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	QueueID     uuid.UUID `json:"queueId" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID `json:"userId" gorm:"type:uuid;not null"`
	DisplayName string    `json:"displayName" gorm:"type:varchar(100)"`
	AvatarURL   string    `json:"avatarUrl" gorm:"type:varchar(255)"`
	Position    int       `json:"position" gorm:"not null"`
	HasPriority bool      `json:"hasPriority" gorm:"not null;default:false"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (QueueEntry) TableName() string {
	return "queue_entries"
}

func (e *QueueEntry) Ref() PlayerRef {
	return PlayerRef{
		UserID:      e.UserID,
		DisplayName: e.DisplayName,
		AvatarURL:   e.AvatarURL,
	}
}
