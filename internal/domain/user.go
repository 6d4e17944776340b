package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRating is the rating assigned to new accounts.
const DefaultRating = 1000

type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PasswordHash   string     `json:"-" gorm:"not null"`
	DisplayName    string     `json:"displayName" gorm:"uniqueIndex;not null"`
	AvatarURL      string     `json:"avatarUrl" gorm:"type:varchar(255)"`
	Rating         int        `json:"rating" gorm:"not null;default:1000"`
	Wins           int        `json:"wins" gorm:"not null;default:0"`
	Losses         int        `json:"losses" gorm:"not null;default:0"`
	Draws          int        `json:"draws" gorm:"not null;default:0"`
	InQueue        bool       `json:"inQueue" gorm:"not null;default:false"`
	CurrentMatchID *uuid.UUID `json:"currentMatchId" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type UserSession struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID           uuid.UUID `json:"userId" gorm:"type:uuid;not null"`
	RefreshTokenHash string    `json:"-" gorm:"not null"`
	ExpiresAt        time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt        time.Time `json:"createdAt"`
}

// PlayerRef is an immutable snapshot of a player taken at the time of an
// action. Queue entries, ready sessions and matches copy it instead of
// joining on users, so later profile edits do not rewrite history.
type PlayerRef struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
}

func (u *User) Ref() PlayerRef {
	return PlayerRef{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}
