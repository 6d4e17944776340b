package service

import "github.com/google/uuid"

// Notifier fans events out to connected clients. The websocket hub
// implements it; tests substitute a recorder.
type Notifier interface {
	// ToQueue broadcasts to everyone watching the queue.
	ToQueue(event string, payload any)
	// ToMatch broadcasts to the participants of one match.
	ToMatch(matchID uuid.UUID, event string, payload any)
}

type NoopNotifier struct{}

func (NoopNotifier) ToQueue(string, any)            {}
func (NoopNotifier) ToMatch(uuid.UUID, string, any) {}
