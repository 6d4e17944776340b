package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

func (m *Message) Encode() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"event":"error"}`)
	}
	return data
}

// ClientCommand is what clients may send upstream: room subscription
// management only, all state changes go through the HTTP API.
type ClientCommand struct {
	Action  string    `json:"action"`
	MatchID uuid.UUID `json:"matchId,omitempty"`
}

const (
	ActionSubscribeMatch   = "subscribe-match"
	ActionUnsubscribeMatch = "unsubscribe-match"
)

// QueueRoom is the room every connected client joins on connect.
const QueueRoom = "queue"

// MatchRoom names the room for one match's participants.
func MatchRoom(matchID uuid.UUID) string {
	return "match:" + matchID.String()
}
