package websocket

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type roomMessage struct {
	room string
	data []byte
}

type subscription struct {
	client *Client
	room   string
}

// Hub routes events to room subscribers. All room state is owned by the
// Run goroutine; services talk to it through channels only.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan roomMessage

	log *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan roomMessage, 256),
		log:         log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.admit(client)
			h.log.Debugw("client connected", "userId", client.userID)

		case client := <-h.unregister:
			h.remove(client)

		case sub := <-h.subscribe:
			h.join(sub.client, sub.room)

		case sub := <-h.unsubscribe:
			h.leave(sub.client, sub.room)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// ToQueue implements service.Notifier.
func (h *Hub) ToQueue(event string, payload any) {
	msg := Message{Event: event, Payload: payload}
	h.broadcast <- roomMessage{room: QueueRoom, data: msg.Encode()}
}

// ToMatch implements service.Notifier.
func (h *Hub) ToMatch(matchID uuid.UUID, event string, payload any) {
	msg := Message{Event: event, Payload: payload}
	h.broadcast <- roomMessage{room: MatchRoom(matchID), data: msg.Encode()}
}

func (h *Hub) admit(client *Client) {
	h.clients[client] = true
	h.join(client, QueueRoom)
}

func (h *Hub) deliver(msg roomMessage) {
	for client := range h.rooms[msg.room] {
		select {
		case client.send <- msg.data:
		default:
			// Slow consumer, drop the connection.
			h.remove(client)
		}
	}
}

func (h *Hub) join(client *Client, room string) {
	if !h.clients[client] {
		// Removed clients have a closed send channel; a late subscribe
		// command must not put them back in a room.
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

func (h *Hub) leave(client *Client, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) remove(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for room, clients := range h.rooms {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.send)
}
