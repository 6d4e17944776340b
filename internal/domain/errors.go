package domain

import "errors"

// Queue errors
var (
	ErrAlreadyQueued  = errors.New("player is already in queue")
	ErrQueueFull      = errors.New("queue is full")
	ErrNotQueued      = errors.New("player is not in queue")
	ErrAlreadyInMatch = errors.New("player already has an active match")
	ErrAcceptPending  = errors.New("ready check in progress")
)

// Ready session errors
var (
	ErrSessionNotFound = errors.New("ready session not found")
	ErrNotAParticipant = errors.New("player is not a participant of this session")
	ErrSessionExpired  = errors.New("ready session has expired")
)

// Match errors
var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrInvalidMatchPhase = errors.New("invalid match phase for this action")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrNotACaptain       = errors.New("only captains can perform this action")
	ErrPlayerUnavailable = errors.New("player is not in the undrafted pool")
	ErrMapUnavailable    = errors.New("map is not available")
)
