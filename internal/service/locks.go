package service

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLocks hands out one mutex per match so state transitions on the
// same match serialize while different matches proceed in parallel.
type keyedLocks struct {
	locks sync.Map
}

func (k *keyedLocks) lock(id uuid.UUID) func() {
	v, _ := k.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
