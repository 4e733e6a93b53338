package gateway

import (
	"sync"
	"sync/atomic"
)

// PrimaryState is the shared, concurrently-read "current primary" cell.
// The discovery loop is the sole writer; the acceptor and every worker are
// readers. epoch is bumped exactly once per primary change (possibly to
// "no primary"), and is read far more often than the target itself is, so
// it is kept as its own atomic counter: a worker's hot loop only needs
// Epoch(), never the mutex Current() guards.
type PrimaryState struct {
	mu            sync.RWMutex
	target        TargetAddress
	candidateIdx  int
	epoch         atomic.Uint64
}

// NewPrimaryState returns a PrimaryState with no primary and epoch 0.
func NewPrimaryState() *PrimaryState {
	return &PrimaryState{candidateIdx: -1}
}

// Epoch returns the current epoch. Safe to call without synchronization
// from any worker's hot loop.
func (s *PrimaryState) Epoch() uint64 { return s.epoch.Load() }

// Current returns the presently-selected target and its candidate index
// (-1 if there is no healthy primary).
func (s *PrimaryState) Current() (TargetAddress, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target, s.candidateIdx
}

// Update installs a new target (or clears it, when target is invalid) if it
// differs from the current one, bumping the epoch. It reports whether the
// epoch changed and the resulting epoch value.
func (s *PrimaryState) Update(target TargetAddress, idx int) (changed bool, epoch uint64) {
	s.mu.Lock()
	if s.target.Equal(target) && s.candidateIdx == idx {
		epoch = s.epoch.Load()
		s.mu.Unlock()
		return false, epoch
	}
	s.target = target
	s.candidateIdx = idx
	s.mu.Unlock()

	epoch = s.epoch.Add(1)
	return true, epoch
}
