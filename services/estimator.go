package services

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"barber-queue/models"
	"barber-queue/monitoring"
)

// DefaultServiceDurationMinutes is assumed for any entry whose service
// duration the server left unspecified.
const DefaultServiceDurationMinutes = 30

func entryDuration(e models.QueueEntry) int {
	if e.ServiceDurationMinutes <= 0 {
		return DefaultServiceDurationMinutes
	}
	return e.ServiceDurationMinutes
}

// EstimateWait maps a snapshot and the caller's entry id to the number of
// people waiting and a raw estimated wait in minutes. PeopleWaiting counts
// Waiting and UpNext entries in the whole snapshot, independent of the
// caller. The estimate sums service durations of entries strictly ahead of
// the caller that are Waiting, UpNext or InProgress; if the caller is not in
// the snapshot the whole queue counts as ahead.
func EstimateWait(snapshot models.QueueSnapshot, selfID string) (peopleWaiting, estimatedMinutes int) {
	for _, e := range snapshot {
		if e.Status == models.StatusWaiting || e.Status == models.StatusUpNext {
			peopleWaiting++
		}
	}

	ahead := snapshot
	if i := snapshot.IndexOf(selfID); i >= 0 {
		ahead = snapshot[:i]
	}
	for _, e := range ahead {
		switch e.Status {
		case models.StatusWaiting, models.StatusUpNext, models.StatusInProgress:
			estimatedMinutes += entryDuration(e)
		}
	}
	return peopleWaiting, estimatedMinutes
}

// leaverMinutes sums the durations of entries that were ahead of the caller
// in the old snapshot and are absent from the new one.
func leaverMinutes(old, current models.QueueSnapshot, selfID string) int {
	ahead := old
	if i := old.IndexOf(selfID); i >= 0 {
		ahead = old[:i]
	}

	minutes := 0
	for _, e := range ahead {
		if current.IndexOf(e.ID) < 0 {
			minutes += entryDuration(e)
		}
	}
	return minutes
}

// EWTTracker owns displayMinutes, the smoothed wait figure shown to the
// customer. It drops immediately when someone ahead leaves, ticks down once
// a minute while queued, and snaps down to a fresh estimate that comes in
// lower. It never moves upward within a join session.
type EWTTracker struct {
	clock        clockwork.Clock
	tickInterval time.Duration

	mu     sync.Mutex
	state  models.EWTState
	queued bool
}

func NewEWTTracker(clock clockwork.Clock, tickInterval time.Duration) *EWTTracker {
	return &EWTTracker{
		clock:        clock,
		tickInterval: tickInterval,
	}
}

// Apply runs one reconciliation pass: leaver subtraction first, then the
// fresh recompute with the one-directional snap.
func (t *EWTTracker) Apply(old, current models.QueueSnapshot, selfID string) models.EWTState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dropped := leaverMinutes(old, current, selfID); dropped > 0 {
		t.state.DisplayMinutes -= dropped
		if t.state.DisplayMinutes < 0 {
			t.state.DisplayMinutes = 0
		}
	}

	peopleWaiting, estimated := EstimateWait(current, selfID)
	t.state.PeopleWaiting = peopleWaiting
	t.state.EstimatedMinutes = estimated

	if estimated < t.state.DisplayMinutes || t.state.DisplayMinutes == 0 {
		t.state.DisplayMinutes = estimated
	}

	monitoring.TrackDisplayMinutes(t.state.DisplayMinutes)
	return t.state
}

// SetQueued starts or stops the minute countdown. A fresh join resets the
// tracker so the first recompute seeds displayMinutes.
func (t *EWTTracker) SetQueued(queued bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queued = queued
	if !queued {
		t.state = models.EWTState{}
	}
}

// State returns the current wait-time figures.
func (t *EWTTracker) State() models.EWTState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run drives the fixed ticking timer that decrements displayMinutes once per
// interval while the user is queued. Blocks until ctx is cancelled.
func (t *EWTTracker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("ewt ticker stopped")
			return
		case <-ticker.Chan():
			t.tick()
		}
	}
}

func (t *EWTTracker) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.queued || t.state.DisplayMinutes == 0 {
		return
	}
	t.state.DisplayMinutes--
	monitoring.TrackDisplayMinutes(t.state.DisplayMinutes)
}
