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

// LoadErrorMessage is the inline text shown when a snapshot fetch fails.
const LoadErrorMessage = "Could not load the queue. It will retry shortly."

// Refresh trigger labels, for logs and metrics.
const (
	TriggerPoll       = "poll"
	TriggerRealtime   = "realtime"
	TriggerForeground = "foreground"
	TriggerManual     = "manual"
)

// QueueFetcher is the slice of the backend API the reconciler needs.
type QueueFetcher interface {
	PublicQueue(ctx context.Context, barberID string) (models.QueueSnapshot, error)
	MissedTerminalEvent(ctx context.Context, userID string) (*models.TerminalEvent, error)
}

// Reconciler keeps one authoritative queue snapshot fresh from three
// independent triggers: the fixed poll, realtime wake-ups and foreground
// transitions. Every trigger runs the same full fetch-and-replace, so
// duplicate or out-of-order pushes are harmless. Known accepted race: two
// refetches in flight with the older resolving last; the last write wins
// and nothing re-orders them.
type Reconciler struct {
	api          QueueFetcher
	ewt          *EWTTracker
	notifier     *TurnNotifier
	clock        clockwork.Clock
	pollInterval time.Duration

	// onSessionEnd runs once when the caller's entry reaches a terminal
	// state; the session layer uses it to tear down per-join resources.
	onSessionEnd func()

	mu        sync.RWMutex
	userID    string
	barberID  string
	selfID    string
	snapshot  models.QueueSnapshot
	loadError string

	wakeCh chan string
}

func NewReconciler(api QueueFetcher, ewt *EWTTracker, notifier *TurnNotifier, clock clockwork.Clock, pollInterval time.Duration) *Reconciler {
	return &Reconciler{
		api:          api,
		ewt:          ewt,
		notifier:     notifier,
		clock:        clock,
		pollInterval: pollInterval,
		wakeCh:       make(chan string, 8),
	}
}

// SetOnSessionEnd installs the terminal-state teardown hook.
func (r *Reconciler) SetOnSessionEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSessionEnd = fn
}

// Bind points the reconciler at a join. The previous snapshot is discarded;
// a dependency change never reuses state.
func (r *Reconciler) Bind(userID, barberID, selfEntryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = userID
	r.barberID = barberID
	r.selfID = selfEntryID
	r.snapshot = nil
	r.loadError = ""
}

// Snapshot returns the current complete snapshot and the inline load error,
// if any. Consumers see either the old or the new snapshot, never a partial
// one.
func (r *Reconciler) Snapshot() (models.QueueSnapshot, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(models.QueueSnapshot, len(r.snapshot))
	copy(snapshot, r.snapshot)
	return snapshot, r.loadError
}

// SelfEntry returns the caller's entry in the current snapshot, if present.
func (r *Reconciler) SelfEntry() (models.QueueEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Find(r.selfID)
}

// Wake asks for an immediate refetch. Realtime payloads and foreground
// transitions both land here; the payload body has already been discarded.
func (r *Reconciler) Wake(trigger string) {
	select {
	case r.wakeCh <- trigger:
	default:
		// A refresh is already queued; one full refetch covers any number
		// of pending wake-ups.
	}
}

// Run drives the poll loop and serves wake-ups until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("reconciler stopped")
			return
		case <-ticker.Chan():
			r.Refresh(ctx, TriggerPoll)
		case trigger := <-r.wakeCh:
			r.Refresh(ctx, trigger)
		}
	}
}

// Refresh is the single fetch-and-replace operation behind every trigger.
func (r *Reconciler) Refresh(ctx context.Context, trigger string) {
	r.mu.RLock()
	userID, barberID, selfID := r.userID, r.barberID, r.selfID
	r.mu.RUnlock()

	if barberID == "" {
		return
	}

	fresh, err := r.api.PublicQueue(ctx, barberID)
	if err != nil {
		log.Error().Err(err).Str("trigger", trigger).Str("barber_id", barberID).Msg("queue refetch failed")
		monitoring.TrackRefresh(trigger, "error")

		r.mu.Lock()
		r.snapshot = models.QueueSnapshot{}
		r.loadError = LoadErrorMessage
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	old := r.snapshot
	r.snapshot = fresh
	r.loadError = ""
	r.mu.Unlock()

	monitoring.TrackRefresh(trigger, "success")
	monitoring.TrackSnapshotSize(len(fresh))

	if selfID == "" {
		return
	}

	r.ewt.Apply(old, fresh, selfID)

	if self, ok := fresh.Find(selfID); ok {
		r.notifier.Observe(ctx, self.Status)
	} else if !r.notifier.Terminal() {
		r.recoverMissedTerminal(ctx, userID)
	}

	if r.notifier.Terminal() {
		r.endSession()
	}
}

// recoverMissedTerminal compensates for at-most-once realtime delivery: the
// caller's entry vanished without an observed Done/Cancelled transition, so
// ask the server what happened and replay the modal from its answer.
func (r *Reconciler) recoverMissedTerminal(ctx context.Context, userID string) {
	event, err := r.api.MissedTerminalEvent(ctx, userID)
	if err != nil {
		// Ambiguous: the entry is gone and we could not learn why. The
		// user sees no modal until a later trigger succeeds.
		log.Error().Err(err).Msg("missed terminal event lookup failed")
		return
	}
	if event == nil {
		return
	}
	r.notifier.ReplayTerminal(ctx, event)
}

func (r *Reconciler) endSession() {
	r.mu.Lock()
	fn := r.onSessionEnd
	r.selfID = ""
	r.mu.Unlock()

	r.ewt.SetQueued(false)
	if fn != nil {
		fn()
	}
}
