package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber-queue/models"
)

// fakeQueueAPI scripts the backend answers for reconciler tests.
type fakeQueueAPI struct {
	mu       sync.Mutex
	snapshot models.QueueSnapshot
	fetchErr error
	terminal *models.TerminalEvent
	fetches  int
}

func (f *fakeQueueAPI) PublicQueue(ctx context.Context, barberID string) (models.QueueSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make(models.QueueSnapshot, len(f.snapshot))
	copy(out, f.snapshot)
	return out, nil
}

func (f *fakeQueueAPI) MissedTerminalEvent(ctx context.Context, userID string) (*models.TerminalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminal, nil
}

func (f *fakeQueueAPI) set(snapshot models.QueueSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snapshot
	f.fetchErr = err
}

func (f *fakeQueueAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func setupTestReconciler(t *testing.T) (*Reconciler, *fakeQueueAPI, *fakeEffects, redismock.ClientMock) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	mock.MatchExpectationsInOrder(false)
	store := NewSessionStore(db)

	clock := clockwork.NewFakeClock()
	effects := &fakeEffects{}
	ewt := NewEWTTracker(clock, time.Minute)
	ewt.SetQueued(true)
	notifier := NewTurnNotifier(effects, store, clock, 5)
	notifier.Bind("u1", "self")

	api := &fakeQueueAPI{}
	recon := NewReconciler(api, ewt, notifier, clock, 15*time.Second)
	recon.Bind("u1", "b1", "self")
	return recon, api, effects, mock
}

func TestReconciler_RefreshReplacesSnapshot(t *testing.T) {
	recon, api, _, _ := setupTestReconciler(t)
	api.set(snapshotOf(
		models.QueueEntry{ID: "a", Status: models.StatusWaiting, ServiceDurationMinutes: 20},
		models.QueueEntry{ID: "self", Status: models.StatusWaiting, ServiceDurationMinutes: 30},
	), nil)

	recon.Refresh(context.Background(), TriggerManual)

	snapshot, loadError := recon.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Empty(t, loadError)

	self, ok := recon.SelfEntry()
	require.True(t, ok)
	assert.Equal(t, models.StatusWaiting, self.Status)
}

func TestReconciler_RefreshIsIdempotent(t *testing.T) {
	recon, api, effects, mock := setupTestReconciler(t)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")

	api.set(snapshotOf(
		models.QueueEntry{ID: "self", Status: models.StatusUpNext, ServiceDurationMinutes: 30},
	), nil)

	ctx := context.Background()
	recon.Refresh(ctx, TriggerRealtime)
	recon.Refresh(ctx, TriggerPoll)
	recon.Refresh(ctx, TriggerForeground)

	// Three triggers, one alert.
	assert.Equal(t, 1, effects.modalCount())
}

func TestReconciler_FetchErrorClearsSnapshot(t *testing.T) {
	recon, api, _, _ := setupTestReconciler(t)
	api.set(snapshotOf(
		models.QueueEntry{ID: "self", Status: models.StatusWaiting, ServiceDurationMinutes: 30},
	), nil)

	ctx := context.Background()
	recon.Refresh(ctx, TriggerManual)

	api.set(nil, errors.New("backend down"))
	recon.Refresh(ctx, TriggerPoll)

	snapshot, loadError := recon.Snapshot()
	assert.Empty(t, snapshot)
	assert.Equal(t, LoadErrorMessage, loadError)

	// The next successful fetch clears the inline error.
	api.set(snapshotOf(
		models.QueueEntry{ID: "self", Status: models.StatusWaiting, ServiceDurationMinutes: 30},
	), nil)
	recon.Refresh(ctx, TriggerPoll)

	snapshot, loadError = recon.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Empty(t, loadError)
}

func TestReconciler_WakeDrivesRefresh(t *testing.T) {
	recon, api, _, _ := setupTestReconciler(t)
	api.set(models.QueueSnapshot{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recon.Run(ctx)

	recon.Wake(TriggerRealtime)

	assert.Eventually(t, func() bool {
		return api.fetchCount() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestReconciler_MissedTerminalReplaysModal(t *testing.T) {
	recon, api, effects, mock := setupTestReconciler(t)
	mock.ExpectSetNX("client:u1:terminal_handled:self", "1", 24*time.Hour).SetVal(true)
	mock.ExpectDel("client:u1:sticky_modal").SetVal(1)

	var ended bool
	recon.SetOnSessionEnd(func() { ended = true })

	// The entry vanished without an observed Done transition.
	api.mu.Lock()
	api.snapshot = models.QueueSnapshot{}
	api.terminal = &models.TerminalEvent{EntryID: "self", Kind: models.StatusDone}
	api.mu.Unlock()

	recon.Refresh(context.Background(), TriggerPoll)

	effects.mu.Lock()
	assert.Equal(t, []models.ModalKind{models.ModalFeedback}, effects.modals)
	effects.mu.Unlock()
	assert.True(t, ended)
}

func TestReconciler_AbsentEntryWithNoTerminalEventIsQuiet(t *testing.T) {
	recon, api, effects, _ := setupTestReconciler(t)
	api.set(models.QueueSnapshot{}, nil)

	recon.Refresh(context.Background(), TriggerPoll)

	assert.Equal(t, 0, effects.modalCount())
}

func TestReconciler_ObservedTerminalEndsSession(t *testing.T) {
	recon, api, _, mock := setupTestReconciler(t)
	mock.ExpectSetNX("client:u1:terminal_handled:self", "1", 24*time.Hour).SetVal(true)
	mock.ExpectDel("client:u1:sticky_modal").SetVal(1)

	var ended bool
	recon.SetOnSessionEnd(func() { ended = true })

	api.set(snapshotOf(
		models.QueueEntry{ID: "self", Status: models.StatusDone, ServiceDurationMinutes: 30},
	), nil)

	recon.Refresh(context.Background(), TriggerPoll)

	assert.True(t, ended)
}
