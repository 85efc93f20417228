package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber-queue/models"
)

// fakeEffects records every side-effect call for assertions.
type fakeEffects struct {
	mu         sync.Mutex
	sounds     int
	vibrations [][]int
	blinks     []string
	blinkStops int
	modals     []models.ModalKind
	countdowns []int
	closes     int
}

func (f *fakeEffects) PlaySound() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sounds++
}

func (f *fakeEffects) Vibrate(pattern []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrations = append(f.vibrations, pattern)
}

func (f *fakeEffects) StartTitleBlink(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blinks = append(f.blinks, message)
}

func (f *fakeEffects) StopTitleBlink() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blinkStops++
}

func (f *fakeEffects) OpenModal(kind models.ModalKind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modals = append(f.modals, kind)
}

func (f *fakeEffects) ModalCountdown(remaining int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countdowns = append(f.countdowns, remaining)
}

func (f *fakeEffects) CloseModal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeEffects) modalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modals)
}

func (f *fakeEffects) countdownLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.countdowns)
}

func (f *fakeEffects) lastCountdown() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.countdowns) == 0 {
		return 0, false
	}
	return f.countdowns[len(f.countdowns)-1], true
}

func setupTestNotifier(t *testing.T, holdSeconds int) (*TurnNotifier, *fakeEffects, redismock.ClientMock, *clockwork.FakeClock) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	mock.MatchExpectationsInOrder(false)

	effects := &fakeEffects{}
	clock := clockwork.NewFakeClock()
	notifier := NewTurnNotifier(effects, NewSessionStore(db), clock, holdSeconds)
	notifier.Bind("u1", "e1")
	return notifier, effects, mock, clock
}

func TestTurnNotifier_UpNextFiresFullBundleOnce(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")

	ctx := context.Background()
	notifier.Observe(ctx, models.StatusWaiting)
	assert.Equal(t, PhaseWaitingObserved, notifier.Phase())

	notifier.Observe(ctx, models.StatusUpNext)
	assert.Equal(t, PhaseUpNextAlerted, notifier.Phase())

	effects.mu.Lock()
	assert.Equal(t, 1, effects.sounds)
	assert.Equal(t, [][]int{{200, 100, 200}}, effects.vibrations)
	assert.Equal(t, []models.ModalKind{models.ModalUpNext}, effects.modals)
	assert.Len(t, effects.blinks, 1)
	effects.mu.Unlock()

	// A duplicate delivery of the same status is a no-op.
	notifier.Observe(ctx, models.StatusUpNext)
	assert.Equal(t, 1, effects.modalCount())
}

func TestTurnNotifier_InProgressReplacesUpNextModal(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")
	mock.ExpectSet("client:u1:sticky_modal", "in_progress", 0).SetVal("OK")

	ctx := context.Background()
	notifier.Observe(ctx, models.StatusUpNext)
	notifier.Observe(ctx, models.StatusInProgress)

	effects.mu.Lock()
	assert.Equal(t, []models.ModalKind{models.ModalUpNext, models.ModalInProgress}, effects.modals)
	effects.mu.Unlock()
	assert.Equal(t, PhaseInProgressAlerted, notifier.Phase())
}

func TestTurnNotifier_SkippedUpNextStillAlertsInProgress(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSet("client:u1:sticky_modal", "in_progress", 0).SetVal("OK")

	// The barber moved the customer straight to the chair between polls.
	notifier.Observe(context.Background(), models.StatusInProgress)

	effects.mu.Lock()
	assert.Equal(t, []models.ModalKind{models.ModalInProgress}, effects.modals)
	effects.mu.Unlock()
}

func waitForCountdowns(t *testing.T, effects *fakeEffects, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return effects.countdownLen() >= n
	}, time.Second, 2*time.Millisecond)
}

func TestTurnNotifier_ModalLockedAtOpen(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")

	notifier.Observe(context.Background(), models.StatusUpNext)

	// The hold countdown starts before Observe returns, so the modal is
	// never acknowledgeable between open and the first gate tick.
	effects.mu.Lock()
	defer effects.mu.Unlock()
	require.NotEmpty(t, effects.countdowns)
	assert.Equal(t, 5, effects.countdowns[0])
}

func TestTurnNotifier_InProgressRestartsHoldFloor(t *testing.T) {
	notifier, effects, mock, clock := setupTestNotifier(t, 5)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")
	mock.ExpectSet("client:u1:sticky_modal", "in_progress", 0).SetVal("OK")

	ctx := context.Background()
	notifier.Observe(ctx, models.StatusUpNext)

	// Two seconds into the UpNext hold.
	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		waitForCountdowns(t, effects, 2+i)
	}

	// The chair frees up early; the replacement modal restarts the floor.
	notifier.Observe(ctx, models.StatusInProgress)
	waitForCountdowns(t, effects, 4)

	// Both gates sleep through the next tick; only the new one may emit.
	clock.BlockUntil(2)
	clock.Advance(time.Second)
	waitForCountdowns(t, effects, 5)

	for i := 0; i < 4; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		waitForCountdowns(t, effects, 6+i)
	}

	effects.mu.Lock()
	defer effects.mu.Unlock()
	// The superseded UpNext gate never reaches zero; the InProgress modal
	// unlocks a full five seconds after it opened.
	assert.Equal(t, []int{5, 4, 3, 5, 4, 3, 2, 1, 0}, effects.countdowns)
}

func TestTurnNotifier_ModalGateCountsDown(t *testing.T) {
	notifier, effects, mock, clock := setupTestNotifier(t, 3)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")

	notifier.Observe(context.Background(), models.StatusUpNext)

	for i := 0; i < 3; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
	}

	assert.Eventually(t, func() bool {
		last, ok := effects.lastCountdown()
		return ok && last == 0
	}, time.Second, 5*time.Millisecond)

	effects.mu.Lock()
	assert.Equal(t, []int{3, 2, 1, 0}, effects.countdowns)
	effects.mu.Unlock()
}

func TestTurnNotifier_TerminalWinnerOpensModal(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSetNX("client:u1:terminal_handled:e1", "1", 24*time.Hour).SetVal(true)
	mock.ExpectDel("client:u1:sticky_modal").SetVal(1)

	notifier.Observe(context.Background(), models.StatusDone)

	assert.True(t, notifier.Terminal())
	effects.mu.Lock()
	assert.Equal(t, []models.ModalKind{models.ModalFeedback}, effects.modals)
	assert.Equal(t, 1, effects.blinkStops)
	effects.mu.Unlock()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurnNotifier_TerminalLoserStaysQuiet(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSetNX("client:u1:terminal_handled:e1", "1", 24*time.Hour).SetVal(false)

	// Another delivery path already showed this modal.
	notifier.Observe(context.Background(), models.StatusCancelled)

	assert.True(t, notifier.Terminal())
	assert.Equal(t, 0, effects.modalCount())
}

func TestTurnNotifier_ReplayTerminalOpensCancelledModal(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSetNX("client:u1:terminal_handled:e1", "1", 24*time.Hour).SetVal(true)
	mock.ExpectDel("client:u1:sticky_modal").SetVal(1)

	notifier.ReplayTerminal(context.Background(), &models.TerminalEvent{
		EntryID: "e1",
		Kind:    models.StatusCancelled,
	})

	assert.Equal(t, PhaseCancelledAlerted, notifier.Phase())
	effects.mu.Lock()
	assert.Equal(t, []models.ModalKind{models.ModalCancelled}, effects.modals)
	effects.mu.Unlock()
}

func TestTurnNotifier_RestoreFromStickyRefiresMatchingModal(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectGet("client:u1:sticky_modal").SetVal("up_next")
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")

	notifier.RestoreFromSticky(context.Background(), models.StatusUpNext)

	assert.Equal(t, PhaseUpNextAlerted, notifier.Phase())
	effects.mu.Lock()
	assert.Equal(t, 1, effects.sounds)
	assert.Equal(t, []models.ModalKind{models.ModalUpNext}, effects.modals)
	effects.mu.Unlock()
}

func TestTurnNotifier_RestoreFromStickyIgnoresStaleFlag(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectGet("client:u1:sticky_modal").SetVal("up_next")

	// The status moved on while the tab was closed; the flag is stale.
	notifier.RestoreFromSticky(context.Background(), models.StatusWaiting)

	assert.Equal(t, PhaseIdle, notifier.Phase())
	assert.Equal(t, 0, effects.modalCount())
}

func TestTurnNotifier_AcknowledgeClearsBlinkAndFlag(t *testing.T) {
	notifier, effects, mock, _ := setupTestNotifier(t, 5)
	mock.ExpectSet("client:u1:sticky_modal", "up_next", 0).SetVal("OK")
	mock.ExpectDel("client:u1:sticky_modal").SetVal(1)

	ctx := context.Background()
	notifier.Observe(ctx, models.StatusUpNext)
	notifier.Acknowledge(ctx)

	effects.mu.Lock()
	assert.Equal(t, 1, effects.blinkStops)
	assert.Equal(t, 1, effects.closes)
	effects.mu.Unlock()
	assert.NoError(t, mock.ExpectationsWereMet())
}
