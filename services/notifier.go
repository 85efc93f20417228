package services

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"barber-queue/models"
)

// Phase is the turn-notification state machine position. Each alerted phase
// fires its side-effect bundle exactly once per join session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaitingObserved
	PhaseUpNextAlerted
	PhaseInProgressAlerted
	PhaseDoneAlerted
	PhaseCancelledAlerted
)

// vibratePattern is the buzz-pause-buzz pattern used for turn alerts,
// in milliseconds.
var vibratePattern = []int{200, 100, 200}

const (
	msgUpNext     = "You're up next! Please head back to the shop."
	msgInProgress = "You're in the chair. See you inside!"
	msgDone       = "All done! How was your cut?"
	msgCancelled  = "Your queue entry was cancelled."
)

// TurnNotifier drives modal, sound, vibration and title-blink side effects
// from the caller's own status transitions in the reconciled snapshot. The
// "your turn" modals are reconstructed from current status plus a durable
// sticky flag, not from the transition event, so they replay after a reload.
type TurnNotifier struct {
	effects     Effects
	store       *SessionStore
	clock       clockwork.Clock
	holdSeconds int
	userID      string
	entryID     string

	mu      sync.Mutex
	phase   Phase
	gateGen int
}

func NewTurnNotifier(effects Effects, store *SessionStore, clock clockwork.Clock, holdSeconds int) *TurnNotifier {
	return &TurnNotifier{
		effects:     effects,
		store:       store,
		clock:       clock,
		holdSeconds: holdSeconds,
	}
}

// Bind points the notifier at a join. Resets the machine; a rejoin starts a
// fresh alert cycle.
func (n *TurnNotifier) Bind(userID, entryID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.userID = userID
	n.entryID = entryID
	n.phase = PhaseIdle
}

// Phase returns the current machine position.
func (n *TurnNotifier) Phase() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase
}

// Terminal reports whether a Done/Cancelled alert has fired for this join.
func (n *TurnNotifier) Terminal() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase == PhaseDoneAlerted || n.phase == PhaseCancelledAlerted
}

// Observe feeds the caller's current status from a reconciled snapshot into
// the machine and fires any due side effects.
func (n *TurnNotifier) Observe(ctx context.Context, status models.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch status {
	case models.StatusWaiting:
		if n.phase == PhaseIdle {
			n.phase = PhaseWaitingObserved
		}
	case models.StatusUpNext:
		if n.phase != PhaseUpNextAlerted {
			n.phase = PhaseUpNextAlerted
			n.fireTurnAlert(ctx, models.ModalUpNext, msgUpNext)
		}
	case models.StatusInProgress:
		if n.phase != PhaseInProgressAlerted {
			n.phase = PhaseInProgressAlerted
			// Overwrites the UpNext modal if it is still open.
			n.fireTurnAlert(ctx, models.ModalInProgress, msgInProgress)
		}
	case models.StatusDone:
		n.fireTerminal(ctx, models.StatusDone)
	case models.StatusCancelled:
		n.fireTerminal(ctx, models.StatusCancelled)
	}
}

// fireTurnAlert runs the full bundle for UpNext/InProgress: sound, title
// blink, vibration, modal with the OK-button hold, and the durable sticky
// flag so a backgrounded tab can reconstruct the modal. Callers hold n.mu.
func (n *TurnNotifier) fireTurnAlert(ctx context.Context, kind models.ModalKind, message string) {
	if err := n.store.SetStickyModal(ctx, n.userID, kind); err != nil {
		log.Error().Err(err).Msg("persist sticky modal flag")
	}

	n.effects.PlaySound()
	n.effects.Vibrate(vibratePattern)
	n.effects.StartTitleBlink(message)
	n.effects.OpenModal(kind, message)

	// The OK button is locked before the modal can be observed; the gate
	// then counts the floor down under a fresh generation, so a newer
	// alert's floor is never cut short by a stale countdown.
	n.gateGen++
	n.effects.ModalCountdown(n.holdSeconds)
	go n.runModalGate(n.gateGen)
}

// runModalGate counts the OK-button hold floor down one tick per second.
// The 5-second floor is an anti-mis-tap safeguard; the countdown is
// user-visible. The generation is re-checked after every tick; a gate that
// has been superseded exits without emitting.
func (n *TurnNotifier) runModalGate(gen int) {
	for remaining := n.holdSeconds - 1; remaining >= 0; remaining-- {
		<-n.clock.After(time.Second)
		if !n.gateLive(gen) {
			return
		}
		n.effects.ModalCountdown(remaining)
	}
}

func (n *TurnNotifier) gateLive(gen int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return gen == n.gateGen
}

// fireTerminal opens the Done/Cancelled modal at most once per entry,
// whichever of the realtime path or the missed-event fallback gets here
// first. Callers hold n.mu.
func (n *TurnNotifier) fireTerminal(ctx context.Context, status models.Status) {
	targetPhase := PhaseDoneAlerted
	kind := models.ModalFeedback
	message := msgDone
	if status == models.StatusCancelled {
		targetPhase = PhaseCancelledAlerted
		kind = models.ModalCancelled
		message = msgCancelled
	}

	if n.phase == targetPhase {
		return
	}

	won, err := n.store.MarkTerminalHandled(ctx, n.userID, n.entryID)
	if err != nil {
		log.Error().Err(err).Msg("mark terminal handled")
	}
	n.phase = targetPhase
	// The turn modal is over either way; orphan any running hold gate.
	n.gateGen++
	if err == nil && !won {
		// The other delivery path already showed this modal.
		return
	}

	n.effects.StopTitleBlink()
	if err := n.store.ClearStickyModal(ctx, n.userID); err != nil {
		log.Error().Err(err).Msg("clear sticky modal flag")
	}
	n.effects.OpenModal(kind, message)
}

// ReplayTerminal replays a Done/Cancelled modal from the last-known-terminal
// endpoint answer when the entry vanished without an observed transition.
func (n *TurnNotifier) ReplayTerminal(ctx context.Context, event *models.TerminalEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fireTerminal(ctx, event.Kind)
}

// RestoreFromSticky reconstructs a turn modal after reload: if the sticky
// flag is set and the current status still matches it, the identical modal
// reopens, hold floor included.
func (n *TurnNotifier) RestoreFromSticky(ctx context.Context, status models.Status) {
	kind, err := n.store.StickyModal(ctx, n.userID)
	if err != nil {
		log.Error().Err(err).Msg("read sticky modal flag")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case kind == models.ModalUpNext && status == models.StatusUpNext:
		n.phase = PhaseUpNextAlerted
		n.fireTurnAlert(ctx, models.ModalUpNext, msgUpNext)
	case kind == models.ModalInProgress && status == models.StatusInProgress:
		n.phase = PhaseInProgressAlerted
		n.fireTurnAlert(ctx, models.ModalInProgress, msgInProgress)
	}
}

// Acknowledge handles the OK press on the currently open modal.
func (n *TurnNotifier) Acknowledge(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.effects.StopTitleBlink()
	n.effects.CloseModal()
	if err := n.store.ClearStickyModal(ctx, n.userID); err != nil {
		log.Error().Err(err).Msg("clear sticky modal flag")
	}
}

// Reset returns the machine to Idle on leave/rejoin.
func (n *TurnNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phase = PhaseIdle
	n.gateGen++
	n.effects.StopTitleBlink()
	n.effects.CloseModal()
}
