package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"barber-queue/models"
	"barber-queue/monitoring"
)

// Effects is everything the notification machinery is allowed to do to the
// user's senses. Implementations own the document title, audio and haptics;
// the state machines never touch those directly, which keeps them testable
// without a real document or audio environment.
type Effects interface {
	PlaySound()
	Vibrate(pattern []int)
	StartTitleBlink(message string)
	StopTitleBlink()
	// OpenModal replaces whatever modal is currently open.
	OpenModal(kind models.ModalKind, message string)
	// ModalCountdown reports seconds until the OK button unlocks; zero
	// means dismissable.
	ModalCountdown(remaining int)
	CloseModal()
}

// TitleAccessor abstracts the document title.
type TitleAccessor interface {
	Title() string
	SetTitle(title string)
}

// AudioPlayer abstracts the alert sound.
type AudioPlayer interface {
	Play()
}

// Haptics abstracts device vibration.
type Haptics interface {
	Vibrate(pattern []int)
}

// ModalState is the modal currently on screen, as exposed to the UI gateway.
type ModalState struct {
	Kind               models.ModalKind `json:"kind"`
	Message            string           `json:"message"`
	CountdownRemaining int              `json:"countdown_remaining"`
	Dismissable        bool             `json:"dismissable"`
}

// NotificationCenter is the owned notification-effects service: one instance
// per session, explicit start/stop, injected title/audio/haptics.
type NotificationCenter struct {
	clock clockwork.Clock
	title TitleAccessor
	audio AudioPlayer
	hapt  Haptics

	mu        sync.Mutex
	baseTitle string
	blinkStop chan struct{}
	modal     *ModalState
}

func NewNotificationCenter(clock clockwork.Clock, title TitleAccessor, audio AudioPlayer, hapt Haptics) *NotificationCenter {
	return &NotificationCenter{
		clock:     clock,
		title:     title,
		audio:     audio,
		hapt:      hapt,
		baseTitle: title.Title(),
	}
}

func (n *NotificationCenter) PlaySound() {
	n.audio.Play()
}

func (n *NotificationCenter) Vibrate(pattern []int) {
	n.hapt.Vibrate(pattern)
}

// StartTitleBlink alternates the document title with the alert message once
// a second until stopped. Restarting an active blink just swaps the message.
func (n *NotificationCenter) StartTitleBlink(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.blinkStop != nil {
		close(n.blinkStop)
	}
	stop := make(chan struct{})
	n.blinkStop = stop

	go n.blinkLoop(message, stop)
}

func (n *NotificationCenter) blinkLoop(message string, stop chan struct{}) {
	ticker := n.clock.NewTicker(time.Second)
	defer ticker.Stop()

	showingAlert := false
	for {
		select {
		case <-stop:
			n.title.SetTitle(n.baseTitle)
			return
		case <-ticker.Chan():
			if showingAlert {
				n.title.SetTitle(n.baseTitle)
			} else {
				n.title.SetTitle(message)
			}
			showingAlert = !showingAlert
		}
	}
}

func (n *NotificationCenter) StopTitleBlink() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.blinkStop != nil {
		close(n.blinkStop)
		n.blinkStop = nil
	}
}

func (n *NotificationCenter) OpenModal(kind models.ModalKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modal = &ModalState{Kind: kind, Message: message, Dismissable: true}
	monitoring.TrackModalOpen(string(kind))
}

func (n *NotificationCenter) ModalCountdown(remaining int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.modal == nil {
		return
	}
	n.modal.CountdownRemaining = remaining
	n.modal.Dismissable = remaining == 0
}

func (n *NotificationCenter) CloseModal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modal = nil
}

// Modal returns the modal currently on screen, or nil.
func (n *NotificationCenter) Modal() *ModalState {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.modal == nil {
		return nil
	}
	copied := *n.modal
	return &copied
}
