package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"barber-queue/clients"
	"barber-queue/models"
)

var (
	ErrNotLoggedIn = errors.New("session: not logged in")
	ErrNotQueued   = errors.New("session: no active queue entry")
)

// SessionAPI is the slice of the backend API the session lifecycle needs.
type SessionAPI interface {
	QueueFetcher
	JoinQueue(ctx context.Context, req clients.JoinRequest) (*models.QueueEntry, error)
	LeaveQueue(ctx context.Context, entryID string) error
	Login(ctx context.Context, username, password string) (*models.Account, error)
}

// Subscription is any realtime handle with a single teardown.
type Subscription interface {
	Unsubscribe()
}

// ChatTransport is the live chat connection as the session sees it.
type ChatTransport interface {
	ChatSender
	Close()
}

// RealtimeFactory opens the row-change subscription for a barber's queue.
type RealtimeFactory func(ctx context.Context, barberID string, wake func(trigger string)) Subscription

// SocketFactory dials the messaging socket for an identity.
type SocketFactory func(ctx context.Context, userID, queueEntryID string, onMessage func(models.ChatMessage)) (ChatTransport, error)

// Session owns the per-identity object graph and the one real resource
// discipline of the client: every timer, subscription and socket acquired
// for a join is released exactly once when the join ends or its dependency
// (the joined barber) changes.
type Session struct {
	api       SessionAPI
	store     *SessionStore
	ewt       *EWTTracker
	notifier  *TurnNotifier
	geofence  *GeofenceWatcher
	chat      *ChatService
	recon     *Reconciler
	realtime  RealtimeFactory
	newSocket SocketFactory

	mu         sync.Mutex
	account    *models.Account
	entryID    string
	barberID   string
	joinCancel context.CancelFunc
	rtSub      Subscription
	socket     ChatTransport
}

func NewSession(api SessionAPI, store *SessionStore, ewt *EWTTracker, notifier *TurnNotifier, geofence *GeofenceWatcher, chat *ChatService, recon *Reconciler, realtime RealtimeFactory, newSocket SocketFactory) *Session {
	s := &Session{
		api:       api,
		store:     store,
		ewt:       ewt,
		notifier:  notifier,
		geofence:  geofence,
		chat:      chat,
		recon:     recon,
		realtime:  realtime,
		newSocket: newSocket,
	}
	recon.SetOnSessionEnd(s.onTerminal)
	return s
}

// Login authenticates against the backend and records the identity for
// restore-after-restart.
func (s *Session) Login(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := s.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.account = account
	s.mu.Unlock()

	if err := s.store.SetCurrentUser(ctx, account.ID); err != nil {
		log.Error().Err(err).Msg("persist current user")
	}
	return account, nil
}

// Account returns the logged-in identity, if any.
func (s *Session) Account() (*models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil, false
	}
	copied := *s.account
	return &copied, true
}

// Join creates a queue entry and brings up everything that depends on it.
func (s *Session) Join(ctx context.Context, req clients.JoinRequest) (*models.QueueEntry, error) {
	s.mu.Lock()
	account := s.account
	s.mu.Unlock()
	if account == nil {
		return nil, ErrNotLoggedIn
	}

	entry, err := s.api.JoinQueue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("join queue: %w", err)
	}

	if err := s.store.SetActiveEntryID(ctx, account.ID, entry.ID); err != nil {
		log.Error().Err(err).Msg("persist active entry")
	}
	if err := s.store.SetJoinedBarberID(ctx, account.ID, req.BarberID); err != nil {
		log.Error().Err(err).Msg("persist joined barber")
	}

	s.startJoin(account.ID, req.BarberID, entry.ID)
	s.recon.Wake(TriggerManual)
	return entry, nil
}

// startJoin wires the per-join resources. Any previous join is torn down
// first: a dependency change never leaks a timer or subscription.
func (s *Session) startJoin(userID, barberID, entryID string) {
	s.teardownJoin(true)

	joinCtx, cancel := context.WithCancel(context.Background())

	s.recon.Bind(userID, barberID, entryID)
	s.notifier.Bind(userID, entryID)
	s.ewt.SetQueued(true)
	s.geofence.Start(userID)

	rtSub := s.realtime(joinCtx, barberID, s.recon.Wake)

	socket, err := s.newSocket(joinCtx, userID, entryID, func(msg models.ChatMessage) {
		s.chat.Deliver(context.Background(), msg)
	})
	if err != nil {
		// Chat degrades to history-only; the reference stays nil until the
		// next join re-dials.
		log.Error().Err(err).Msg("chat socket dial failed")
		socket = nil
	}
	var sender ChatSender
	if socket != nil {
		sender = socket
	}
	s.chat.Bind(userID, entryID, sender)

	go s.recon.Run(joinCtx)
	go s.ewt.Run(joinCtx)

	s.mu.Lock()
	s.entryID = entryID
	s.barberID = barberID
	s.joinCancel = cancel
	s.rtSub = rtSub
	s.socket = socket
	s.mu.Unlock()

	log.Info().Str("barber_id", barberID).Str("entry_id", entryID).Msg("queue session started")
}

// teardownJoin releases every per-join resource exactly once. With
// closeModal false the open terminal modal survives, so the
// feedback/cancellation dialog outlives the session that produced it.
func (s *Session) teardownJoin(closeModal bool) {
	s.mu.Lock()
	cancel := s.joinCancel
	rtSub := s.rtSub
	socket := s.socket
	s.joinCancel = nil
	s.rtSub = nil
	s.socket = nil
	s.entryID = ""
	s.barberID = ""
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if rtSub != nil {
		rtSub.Unsubscribe()
	}
	if socket != nil {
		socket.Close()
	}

	s.geofence.Stop()
	s.chat.Reset()
	s.ewt.SetQueued(false)
	if closeModal {
		s.notifier.Reset()
	}
}

// Leave removes the entry server-side and ends the local session.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	account, entryID := s.account, s.entryID
	s.mu.Unlock()
	if account == nil {
		return ErrNotLoggedIn
	}
	if entryID == "" {
		return ErrNotQueued
	}

	if err := s.api.LeaveQueue(ctx, entryID); err != nil {
		return fmt.Errorf("leave queue: %w", err)
	}

	s.teardownJoin(true)
	if err := s.store.ClearSession(ctx, account.ID); err != nil {
		log.Error().Err(err).Msg("clear session state")
	}
	return nil
}

// onTerminal runs when the reconciler observes Done/Cancelled. The terminal
// modal stays open; everything else is cleared and the user is back at the
// join form.
func (s *Session) onTerminal() {
	s.mu.Lock()
	account := s.account
	s.mu.Unlock()

	s.teardownJoin(false)
	if account != nil {
		if err := s.store.ClearSession(context.Background(), account.ID); err != nil {
			log.Error().Err(err).Msg("clear session state")
		}
	}
	log.Info().Msg("queue session ended by terminal status")
}

// Foreground is the tab-visibility resync trigger.
func (s *Session) Foreground() {
	s.recon.Wake(TriggerForeground)
}

// Queued reports the active entry id, if any.
func (s *Session) Queued() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryID, s.entryID != ""
}

// Restore re-establishes a session after a daemon restart: identity, join
// and sticky modal are all reconstructed from the durable store plus the
// current snapshot, never from remembered transition events.
func (s *Session) Restore(ctx context.Context) error {
	userID, err := s.store.CurrentUser(ctx)
	if err != nil || userID == "" {
		return err
	}

	s.mu.Lock()
	s.account = &models.Account{ID: userID}
	s.mu.Unlock()

	entryID, err := s.store.ActiveEntryID(ctx, userID)
	if err != nil || entryID == "" {
		return err
	}
	barberID, err := s.store.JoinedBarberID(ctx, userID)
	if err != nil || barberID == "" {
		return err
	}

	s.startJoin(userID, barberID, entryID)
	s.recon.Refresh(ctx, TriggerManual)

	if self, ok := s.recon.SelfEntry(); ok {
		s.notifier.RestoreFromSticky(ctx, self.Status)
	}
	s.geofence.RestoreAlert(ctx)

	log.Info().Str("entry_id", entryID).Msg("restored queue session from durable state")
	return nil
}

// Logout tears everything down and forgets the identity.
func (s *Session) Logout(ctx context.Context) {
	s.teardownJoin(true)

	s.mu.Lock()
	s.account = nil
	s.mu.Unlock()

	if err := s.store.ClearCurrentUser(ctx); err != nil {
		log.Error().Err(err).Msg("clear current user")
	}
}
