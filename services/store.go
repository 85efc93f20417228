package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"barber-queue/models"
)

// SessionStore is the durable client-side key-value storage: the state that
// must survive tab reload and backgrounding. Everything else lives only in
// memory for the session.
type SessionStore struct {
	Redis *redis.Client
}

func NewSessionStore(redisClient *redis.Client) *SessionStore {
	return &SessionStore{Redis: redisClient}
}

// terminalHandledTTL bounds how long a "terminal modal already shown" marker
// is kept once a session has ended.
const terminalHandledTTL = 24 * time.Hour

func key(userID, name string) string {
	return fmt.Sprintf("client:%s:%s", userID, name)
}

// CurrentUser is the identity the daemon restored its session from.
func (s *SessionStore) CurrentUser(ctx context.Context) (string, error) {
	val, err := s.Redis.Get(ctx, "client:current_user").Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *SessionStore) SetCurrentUser(ctx context.Context, userID string) error {
	return s.Redis.Set(ctx, "client:current_user", userID, 0).Err()
}

func (s *SessionStore) ClearCurrentUser(ctx context.Context) error {
	return s.Redis.Del(ctx, "client:current_user").Err()
}

func (s *SessionStore) ActiveEntryID(ctx context.Context, userID string) (string, error) {
	val, err := s.Redis.Get(ctx, key(userID, "active_entry")).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *SessionStore) SetActiveEntryID(ctx context.Context, userID, entryID string) error {
	return s.Redis.Set(ctx, key(userID, "active_entry"), entryID, 0).Err()
}

func (s *SessionStore) JoinedBarberID(ctx context.Context, userID string) (string, error) {
	val, err := s.Redis.Get(ctx, key(userID, "joined_barber")).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *SessionStore) SetJoinedBarberID(ctx context.Context, userID, barberID string) error {
	return s.Redis.Set(ctx, key(userID, "joined_barber"), barberID, 0).Err()
}

func (s *SessionStore) StickyModal(ctx context.Context, userID string) (models.ModalKind, error) {
	val, err := s.Redis.Get(ctx, key(userID, "sticky_modal")).Result()
	if err == redis.Nil {
		return models.ModalNone, nil
	}
	if err != nil {
		return models.ModalNone, err
	}
	return models.ModalKind(val), nil
}

func (s *SessionStore) SetStickyModal(ctx context.Context, userID string, kind models.ModalKind) error {
	return s.Redis.Set(ctx, key(userID, "sticky_modal"), string(kind), 0).Err()
}

func (s *SessionStore) ClearStickyModal(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, key(userID, "sticky_modal")).Err()
}

// Unread reports the persisted unread-chat flag for one counterpart.
func (s *SessionStore) Unread(ctx context.Context, userID, counterpartID string) (bool, error) {
	val, err := s.Redis.SIsMember(ctx, key(userID, "unread"), counterpartID).Result()
	if err != nil {
		return false, err
	}
	return val, nil
}

func (s *SessionStore) SetUnread(ctx context.Context, userID, counterpartID string) error {
	return s.Redis.SAdd(ctx, key(userID, "unread"), counterpartID).Err()
}

func (s *SessionStore) ClearUnread(ctx context.Context, userID, counterpartID string) error {
	return s.Redis.SRem(ctx, key(userID, "unread"), counterpartID).Err()
}

func (s *SessionStore) SeenInstructions(ctx context.Context, userID string) (bool, error) {
	val, err := s.Redis.Get(ctx, key(userID, "seen_instructions")).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

func (s *SessionStore) MarkSeenInstructions(ctx context.Context, userID string) error {
	return s.Redis.Set(ctx, key(userID, "seen_instructions"), "1", 0).Err()
}

func (s *SessionStore) Theme(ctx context.Context, userID string) (string, error) {
	val, err := s.Redis.Get(ctx, key(userID, "theme")).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *SessionStore) SetTheme(ctx context.Context, userID, theme string) error {
	return s.Redis.Set(ctx, key(userID, "theme"), theme, 0).Err()
}

// MarkTerminalHandled records that a terminal modal for the entry has been
// shown. Returns true for the caller that won the race; the realtime path
// and the missed-event fallback both call this, and only the winner fires
// the side effect.
func (s *SessionStore) MarkTerminalHandled(ctx context.Context, userID, entryID string) (bool, error) {
	return s.Redis.SetNX(ctx, key(userID, "terminal_handled:"+entryID), "1", terminalHandledTTL).Result()
}

// ClearSession removes all per-join durable state. Called when a terminal
// state returns the user to the join form. Theme and the seen-instructions
// flag deliberately survive.
func (s *SessionStore) ClearSession(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx,
		key(userID, "active_entry"),
		key(userID, "joined_barber"),
		key(userID, "sticky_modal"),
		key(userID, "unread"),
	).Err()
}
