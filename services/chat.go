package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"barber-queue/models"
	"barber-queue/monitoring"
)

// HistoryFetcher pulls the prior rows of a queue-entry-scoped conversation.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context, queueEntryID, counterpartID string) ([]models.ChatMessage, error)
}

// ChatSender pushes an outgoing message over the live transport.
type ChatSender interface {
	SendChat(msg models.ChatMessage) error
}

// ChatService keeps one ordered message log per counterpart, fed by an
// on-demand history fetch when a thread opens and by the live socket while
// registered. Unread flags persist in the session store so they survive a
// reload.
type ChatService struct {
	api   HistoryFetcher
	store *SessionStore

	mu           sync.Mutex
	userID       string
	queueEntryID string
	sender       ChatSender
	threads      map[string][]models.ChatMessage
	openThread   string
}

func NewChatService(api HistoryFetcher, store *SessionStore) *ChatService {
	return &ChatService{
		api:     api,
		store:   store,
		threads: make(map[string][]models.ChatMessage),
	}
}

// Bind scopes the service to the current identity and join, and installs
// the live transport used for sends.
func (c *ChatService) Bind(userID, queueEntryID string, sender ChatSender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.queueEntryID = queueEntryID
	c.sender = sender
}

// OpenThread fetches the conversation history, merges any still-pending
// optimistic sends on top, marks the thread open and clears its unread flag.
func (c *ChatService) OpenThread(ctx context.Context, counterpartID string) ([]models.ChatMessage, error) {
	c.mu.Lock()
	userID, queueEntryID := c.userID, c.queueEntryID
	c.mu.Unlock()

	history, err := c.api.ChatHistory(ctx, queueEntryID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}

	c.mu.Lock()
	var pending []models.ChatMessage
	for _, m := range c.threads[counterpartID] {
		if m.Pending && !containsMessage(history, m) {
			pending = append(pending, m)
		}
	}
	merged := append(history, pending...)
	c.threads[counterpartID] = merged
	c.openThread = counterpartID
	c.mu.Unlock()

	if err := c.store.ClearUnread(ctx, userID, counterpartID); err != nil {
		log.Error().Err(err).Msg("clear unread flag")
	}

	out := make([]models.ChatMessage, len(merged))
	copy(out, merged)
	return out, nil
}

func containsMessage(msgs []models.ChatMessage, m models.ChatMessage) bool {
	for _, existing := range msgs {
		if existing.ID == m.ID {
			return true
		}
	}
	return false
}

// CloseThread marks no thread as open; later arrivals set unread flags.
func (c *ChatService) CloseThread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openThread = ""
}

// Send appends optimistically to the local log before pushing the message
// over the transport. The optimistic entry stays even if the push errors;
// the next history fetch reconciles.
func (c *ChatService) Send(counterpartID, body string) (models.ChatMessage, error) {
	c.mu.Lock()
	msg := models.ChatMessage{
		ID:          uuid.NewString(),
		SenderID:    c.userID,
		RecipientID: counterpartID,
		Message:     body,
		QueueID:     c.queueEntryID,
		Pending:     true,
	}
	c.threads[counterpartID] = append(c.threads[counterpartID], msg)
	sender := c.sender
	c.mu.Unlock()

	monitoring.TrackChatMessage("out")

	if sender == nil {
		return msg, fmt.Errorf("chat send: no active transport")
	}
	if err := sender.SendChat(msg); err != nil {
		return msg, fmt.Errorf("chat send: %w", err)
	}
	return msg, nil
}

// Deliver appends an incoming socket message. A message for a thread that is
// not currently open sets the counterpart's persisted unread flag.
func (c *ChatService) Deliver(ctx context.Context, msg models.ChatMessage) {
	c.mu.Lock()
	counterpart := msg.SenderID
	if counterpart == c.userID {
		counterpart = msg.RecipientID
	}
	c.threads[counterpart] = append(c.threads[counterpart], msg)
	open := c.openThread == counterpart
	userID := c.userID
	c.mu.Unlock()

	monitoring.TrackChatMessage("in")

	if !open {
		if err := c.store.SetUnread(ctx, userID, counterpart); err != nil {
			log.Error().Err(err).Msg("set unread flag")
		}
	}
}

// Unread reports the persisted unread flag for one counterpart.
func (c *ChatService) Unread(ctx context.Context, counterpartID string) bool {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	unread, err := c.store.Unread(ctx, userID, counterpartID)
	if err != nil {
		log.Error().Err(err).Msg("read unread flag")
		return false
	}
	return unread
}

// Thread returns the in-memory log for a counterpart.
func (c *ChatService) Thread(counterpartID string) []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChatMessage, len(c.threads[counterpartID]))
	copy(out, c.threads[counterpartID])
	return out
}

// Reset drops all cached threads; terminal states clear per-session chat.
func (c *ChatService) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads = make(map[string][]models.ChatMessage)
	c.openThread = ""
	c.sender = nil
}
