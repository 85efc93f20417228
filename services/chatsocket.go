package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"barber-queue/models"
)

// ChatSocket is the live half of the chat transport: one websocket
// connection per logged-in identity, registered with the messaging server by
// user id (and queue-entry id for customers, so the server can route without
// a socket directory). It is a scoped resource: Dial acquires, Close is the
// single matching teardown. There is no in-place reconnect; the owner
// re-dials on its next dependency-triggered run.
type ChatSocket struct {
	conn      *websocket.Conn
	onMessage func(models.ChatMessage)

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// DialChatSocket connects, registers the identity and starts the read loop.
func DialChatSocket(ctx context.Context, socketURL, userID, queueEntryID string, onMessage func(models.ChatMessage)) (*ChatSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return nil, err
	}

	s := &ChatSocket{
		conn:      conn,
		onMessage: onMessage,
		done:      make(chan struct{}),
	}

	if err := s.writeFrame(models.ChatEventRegister, map[string]string{"userId": userID}); err != nil {
		conn.Close()
		return nil, err
	}
	if queueEntryID != "" {
		if err := s.writeFrame(models.ChatEventRegisterQueueEntry, map[string]string{"queueEntryId": queueEntryID}); err != nil {
			conn.Close()
			return nil, err
		}
	}

	go s.readLoop()

	log.Info().Str("user_id", userID).Msg("chat socket registered")
	return s, nil
}

func (s *ChatSocket) writeFrame(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(models.ChatFrame{Event: event, Data: payload})
}

// SendChat pushes an outgoing message over the socket.
func (s *ChatSocket) SendChat(msg models.ChatMessage) error {
	return s.writeFrame(models.ChatEventMessage, msg)
}

func (s *ChatSocket) readLoop() {
	defer s.Close()

	for {
		var frame models.ChatFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.done:
				// Deliberate teardown.
			default:
				log.Warn().Err(err).Msg("chat socket read failed, falling back until next registration")
			}
			return
		}

		if frame.Event != models.ChatEventMessage {
			continue
		}
		msg, err := models.DecodeChatMessage(frame.Data)
		if err != nil {
			log.Error().Err(err).Msg("discarding malformed chat frame")
			continue
		}
		s.onMessage(*msg)
	}
}

// Close tears the connection down exactly once.
func (s *ChatSocket) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
