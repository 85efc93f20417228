package services

import (
	"context"
	"encoding/json"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
	"github.com/rs/zerolog/log"

	"barber-queue/models"
	"barber-queue/monitoring"
)

// RealtimeConfig carries the subscribe-side credentials of the hosted
// realtime channel.
type RealtimeConfig struct {
	SubscribeKey string
	UUID         string
}

// QueueEventsSubscription is a handle on the row-change stream for one
// barber's queue. The payload of each event is validated and then discarded:
// its only job is to wake the reconciler into a full refetch, which is what
// makes duplicate and out-of-order deliveries harmless. Unsubscribe is the
// single matching teardown.
type QueueEventsSubscription struct {
	pn      *pubnub.PubNub
	channel string
	cancel  context.CancelFunc
}

func queueChannel(barberID string) string {
	return fmt.Sprintf("queue-%s", barberID)
}

// SubscribeQueueEvents opens the realtime subscription for a barber's queue
// and calls wake on every valid row-change event. A failing channel is
// logged, never surfaced: the poll cadence is the fallback.
func SubscribeQueueEvents(ctx context.Context, cfg *RealtimeConfig, barberID string, wake func(trigger string)) *QueueEventsSubscription {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UUID))
	pnCfg.SubscribeKey = cfg.SubscribeKey

	pn := pubnub.NewPubNub(pnCfg)
	listener := pubnub.NewListener()
	pn.AddListener(listener)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &QueueEventsSubscription{
		pn:      pn,
		channel: queueChannel(barberID),
		cancel:  cancel,
	}

	go sub.processSubscription(subCtx, listener, wake)

	pn.Subscribe().Channels([]string{sub.channel}).Execute()
	return sub
}

func (s *QueueEventsSubscription) processSubscription(ctx context.Context, listener *pubnub.Listener, wake func(trigger string)) {
	for {
		select {
		case status := <-listener.Status:
			switch status.Category {
			case pubnub.PNConnectedCategory:
				log.Info().Str("channel", s.channel).Msg("realtime channel connected")

			case pubnub.PNReconnectedCategory:
				log.Info().Str("channel", s.channel).Msg("realtime channel reconnected")

			case pubnub.PNDisconnectedCategory:
				// Polling keeps the snapshot fresh; nothing is surfaced.
				log.Warn().Str("channel", s.channel).Msg("realtime channel disconnected, polling only")

			default:
				log.Debug().Str("channel", s.channel).Int("category", int(status.Category)).Msg("realtime channel status")
			}

		case message := <-listener.Message:
			raw, err := rawPayload(message.Message)
			if err == nil {
				_, err = models.DecodeRowChange(raw)
			}
			if err != nil {
				log.Error().Err(err).Msg("discarding malformed row-change event")
				monitoring.TrackPushEvent("decode_error")
				continue
			}

			monitoring.TrackPushEvent("ok")
			wake(TriggerRealtime)

		case <-ctx.Done():
			log.Debug().Str("channel", s.channel).Msg("realtime subscription closed")
			return
		}
	}
}

func rawPayload(message any) ([]byte, error) {
	if s, ok := message.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(message)
}

// Unsubscribe tears the subscription down exactly once per handle.
func (s *QueueEventsSubscription) Unsubscribe() {
	s.pn.Unsubscribe().Channels([]string{s.channel}).Execute()
	s.cancel()
}
