package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"barber-queue/models"
	"barber-queue/monitoring"
)

// earthRadiusKm is the Earth radius used by the haversine formula.
const earthRadiusKm = 6371

const msgTooFar = "You've wandered too far from the shop. Don't lose your spot!"

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c * 1000
}

// GeofenceWatcher turns continuous device-location samples into a binary
// "too far" alert against the shop's fixed coordinate, with cooldown
// suppression so dismissing the alert buys quiet time even while still out
// of range.
type GeofenceWatcher struct {
	effects      Effects
	store        *SessionStore
	clock        clockwork.Clock
	shopLat      float64
	shopLng      float64
	radiusMeters float64
	cooldown     time.Duration

	mu            sync.Mutex
	userID        string
	watching      bool
	alertActive   bool
	cooldownUntil time.Time
}

func NewGeofenceWatcher(effects Effects, store *SessionStore, clock clockwork.Clock, shopLat, shopLng, radiusMeters float64, cooldown time.Duration) *GeofenceWatcher {
	return &GeofenceWatcher{
		effects:      effects,
		store:        store,
		clock:        clock,
		shopLat:      shopLat,
		shopLng:      shopLng,
		radiusMeters: radiusMeters,
		cooldown:     cooldown,
	}
}

// Start begins watching for a join; Stop is its single matching teardown.
func (w *GeofenceWatcher) Start(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.userID = userID
	w.watching = true
	w.alertActive = false
	w.cooldownUntil = time.Time{}
}

func (w *GeofenceWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
	w.alertActive = false
	w.cooldownUntil = time.Time{}
}

// Observe feeds one device-location sample into the watcher.
func (w *GeofenceWatcher) Observe(ctx context.Context, lat, lng float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return
	}

	distance := HaversineMeters(lat, lng, w.shopLat, w.shopLng)

	if distance <= w.radiusMeters {
		// Back inside the fence: any pending cooldown ends early.
		w.cooldownUntil = time.Time{}
		return
	}

	if w.alertActive || w.clock.Now().Before(w.cooldownUntil) {
		return
	}

	w.alertActive = true
	log.Info().Float64("distance_m", distance).Msg("customer outside geofence")
	monitoring.TrackGeofenceAlert()

	if err := w.store.SetStickyModal(ctx, w.userID, models.ModalTooFar); err != nil {
		log.Error().Err(err).Msg("persist too-far sticky flag")
	}
	w.effects.OpenModal(models.ModalTooFar, msgTooFar)
}

// RestoreAlert reconstructs the too-far modal after a restart: if the
// sticky flag still names it, the modal reopens and the watcher resumes in
// the alert-active state so dismissal starts the cooldown as usual.
func (w *GeofenceWatcher) RestoreAlert(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return
	}

	kind, err := w.store.StickyModal(ctx, w.userID)
	if err != nil {
		log.Error().Err(err).Msg("read too-far sticky flag")
		return
	}
	if kind != models.ModalTooFar {
		return
	}

	w.alertActive = true
	w.effects.OpenModal(models.ModalTooFar, msgTooFar)
}

// Dismiss acknowledges the too-far modal and starts the cooldown window
// during which re-triggering is suppressed even if still out of range.
func (w *GeofenceWatcher) Dismiss(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.alertActive {
		return
	}
	w.alertActive = false
	w.cooldownUntil = w.clock.Now().Add(w.cooldown)

	if err := w.store.ClearStickyModal(ctx, w.userID); err != nil {
		log.Error().Err(err).Msg("clear too-far sticky flag")
	}
	w.effects.CloseModal()
}
