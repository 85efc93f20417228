package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber-queue/services"
)

type stubTitle struct{ title string }

func (s *stubTitle) Title() string         { return s.title }
func (s *stubTitle) SetTitle(title string) { s.title = title }

type stubAudio struct{}

func (stubAudio) Play() {}

type stubHaptics struct{}

func (stubHaptics) Vibrate(pattern []int) {}

func setupModalHandler(t *testing.T) (*QueueHandler, *services.NotificationCenter, *services.GeofenceWatcher) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	mock.MatchExpectationsInOrder(false)
	store := services.NewSessionStore(db)

	clock := clockwork.NewFakeClock()
	center := services.NewNotificationCenter(clock, &stubTitle{title: "Barber Queue"}, stubAudio{}, stubHaptics{})
	notifier := services.NewTurnNotifier(center, store, clock, 5)
	geofence := services.NewGeofenceWatcher(center, store, clock, 14.5995, 120.9842, 200, 5*time.Minute)

	handler := NewQueueHandler(nil, nil, nil, nil, notifier, geofence, center, store)
	return handler, center, geofence
}

func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestQueueHandler_AcknowledgeModal_NoneOpen(t *testing.T) {
	handler, _, _ := setupModalHandler(t)
	e := echo.New()
	c, _ := newJSONContext(e, http.MethodPost, "/modal/ack", "")

	err := handler.AcknowledgeModal(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
}

func TestQueueHandler_AcknowledgeModal_LockedDuringHold(t *testing.T) {
	handler, center, _ := setupModalHandler(t)

	center.OpenModal("up_next", "You're up next!")
	center.ModalCountdown(3)

	e := echo.New()
	c, _ := newJSONContext(e, http.MethodPost, "/modal/ack", "")

	err := handler.AcknowledgeModal(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
	// The modal stays open until the countdown releases it.
	assert.NotNil(t, center.Modal())
}

func TestQueueHandler_AcknowledgeModal_TooFarRoutesToGeofence(t *testing.T) {
	handler, center, geofence := setupModalHandler(t)

	geofence.Start("u1")
	// 0.002 degrees of latitude is roughly 222m, outside the 200m fence.
	geofence.Observe(context.Background(), 14.5995+0.002, 120.9842)
	require.NotNil(t, center.Modal())

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/modal/ack", "")

	err := handler.AcknowledgeModal(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, center.Modal())
}

func TestQueueHandler_Location_RequiresCoordinates(t *testing.T) {
	handler, _, _ := setupModalHandler(t)
	e := echo.New()
	c, _ := newJSONContext(e, http.MethodPost, "/events/location", `{"latitude": 14.6}`)

	err := handler.Location(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestQueueHandler_Location_FeedsGeofence(t *testing.T) {
	handler, center, geofence := setupModalHandler(t)
	geofence.Start("u1")

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/events/location",
		`{"latitude": 14.6015, "longitude": 120.9842}`)

	err := handler.Location(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	// 0.002 degrees out: the too-far modal opened.
	assert.NotNil(t, center.Modal())
}
