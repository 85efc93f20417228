package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"barber-queue/clients"
	"barber-queue/models"
	"barber-queue/services"
)

// QueueHandler is the local UI surface for the queue session: the join
// lifecycle, the reconciled queue view, and the browser-event inputs
// (visibility, location samples, modal acknowledgements).
type QueueHandler struct {
	api      *clients.BarberAPI
	session  *services.Session
	recon    *services.Reconciler
	ewt      *services.EWTTracker
	notifier *services.TurnNotifier
	geofence *services.GeofenceWatcher
	center   *services.NotificationCenter
	store    *services.SessionStore
}

func NewQueueHandler(api *clients.BarberAPI, session *services.Session, recon *services.Reconciler, ewt *services.EWTTracker, notifier *services.TurnNotifier, geofence *services.GeofenceWatcher, center *services.NotificationCenter, store *services.SessionStore) *QueueHandler {
	return &QueueHandler{
		api:      api,
		session:  session,
		recon:    recon,
		ewt:      ewt,
		notifier: notifier,
		geofence: geofence,
		center:   center,
		store:    store,
	}
}

func (h *QueueHandler) Register(e *echo.Echo) {
	e.GET("/barbers", h.ListBarbers)
	e.GET("/queue-services", h.ListServices)
	e.POST("/queue/join", h.Join)
	e.POST("/queue/leave", h.Leave)
	e.GET("/queue/view", h.View)
	e.PUT("/queue/photo", h.UpdatePhoto)
	e.POST("/events/visibility", h.Visibility)
	e.POST("/events/location", h.Location)
	e.POST("/modal/ack", h.AcknowledgeModal)
	e.GET("/instructions", h.Instructions)
	e.POST("/instructions/seen", h.MarkInstructionsSeen)
	e.GET("/theme", h.Theme)
	e.PUT("/theme", h.SetTheme)
}

// ListBarbers proxies the shop's barber roster for the join form.
func (h *QueueHandler) ListBarbers(c echo.Context) error {
	barbers, err := h.api.ListBarbers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, barbers)
}

// ListServices proxies the service catalogue for the join form.
func (h *QueueHandler) ListServices(c echo.Context) error {
	list, err := h.api.ListServices(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

// Join creates the queue entry and starts the session machinery.
func (h *QueueHandler) Join(c echo.Context) error {
	var req clients.JoinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid join request")
	}
	if req.BarberID == "" || req.ServiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "barber_id and service_id are required")
	}

	entry, err := h.session.Join(c.Request().Context(), req)
	if err != nil {
		if err == services.ErrNotLoggedIn {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}

// Leave removes the caller's entry and tears the session down.
func (h *QueueHandler) Leave(c echo.Context) error {
	if err := h.session.Leave(c.Request().Context()); err != nil {
		switch err {
		case services.ErrNotLoggedIn:
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		case services.ErrNotQueued:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "left"})
}

type queueView struct {
	Queue      models.QueueSnapshot `json:"queue"`
	LoadError  string               `json:"load_error,omitempty"`
	SelfStatus models.Status        `json:"self_status,omitempty"`
	Wait       models.EWTState      `json:"wait"`
	Modal      *services.ModalState `json:"modal,omitempty"`
}

// View returns everything the queue screen renders in one shot: the last
// complete snapshot, the caller's status, the smoothed wait figures and the
// modal currently on screen.
func (h *QueueHandler) View(c echo.Context) error {
	snapshot, loadError := h.recon.Snapshot()

	view := queueView{
		Queue:     snapshot,
		LoadError: loadError,
		Wait:      h.ewt.State(),
		Modal:     h.center.Modal(),
	}
	if self, ok := h.recon.SelfEntry(); ok {
		view.SelfStatus = self.Status
	}
	return c.JSON(http.StatusOK, view)
}

// UpdatePhoto replaces the reference image on the caller's entry.
func (h *QueueHandler) UpdatePhoto(c echo.Context) error {
	entryID, ok := h.session.Queued()
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "no active queue entry")
	}

	var req struct {
		PhotoURL string `json:"photo_url"`
	}
	if err := c.Bind(&req); err != nil || req.PhotoURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "photo_url is required")
	}

	if err := h.api.UpdatePhoto(c.Request().Context(), entryID, req.PhotoURL); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	h.recon.Wake(services.TriggerManual)
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

// Visibility is the tab-visibility signal: a foreground transition forces an
// immediate resync.
func (h *QueueHandler) Visibility(c echo.Context) error {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visibility event")
	}
	if req.Visible {
		h.session.Foreground()
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Location feeds one device-location sample into the geofence watcher.
func (h *QueueHandler) Location(c echo.Context) error {
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := c.Bind(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "latitude and longitude are required")
	}

	h.geofence.Observe(c.Request().Context(), *req.Latitude, *req.Longitude)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// AcknowledgeModal handles the OK press on the open modal. Turn modals
// refuse the press while the hold countdown is still running; the too-far
// modal routes through the geofence cooldown instead.
func (h *QueueHandler) AcknowledgeModal(c echo.Context) error {
	modal := h.center.Modal()
	if modal == nil {
		return echo.NewHTTPError(http.StatusConflict, "no modal open")
	}
	if !modal.Dismissable {
		return echo.NewHTTPError(http.StatusConflict,
			"modal locked for "+strconv.Itoa(modal.CountdownRemaining)+"s")
	}

	ctx := c.Request().Context()
	if modal.Kind == models.ModalTooFar {
		h.geofence.Dismiss(ctx)
	} else {
		h.notifier.Acknowledge(ctx)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "acknowledged"})
}

// Instructions reports whether the first-visit walkthrough was already seen.
func (h *QueueHandler) Instructions(c echo.Context) error {
	account, ok := h.session.Account()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	seen, err := h.store.SeenInstructions(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"seen": seen})
}

func (h *QueueHandler) MarkInstructionsSeen(c echo.Context) error {
	account, ok := h.session.Account()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	if err := h.store.MarkSeenInstructions(c.Request().Context(), account.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Theme returns the persisted display theme, empty when never set.
func (h *QueueHandler) Theme(c echo.Context) error {
	account, ok := h.session.Account()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	theme, err := h.store.Theme(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"theme": theme})
}

func (h *QueueHandler) SetTheme(c echo.Context) error {
	account, ok := h.session.Account()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.Bind(&req); err != nil || req.Theme == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "theme is required")
	}
	if err := h.store.SetTheme(c.Request().Context(), account.ID, req.Theme); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"theme": req.Theme})
}
