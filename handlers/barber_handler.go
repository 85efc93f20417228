package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"barber-queue/clients"
	"barber-queue/services"
)

// BarberHandler is the barber-side console: queue management actions, the
// earnings dashboard and customer feedback.
type BarberHandler struct {
	api       *clients.BarberAPI
	analytics *services.AnalyticsService
	recon     *services.Reconciler
}

func NewBarberHandler(api *clients.BarberAPI, analytics *services.AnalyticsService, recon *services.Reconciler) *BarberHandler {
	return &BarberHandler{
		api:       api,
		analytics: analytics,
		recon:     recon,
	}
}

func (h *BarberHandler) Register(e *echo.Echo) {
	e.GET("/barber/queue", h.QueueDetails)
	e.PUT("/barber/queue/next", h.CallNext)
	e.POST("/barber/queue/complete", h.CompleteCut)
	e.PUT("/barber/queue/cancel", h.CancelEntry)
	e.PUT("/barber/availability", h.ToggleAvailability)
	e.GET("/barber/earnings", h.Earnings)
	e.GET("/barber/rating", h.Rating)
	e.POST("/feedback", h.SubmitFeedback)
}

// QueueDetails is the barber-side queue view with reference images and VIP
// markers.
func (h *BarberHandler) QueueDetails(c echo.Context) error {
	barberID := c.QueryParam("barber_id")
	if barberID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "barber_id is required")
	}
	snapshot, err := h.api.QueueDetails(c.Request().Context(), barberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, snapshot)
}

// CallNext promotes the first waiting entry; a wake makes the local view
// catch up immediately instead of on the next poll.
func (h *BarberHandler) CallNext(c echo.Context) error {
	barberID := c.QueryParam("barber_id")
	if barberID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "barber_id is required")
	}
	if err := h.api.CallNext(c.Request().Context(), barberID); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	h.recon.Wake(services.TriggerManual)
	return c.JSON(http.StatusOK, map[string]string{"status": "called"})
}

func (h *BarberHandler) CompleteCut(c echo.Context) error {
	entryID := c.QueryParam("entry_id")
	if entryID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "entry_id is required")
	}
	if err := h.api.CompleteCut(c.Request().Context(), entryID); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	h.recon.Wake(services.TriggerManual)
	return c.JSON(http.StatusOK, map[string]string{"status": "completed"})
}

func (h *BarberHandler) CancelEntry(c echo.Context) error {
	entryID := c.QueryParam("entry_id")
	if entryID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "entry_id is required")
	}
	if err := h.api.CancelEntry(c.Request().Context(), entryID); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	h.recon.Wake(services.TriggerManual)
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *BarberHandler) ToggleAvailability(c echo.Context) error {
	barberID := c.QueryParam("barber_id")
	if barberID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "barber_id is required")
	}
	available, err := h.api.ToggleAvailability(c.Request().Context(), barberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"is_available": available})
}

// Earnings serves the client-side earnings aggregation.
func (h *BarberHandler) Earnings(c echo.Context) error {
	barberID := c.QueryParam("barber_id")
	if barberID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "barber_id is required")
	}
	summary, err := h.analytics.Earnings(c.Request().Context(), barberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *BarberHandler) Rating(c echo.Context) error {
	barberID := c.QueryParam("barber_id")
	if barberID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "barber_id is required")
	}
	rating, rows, err := h.analytics.Rating(c.Request().Context(), barberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"average_rating": rating,
		"feedback":       rows,
	})
}

// SubmitFeedback forwards the rating captured by the Done modal.
func (h *BarberHandler) SubmitFeedback(c echo.Context) error {
	var req clients.FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid feedback")
	}
	if req.EntryID == "" || req.Rating < 1 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "entry_id and a 1-5 rating are required")
	}
	if err := h.api.SubmitFeedback(c.Request().Context(), req); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "submitted"})
}
