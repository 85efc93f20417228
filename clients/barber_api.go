package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"barber-queue/models"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// BarberAPI is the client for the barbershop API server. Every consumer-side
// endpoint goes through here; raw JSON is converted to domain types at this
// boundary and malformed responses surface as *models.DecodeError.
type BarberAPI struct {
	baseURL string
	hc      *http.Client
}

func NewBarberAPI(cfg *Config) *BarberAPI {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &BarberAPI{
		baseURL: cfg.BaseURL,
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *BarberAPI) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("barberapi: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("barberapi: parse base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, base.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("barberapi: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("barberapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("barberapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("barberapi: %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	return data, nil
}

func (c *BarberAPI) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &models.DecodeError{What: path, Err: err}
	}
	return nil
}

// ListBarbers returns every barber of the shop.
func (c *BarberAPI) ListBarbers(ctx context.Context) ([]models.Barber, error) {
	var barbers []models.Barber
	if err := c.getJSON(ctx, "/api/barbers", &barbers); err != nil {
		return nil, err
	}
	return barbers, nil
}

// ListServices returns the service catalogue with durations and prices.
func (c *BarberAPI) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := c.getJSON(ctx, "/api/services", &services); err != nil {
		return nil, err
	}
	return services, nil
}

type JoinRequest struct {
	BarberID          string `json:"barber_id"`
	ServiceID         string `json:"service_id"`
	CustomerName      string `json:"customer_name"`
	IsVIP             bool   `json:"is_vip"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
}

// JoinQueue creates a queue entry and returns it.
func (c *BarberAPI) JoinQueue(ctx context.Context, req JoinRequest) (*models.QueueEntry, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/queue", req)
	if err != nil {
		return nil, err
	}
	entry, err := models.DecodeEntry(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LeaveQueue removes the caller's entry from the line.
func (c *BarberAPI) LeaveQueue(ctx context.Context, entryID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/queue?entry_id="+url.QueryEscape(entryID), nil)
	return err
}

// PublicQueue fetches the complete ordered queue for one barber. This is the
// single fetch-and-replace operation behind every reconciliation trigger.
func (c *BarberAPI) PublicQueue(ctx context.Context, barberID string) (models.QueueSnapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/queue/public?barber_id="+url.QueryEscape(barberID), nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeSnapshot(data)
}

// QueueDetails is the barber-side view of the same queue, including
// reference images and VIP markers.
func (c *BarberAPI) QueueDetails(ctx context.Context, barberID string) (models.QueueSnapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/queue/details?barber_id="+url.QueryEscape(barberID), nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeSnapshot(data)
}

// CallNext promotes the first waiting entry of the barber's queue.
func (c *BarberAPI) CallNext(ctx context.Context, barberID string) error {
	_, err := c.do(ctx, http.MethodPut, "/api/queue/next?barber_id="+url.QueryEscape(barberID), nil)
	return err
}

// CompleteCut marks the in-progress entry as done.
func (c *BarberAPI) CompleteCut(ctx context.Context, entryID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/queue/complete?entry_id="+url.QueryEscape(entryID), nil)
	return err
}

// CancelEntry cancels a queue entry on the customer's or barber's behalf.
func (c *BarberAPI) CancelEntry(ctx context.Context, entryID string) error {
	_, err := c.do(ctx, http.MethodPut, "/api/queue/cancel?entry_id="+url.QueryEscape(entryID), nil)
	return err
}

// ToggleAvailability flips the barber's availability and returns the new value.
func (c *BarberAPI) ToggleAvailability(ctx context.Context, barberID string) (bool, error) {
	data, err := c.do(ctx, http.MethodPut, "/api/barbers/availability?barber_id="+url.QueryEscape(barberID), nil)
	if err != nil {
		return false, err
	}
	var reply struct {
		IsAvailable bool `json:"is_available"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return false, &models.DecodeError{What: "availability", Err: err}
	}
	return reply.IsAvailable, nil
}

// UpdatePhoto replaces the reference image on the caller's queue entry.
func (c *BarberAPI) UpdatePhoto(ctx context.Context, entryID, photoURL string) error {
	body := map[string]string{"reference_image_url": photoURL}
	_, err := c.do(ctx, http.MethodPut, "/api/queue/photo?entry_id="+url.QueryEscape(entryID), body)
	return err
}

// Analytics returns the completed-cut rows for one barber.
func (c *BarberAPI) Analytics(ctx context.Context, barberID string) ([]models.AnalyticsRow, error) {
	var rows []models.AnalyticsRow
	if err := c.getJSON(ctx, "/api/analytics?barber_id="+url.QueryEscape(barberID), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FeedbackByBarber returns customer feedback rows for one barber.
func (c *BarberAPI) FeedbackByBarber(ctx context.Context, barberID string) ([]models.FeedbackEntry, error) {
	var rows []models.FeedbackEntry
	if err := c.getJSON(ctx, "/api/feedback?barber_id="+url.QueryEscape(barberID), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type FeedbackRequest struct {
	EntryID string `json:"entry_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SubmitFeedback posts the feedback captured by the Done modal.
func (c *BarberAPI) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/api/feedback", req)
	return err
}

// Login authenticates by username. Credential handling is entirely
// server-side; the client just forwards them.
func (c *BarberAPI) Login(ctx context.Context, username, password string) (*models.Account, error) {
	body := map[string]string{"username": username, "password": password}
	data, err := c.do(ctx, http.MethodPost, "/api/auth/login", body)
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, &models.DecodeError{What: "login", Err: err}
	}
	if account.ID == "" {
		return nil, &models.DecodeError{What: "login response missing account id"}
	}
	return &account, nil
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an account by username.
func (c *BarberAPI) Signup(ctx context.Context, req SignupRequest) (*models.Account, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/auth/signup", req)
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, &models.DecodeError{What: "signup", Err: err}
	}
	return &account, nil
}

// CheckEmailExists asks whether an email is already registered.
func (c *BarberAPI) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	var reply struct {
		Exists bool `json:"exists"`
	}
	if err := c.getJSON(ctx, "/api/auth/email-exists?email="+url.QueryEscape(email), &reply); err != nil {
		return false, err
	}
	return reply.Exists, nil
}

// MissedTerminalEvent queries the last known terminal event for a user.
// Returns (nil, nil) when the server knows of none. This is the
// reconciliation-time compensation for at-most-once realtime delivery.
func (c *BarberAPI) MissedTerminalEvent(ctx context.Context, userID string) (*models.TerminalEvent, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/queue/terminal-event?user_id="+url.QueryEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeTerminalEvent(data)
}

// ChatHistory pulls all prior rows of a queue-entry-scoped conversation.
func (c *BarberAPI) ChatHistory(ctx context.Context, queueEntryID, counterpartID string) ([]models.ChatMessage, error) {
	path := fmt.Sprintf("/api/chat/history?queue_id=%s&counterpart_id=%s",
		url.QueryEscape(queueEntryID), url.QueryEscape(counterpartID))
	var msgs []models.ChatMessage
	if err := c.getJSON(ctx, path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
