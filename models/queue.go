package models

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a queue entry as reported by the server.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusUpNext     Status = "up_next"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus converts a raw status string from the API into a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusWaiting, StatusUpNext, StatusInProgress, StatusDone, StatusCancelled:
		return Status(raw), nil
	}
	return "", &DecodeError{What: fmt.Sprintf("unknown queue status %q", raw)}
}

// IsTerminal reports whether the status removes the entry from the active queue.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

type QueueEntry struct {
	ID                     string `json:"id"`
	CustomerName           string `json:"customer_name"`
	Status                 Status `json:"status"`
	ServiceDurationMinutes int    `json:"service_duration_minutes"`
	IsVIP                  bool   `json:"is_vip"`
	ReferenceImageURL      string `json:"reference_image_url,omitempty"`
	BarberID               string `json:"barber_id"`
}

// QueueSnapshot is a complete, point-in-time ordered queue for one barber.
// Array position encodes priority; the server enforces VIP ordering, the
// client only consumes it.
type QueueSnapshot []QueueEntry

// IndexOf returns the position of the entry with the given id, or -1.
func (s QueueSnapshot) IndexOf(entryID string) int {
	for i, e := range s {
		if e.ID == entryID {
			return i
		}
	}
	return -1
}

// Find returns the entry with the given id, if present.
func (s QueueSnapshot) Find(entryID string) (QueueEntry, bool) {
	if i := s.IndexOf(entryID); i >= 0 {
		return s[i], true
	}
	return QueueEntry{}, false
}

type entryPayload struct {
	ID                     string `json:"id"`
	CustomerName           string `json:"customer_name"`
	Status                 string `json:"status"`
	ServiceDurationMinutes int    `json:"service_duration_minutes"`
	IsVIP                  bool   `json:"is_vip"`
	ReferenceImageURL      string `json:"reference_image_url"`
	BarberID               string `json:"barber_id"`
}

func (p *entryPayload) toDomain() (QueueEntry, error) {
	if p.ID == "" {
		return QueueEntry{}, &DecodeError{What: "queue entry missing id"}
	}
	status, err := ParseStatus(p.Status)
	if err != nil {
		return QueueEntry{}, err
	}
	return QueueEntry{
		ID:                     p.ID,
		CustomerName:           p.CustomerName,
		Status:                 status,
		ServiceDurationMinutes: p.ServiceDurationMinutes,
		IsVIP:                  p.IsVIP,
		ReferenceImageURL:      p.ReferenceImageURL,
		BarberID:               p.BarberID,
	}, nil
}

// DecodeEntry converts a single raw queue-entry body into a QueueEntry.
func DecodeEntry(data []byte) (QueueEntry, error) {
	var p entryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return QueueEntry{}, &DecodeError{What: "queue entry", Err: err}
	}
	return p.toDomain()
}

// DecodeSnapshot converts a raw queue response body into a QueueSnapshot.
// Any malformed entry fails the whole snapshot; partial queues are never
// surfaced to consumers.
func DecodeSnapshot(data []byte) (QueueSnapshot, error) {
	var payloads []entryPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, &DecodeError{What: "queue snapshot", Err: err}
	}

	snapshot := make(QueueSnapshot, 0, len(payloads))
	for _, p := range payloads {
		entry, err := p.toDomain()
		if err != nil {
			return nil, err
		}
		snapshot = append(snapshot, entry)
	}
	return snapshot, nil
}

// EWTState is the derived wait-time state shown to a queued customer.
// DisplayMinutes is the only client-owned derived value with memory across
// reconciliation passes.
type EWTState struct {
	PeopleWaiting    int `json:"people_waiting"`
	EstimatedMinutes int `json:"estimated_minutes"`
	DisplayMinutes   int `json:"display_minutes"`
}
