package models

import (
	"encoding/json"
	"fmt"
)

// DecodeError marks a payload from the API or realtime channel that failed
// the validation boundary. It surfaces through the generic fetch-failure
// path; callers never act on a partially decoded value.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.What, e.Err)
	}
	return "decode: " + e.What
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RowChangeEvent is a realtime row-change notification scoped to one
// barber's queue. The client treats it purely as a "something changed,
// refetch now" signal; NewRow is validated but otherwise discarded.
type RowChangeEvent struct {
	EventType string          `json:"eventType"`
	NewRow    json.RawMessage `json:"new"`
}

// DecodeRowChange validates a raw realtime payload.
func DecodeRowChange(data []byte) (*RowChangeEvent, error) {
	var ev RowChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &DecodeError{What: "row-change event", Err: err}
	}
	switch ev.EventType {
	case "INSERT", "UPDATE", "DELETE":
		return &ev, nil
	}
	return nil, &DecodeError{What: fmt.Sprintf("unknown row-change event type %q", ev.EventType)}
}

// TerminalEvent is the answer from the "last known terminal event" endpoint,
// used to replay a Done/Cancelled modal the realtime path may have missed.
type TerminalEvent struct {
	EntryID string `json:"entry_id"`
	Kind    Status `json:"kind"`
}

// DecodeTerminalEvent validates a terminal-event response body. A nil event
// with nil error means the server knows of no terminal event for the user.
func DecodeTerminalEvent(data []byte) (*TerminalEvent, error) {
	var payload struct {
		EntryID string `json:"entry_id"`
		Kind    string `json:"kind"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &DecodeError{What: "terminal event", Err: err}
	}
	if payload.Kind == "" {
		return nil, nil
	}
	kind, err := ParseStatus(payload.Kind)
	if err != nil {
		return nil, err
	}
	if !kind.IsTerminal() {
		return nil, &DecodeError{What: fmt.Sprintf("terminal event with non-terminal kind %q", payload.Kind)}
	}
	return &TerminalEvent{EntryID: payload.EntryID, Kind: kind}, nil
}
