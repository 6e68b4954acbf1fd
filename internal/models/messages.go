package models

import (
	"fmt"
	json "github.com/goccy/go-json"
)

type MessageType string

const (
	MessageViewRecorded    MessageType = "view_recorded"
	MessageLockdownEndured MessageType = "lockdown_endured"
	MessageQuickExitUnlock MessageType = "quick_exit_unlock"
	MessageLateNightUnlock MessageType = "late_night_unlock"
	MessageElapsedSeconds  MessageType = "elapsed_seconds"
	MessageSnapshotRequest MessageType = "snapshot_request"

	ResponseState MessageType = "state"
	ResponseError MessageType = "error"
)

// Request is the tagged union observers send to the authority.
type Request struct {
	Type    MessageType `json:"type"`
	ItemID  string      `json:"itemId,omitempty"`
	Seconds int         `json:"seconds,omitempty"`
}

func (r Request) Validate() error {
	switch r.Type {
	case MessageViewRecorded:
		if r.ItemID == "" {
			return fmt.Errorf("%w: itemId is required", ErrInvalidArgument)
		}
		if r.Seconds < 0 {
			return fmt.Errorf("%w: seconds must not be negative", ErrInvalidArgument)
		}
	case MessageElapsedSeconds:
		if r.Seconds < 0 {
			return fmt.Errorf("%w: seconds must not be negative", ErrInvalidArgument)
		}
	case MessageLockdownEndured, MessageQuickExitUnlock, MessageLateNightUnlock, MessageSnapshotRequest:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, r.Type)
	}
	return nil
}

type Response struct {
	Type  MessageType `json:"type"`
	State *Snapshot   `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

func StateResponse(snap Snapshot) Response {
	return Response{Type: ResponseState, State: &snap}
}

func ErrorResponse(msg string) Response {
	return Response{Type: ResponseError, Error: msg}
}

// Change describes one persisted write. Value is the stored JSON, or null
// when the key was removed.
type Change struct {
	Key     string          `json:"key"`
	Entity  string          `json:"entity"`
	Date    string          `json:"date,omitempty"`
	Value   json.RawMessage `json:"value"`
	Removed bool            `json:"removed"`
}

func NewChange(key string, value []byte, removed bool) Change {
	c := Change{Key: key, Entity: EntityForKey(key), Removed: removed}
	if date, ok := DateFromKey(key); ok {
		c.Date = date
	}
	if !removed && len(value) > 0 {
		c.Value = append(json.RawMessage(nil), value...)
	}
	return c
}
