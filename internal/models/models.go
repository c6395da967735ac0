package models

import "time"

// Direction values accepted for log entries.
const (
	DirectionCheckin  = "CHECKIN"
	DirectionCheckout = "CHECKOUT"
)

// ChangeEvent is one notification from the database change channel.
// The payload is relayed opaquely; its arrival is the only signal used.
type ChangeEvent struct {
	Channel string `json:"channel"`
	Payload string `json:"payload"`
}

// BroadcastMessage is the message pushed to websocket subscribers (and the
// optional broker relay) whenever the log table changes.
type BroadcastMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Payload string `json:"payload"`
}

// MessageTypeLogsChanged is the only broadcast message type currently emitted.
const MessageTypeLogsChanged = "logs_changed"

// User is one badge holder, keyed by a 13-digit EAN-13 barcode.
type User struct {
	Barcode   string `json:"barcode"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LogEntry is one CHECKIN/CHECKOUT event.
type LogEntry struct {
	ID        int64     `json:"id"`
	Barcode   string    `json:"barcode"`
	EventTime time.Time `json:"event_time"`
	Direction string    `json:"direction"`
}

// DerivedRow is one row of the "last known check-in per person" view:
// the most recent CHECKIN per barcode joined to the user's identity.
// It is recomputed from the log table on every sync run, never stored.
type DerivedRow struct {
	Barcode   string
	FirstName string
	LastName  string
	EventTime time.Time
}

// Manager is an operator account allowed to perform destructive operations.
type Manager struct {
	ID           int64
	Username     string
	PasswordHash string
	Active       bool
}
