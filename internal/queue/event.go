// Package queue defines message payloads exchanged over the message broker.
package queue

// RegistrationConfirmedEvent is published when an attendee successfully
// registers for an event.  It contains enough information for downstream
// consumers to log or notify without querying the primary database.
type RegistrationConfirmedEvent struct {
	EventID      uint64  `json:"event_id"`
	EventName    string  `json:"event_name"`
	UserID       uint64  `json:"user_id"`
	Email        string  `json:"email"`
	TicketPrice  float64 `json:"ticket_price"`
	RegisteredAt string  `json:"registered_at"`
}
