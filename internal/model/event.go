package model

import "time"

// DynamicPriceStep is the fixed amount added to an event's ticket price on
// every successful registration while dynamic pricing is enabled.
const DynamicPriceStep = 40.0

// Event represents a schedulable activity with limited capacity.  The
// attendee and rating lists live in the event_attendees and event_ratings
// tables and are loaded alongside the row for detail responses.
type Event struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	Capacity       int       `json:"capacity"`
	TicketPrice    float64   `json:"ticket_price"`
	DynamicPricing bool      `json:"dynamic_pricing"`
	CreatedBy      uint64    `json:"created_by"`
	Attendees      []uint64  `json:"attendees,omitempty"`
	Ratings        []float64 `json:"ratings,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EventSummary is the reduced listing view: name plus attendee count, with
// no per-attendee detail.
type EventSummary struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	AttendeesCount int    `json:"attendees_count"`
}

// EventStats is one row of the aggregate report.  AvgRating is 0 when the
// event has no ratings.
type EventStats struct {
	Name           string  `json:"name"`
	AttendeesCount int     `json:"attendees_count"`
	AvgRating      float64 `json:"avg_rating"`
}
