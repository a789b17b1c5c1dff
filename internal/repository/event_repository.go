package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-registration/internal/model"
)

// cancelWindowDays is the lock-out window before an event's date inside
// which it can no longer be cancelled.  Past events count as inside the
// window, so they cannot be cancelled either.
const cancelWindowDays = 7.0

// EventRepo provides CRUD operations for events, their attendee lists and
// their ratings.  Attendees and ratings are rows in the event_attendees and
// event_ratings tables keyed by event id.  The registration and cancellation
// paths run inside transactions that lock the event row, so concurrent
// requests against the same event serialize and the capacity invariant
// holds under race.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle for callers that need to coordinate
// transactions across repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

// Create inserts a new event and populates the generated ID and timestamps
// on the provided model.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO events (name, date, capacity, ticket_price, dynamic_pricing, created_by) VALUES (?,?,?,?,?,?)",
		e.Name, e.Date, e.Capacity, e.TicketPrice, e.DynamicPricing, e.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	// Query back the row to populate timestamps set by the database.
	return r.db.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM events WHERE id=?",
		e.ID).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// GetByID fetches an event with its attendee ids and ratings loaded.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		"SELECT id,name,date,capacity,ticket_price,dynamic_pricing,created_by,created_at,updated_at FROM events WHERE id=? LIMIT 1",
		id).Scan(&e.ID, &e.Name, &e.Date, &e.Capacity, &e.TicketPrice, &e.DynamicPricing, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	if err != nil {
		return model.Event{}, err
	}
	if e.Attendees, err = r.attendeeIDs(ctx, id); err != nil {
		return model.Event{}, err
	}
	if e.Ratings, err = r.ratings(ctx, id); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// attendeeIDs returns the attendee user ids of an event in append order.
func (r *EventRepo) attendeeIDs(ctx context.Context, eventID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM event_attendees WHERE event_id=? ORDER BY created_at, user_id",
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ratings returns the ratings submitted for an event.
func (r *EventRepo) ratings(ctx context.Context, eventID uint64) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT rating FROM event_ratings WHERE event_id=? ORDER BY created_at, user_id",
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Summaries returns name + attendee count per event.  When createdBy is
// non-nil the listing is restricted to events created by that user; admins
// and organizers pass nil to see everything.
func (r *EventRepo) Summaries(ctx context.Context, createdBy *uint64) ([]model.EventSummary, error) {
	q := `SELECT e.id, e.name,
	(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id)
	FROM events e`
	args := []interface{}{}
	if createdBy != nil {
		q += " WHERE e.created_by = ?"
		args = append(args, *createdBy)
	}
	q += " ORDER BY e.id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.EventSummary{}
	for rows.Next() {
		var s model.EventSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.AttendeesCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByCreator returns every event created by the given user.
func (r *EventRepo) ListByCreator(ctx context.Context, creatorID uint64) ([]model.Event, error) {
	return r.list(ctx,
		"SELECT id,name,date,capacity,ticket_price,dynamic_pricing,created_by,created_at,updated_at FROM events WHERE created_by=? ORDER BY id",
		creatorID)
}

// ListByAttendee returns every event the given user registered for, sorted
// ascending by event date.
func (r *EventRepo) ListByAttendee(ctx context.Context, userID uint64) ([]model.Event, error) {
	return r.list(ctx,
		`SELECT e.id,e.name,e.date,e.capacity,e.ticket_price,e.dynamic_pricing,e.created_by,e.created_at,e.updated_at
		FROM events e JOIN event_attendees a ON a.event_id = e.id
		WHERE a.user_id=? ORDER BY e.date ASC`,
		userID)
}

func (r *EventRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Capacity, &e.TicketPrice, &e.DynamicPricing, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CapacityFill returns 100 * attendees / capacity for an event.  A zero
// capacity is rejected at creation time, so hitting one here is a data
// integrity failure, not a client error.
func (r *EventRepo) CapacityFill(ctx context.Context, eventID uint64) (float64, error) {
	var capacity, count int
	err := r.db.QueryRowContext(ctx,
		`SELECT e.capacity, (SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id)
		FROM events e WHERE e.id=? LIMIT 1`,
		eventID).Scan(&capacity, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, err
	}
	if capacity <= 0 {
		return 0, fmt.Errorf("event %d has non-positive capacity %d", eventID, capacity)
	}
	return 100 * float64(count) / float64(capacity), nil
}

// Aggregate returns name, attendee count and average rating per event.  The
// average is 0 for events with no ratings.
func (r *EventRepo) Aggregate(ctx context.Context) ([]model.EventStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.name,
		(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id),
		(SELECT COALESCE(AVG(r.rating), 0) FROM event_ratings r WHERE r.event_id = e.id)
		FROM events e ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.EventStats{}
	for rows.Next() {
		var s model.EventStats
		if err := rows.Scan(&s.Name, &s.AttendeesCount, &s.AvgRating); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RegisterAttendee appends a user to an event's attendee list and, when
// dynamic pricing is on, bumps the ticket price by model.DynamicPriceStep.
// The whole operation runs in one transaction with the event row locked
// (SELECT ... FOR UPDATE), so two racing registrations for the last seat
// serialize and exactly one succeeds.  Checks run in fixed order: existence,
// duplicate registration, capacity.  The returned price reflects the bump.
func (r *EventRepo) RegisterAttendee(ctx context.Context, eventID, userID uint64) (float64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		capacity       int
		price          float64
		dynamicPricing bool
	)
	err = tx.QueryRowContext(ctx,
		"SELECT capacity, ticket_price, dynamic_pricing FROM events WHERE id=? FOR UPDATE",
		eventID).Scan(&capacity, &price, &dynamicPricing)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, err
	}

	var already bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM event_attendees WHERE event_id=? AND user_id=?)",
		eventID, userID).Scan(&already); err != nil {
		return 0, err
	}
	if already {
		return 0, ErrAlreadyRegistered
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM event_attendees WHERE event_id=?",
		eventID).Scan(&count); err != nil {
		return 0, err
	}
	if count >= capacity {
		return 0, ErrSoldOut
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO event_attendees (event_id, user_id) VALUES (?,?)",
		eventID, userID); err != nil {
		return 0, err
	}

	if dynamicPricing {
		if _, err := tx.ExecContext(ctx,
			"UPDATE events SET ticket_price = ticket_price + ? WHERE id=?",
			model.DynamicPriceStep, eventID); err != nil {
			return 0, err
		}
		price += model.DynamicPriceStep
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return price, nil
}

// Cancel deletes an event.  It fails with ErrHasAttendees when anyone is
// registered (checked first, regardless of the date) and with
// ErrTooCloseToCancel when the event starts in fewer than seven days as of
// now, past events included.  The row is locked for the duration so a
// concurrent registration cannot slip in between the checks and the delete.
func (r *EventRepo) Cancel(ctx context.Context, eventID uint64, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var date time.Time
	err = tx.QueryRowContext(ctx,
		"SELECT date FROM events WHERE id=? FOR UPDATE",
		eventID).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM event_attendees WHERE event_id=?",
		eventID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrHasAttendees
	}

	if date.Sub(now).Hours()/24 < cancelWindowDays {
		return ErrTooCloseToCancel
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM event_ratings WHERE event_id=?", eventID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id=?", eventID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Rate records an attendee's rating for an event.  Only registered attendees
// may rate, and each attendee rates at most once; the unique key on
// (event_id, user_id) backs the second rule.
func (r *EventRepo) Rate(ctx context.Context, eventID, userID uint64, rating float64) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM events WHERE id=?)", eventID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrEventNotFound
	}

	var attendee bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM event_attendees WHERE event_id=? AND user_id=?)",
		eventID, userID).Scan(&attendee); err != nil {
		return err
	}
	if !attendee {
		return ErrNotAttendee
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO event_ratings (event_id, user_id, rating) VALUES (?,?,?)",
		eventID, userID, rating); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrAlreadyRated
		}
		return err
	}
	return nil
}
