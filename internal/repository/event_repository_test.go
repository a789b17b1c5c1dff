package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-registration/internal/model"
)

const (
	lockEventQuery      = "SELECT capacity, ticket_price, dynamic_pricing FROM events WHERE id=? FOR UPDATE"
	attendeeExistsQuery = "SELECT EXISTS(SELECT 1 FROM event_attendees WHERE event_id=? AND user_id=?)"
	attendeeCountQuery  = "SELECT COUNT(*) FROM event_attendees WHERE event_id=?"
	insertAttendeeQuery = "INSERT INTO event_attendees (event_id, user_id) VALUES (?,?)"
	bumpPriceQuery      = "UPDATE events SET ticket_price = ticket_price + ? WHERE id=?"
	lockDateQuery       = "SELECT date FROM events WHERE id=? FOR UPDATE"
)

func newEventRepo(t *testing.T) (*EventRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventRepo(db), mock
}

func TestRegisterAttendee(t *testing.T) {
	tests := []struct {
		name      string
		mock      func(m sqlmock.Sqlmock)
		wantPrice float64
		wantErr   error
	}{
		{
			name: "success with fixed pricing",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}).
						AddRow(100, 50.0, false))
				m.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				m.ExpectQuery(regexp.QuoteMeta(attendeeCountQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
				m.ExpectExec(regexp.QuoteMeta(insertAttendeeQuery)).WithArgs(uint64(1), uint64(7)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				m.ExpectCommit()
			},
			wantPrice: 50.0,
		},
		{
			name: "success with dynamic pricing bumps price",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}).
						AddRow(100, 50.0, true))
				m.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				m.ExpectQuery(regexp.QuoteMeta(attendeeCountQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
				m.ExpectExec(regexp.QuoteMeta(insertAttendeeQuery)).WithArgs(uint64(1), uint64(7)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				m.ExpectExec(regexp.QuoteMeta(bumpPriceQuery)).WithArgs(model.DynamicPriceStep, uint64(1)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
			wantPrice: 50.0 + model.DynamicPriceStep,
		},
		{
			name: "event not found",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}))
				m.ExpectRollback()
			},
			wantErr: ErrEventNotFound,
		},
		{
			name: "already registered",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}).
						AddRow(100, 50.0, false))
				m.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				m.ExpectRollback()
			},
			wantErr: ErrAlreadyRegistered,
		},
		{
			name: "sold out",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}).
						AddRow(2, 50.0, true))
				m.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				m.ExpectQuery(regexp.QuoteMeta(attendeeCountQuery)).WithArgs(uint64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
				m.ExpectRollback()
			},
			wantErr: ErrSoldOut,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newEventRepo(t)
			tc.mock(mock)

			price, err := repo.RegisterAttendee(context.Background(), 1, 7)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantPrice, price)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// Two registrations racing for the last seat serialize on the locked event
// row.  The loser re-reads the attendee count after the winner's commit and
// must come back sold out.
func TestRegisterAttendeeLastSeatSerialized(t *testing.T) {
	repo, mock := newEventRepo(t)

	// Winner takes the last seat.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}).
			AddRow(2, 50.0, false))
	mock.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(attendeeCountQuery)).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(insertAttendeeQuery)).WithArgs(uint64(1), uint64(7)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	// Loser acquires the row lock after the commit and sees a full event.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventQuery)).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "ticket_price", "dynamic_pricing"}).
			AddRow(2, 50.0, false))
	mock.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(attendeeCountQuery)).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	price, err := repo.RegisterAttendee(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)

	_, err = repo.RegisterAttendee(context.Background(), 1, 8)
	assert.ErrorIs(t, err, ErrSoldOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		date      time.Time
		attendees int
		wantErr   error
	}{
		{
			name:      "attendees block cancellation even far out",
			date:      now.Add(30 * 24 * time.Hour),
			attendees: 3,
			wantErr:   ErrHasAttendees,
		},
		{
			name:    "three days ahead is inside the window",
			date:    now.Add(3 * 24 * time.Hour),
			wantErr: ErrTooCloseToCancel,
		},
		{
			name:    "past event cannot be cancelled",
			date:    now.Add(-24 * time.Hour),
			wantErr: ErrTooCloseToCancel,
		},
		{
			name: "ten days ahead with no attendees succeeds",
			date: now.Add(10 * 24 * time.Hour),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newEventRepo(t)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(lockDateQuery)).WithArgs(uint64(5)).
				WillReturnRows(sqlmock.NewRows([]string{"date"}).AddRow(tc.date))
			mock.ExpectQuery(regexp.QuoteMeta(attendeeCountQuery)).WithArgs(uint64(5)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tc.attendees))
			if tc.wantErr == nil {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM event_ratings WHERE event_id=?")).WithArgs(uint64(5)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id=?")).WithArgs(uint64(5)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := repo.Cancel(context.Background(), 5, now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancelEventNotFound(t *testing.T) {
	repo, mock := newEventRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockDateQuery)).WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"date"}))
	mock.ExpectRollback()

	err := repo.Cancel(context.Background(), 99, time.Now().UTC())
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityFill(t *testing.T) {
	repo, mock := newEventRepo(t)
	mock.ExpectQuery("SELECT e.capacity,").WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "count"}).AddRow(40, 10))

	pct, err := repo.CapacityFill(context.Background(), 3)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, pct, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityFillNotFound(t *testing.T) {
	repo, mock := newEventRepo(t)
	mock.ExpectQuery("SELECT e.capacity,").WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "count"}))

	_, err := repo.CapacityFill(context.Background(), 3)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestAggregate(t *testing.T) {
	repo, mock := newEventRepo(t)
	mock.ExpectQuery("SELECT e.name,").WillReturnRows(
		sqlmock.NewRows([]string{"name", "count", "avg"}).
			AddRow("unrated event", 0, 0.0).
			AddRow("rated event", 2, 3.0))

	stats, err := repo.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, model.EventStats{Name: "unrated event", AttendeesCount: 0, AvgRating: 0}, stats[0])
	assert.Equal(t, model.EventStats{Name: "rated event", AttendeesCount: 2, AvgRating: 3.0}, stats[1])
}

func TestRate(t *testing.T) {
	eventExists := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM events WHERE id=?)")

	t.Run("not an attendee", func(t *testing.T) {
		repo, mock := newEventRepo(t)
		mock.ExpectQuery(eventExists).WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.Rate(context.Background(), 1, 7, 4)
		assert.ErrorIs(t, err, ErrNotAttendee)
	})

	t.Run("event not found", func(t *testing.T) {
		repo, mock := newEventRepo(t)
		mock.ExpectQuery(eventExists).WithArgs(uint64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.Rate(context.Background(), 9, 7, 4)
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("records a rating once", func(t *testing.T) {
		repo, mock := newEventRepo(t)
		mock.ExpectQuery(eventExists).WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(regexp.QuoteMeta(attendeeExistsQuery)).WithArgs(uint64(1), uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_ratings (event_id, user_id, rating) VALUES (?,?,?)")).
			WithArgs(uint64(1), uint64(7), 4.0).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Rate(context.Background(), 1, 7, 4)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSummariesScopedToCreator(t *testing.T) {
	repo, mock := newEventRepo(t)
	creator := uint64(3)
	mock.ExpectQuery("SELECT e.id, e.name,").WithArgs(creator).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "count"}).
			AddRow(1, "go meetup", 12))

	out, err := repo.Summaries(context.Background(), &creator)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.EventSummary{ID: 1, Name: "go meetup", AttendeesCount: 12}, out[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
