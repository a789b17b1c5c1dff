// Package repository defines sentinel error values shared across the
// repositories.  Handlers compare against them with errors.Is to pick the
// right HTTP status and message, so the exact value matters more than the
// text.
package repository

import "errors"

// ErrEmailExists is returned when registration is attempted with an email
// that already has an account.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when no account matches the given id or email.
var ErrUserNotFound = errors.New("user not found")

// ErrRefreshInvalid is returned when a refresh token hash is unknown,
// revoked or expired.  The three cases are deliberately indistinguishable to
// the caller.
var ErrRefreshInvalid = errors.New("refresh token is invalid")

// ErrEventNotFound is returned when no event matches the given id.
var ErrEventNotFound = errors.New("event not found")

// ErrAlreadyRegistered is returned when a user attempts to register for an
// event they already attend.
var ErrAlreadyRegistered = errors.New("user already registered for the event")

// ErrSoldOut is returned when an event's attendee list has reached its
// capacity.
var ErrSoldOut = errors.New("event is sold out")

// ErrHasAttendees is returned when cancellation is attempted on an event
// that still has attendees.  It takes precedence over the cancellation
// window check.
var ErrHasAttendees = errors.New("event has attendees")

// ErrTooCloseToCancel is returned when an event starts in fewer than seven
// days (or already started); such events cannot be cancelled.
var ErrTooCloseToCancel = errors.New("event is within the cancellation window")

// ErrNotAttendee is returned when a rating is submitted by a user who is not
// registered for the event.
var ErrNotAttendee = errors.New("user is not registered for the event")

// ErrAlreadyRated is returned when an attendee submits a second rating for
// the same event.
var ErrAlreadyRated = errors.New("event already rated by this user")
