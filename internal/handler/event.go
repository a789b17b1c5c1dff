package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
	"github.com/iliyamo/event-registration/internal/repository"
	queue_publisher "github.com/iliyamo/event-registration/internal/service"
)

// EventHandler groups the repositories required to create events, register
// attendees, cancel events and record ratings.  All methods assume JWT
// authentication has already been performed by middleware; role checks for
// creation run in the RequireRole middleware, while cancellation enforces
// creator-or-admin here because it needs the event row anyway.
type EventHandler struct {
	Events *repository.EventRepo
	Users  *repository.UserRepo
}

// NewEventHandler constructs an EventHandler.  Both repositories must be
// non-nil.
func NewEventHandler(events *repository.EventRepo, users *repository.UserRepo) *EventHandler {
	if events == nil || users == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, Users: users}
}

// createEventReq uses pointers for the numeric fields so an absent field is
// distinguishable from an explicit zero.
type createEventReq struct {
	Name           string   `json:"name"`
	Date           string   `json:"date"`
	Capacity       *int     `json:"capacity"`
	TicketPrice    *float64 `json:"ticket_price"`
	DynamicPricing bool     `json:"dynamic_pricing"`
}

// parseEventDate accepts a bare calendar date or a full RFC3339 timestamp.
func parseEventDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Create handles POST /events/create.  Requires the organizer or admin role
// (enforced by RequireRole).  Validates presence of name, date, capacity and
// ticket_price, a positive capacity and a non-negative price.
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Date == "" || req.Capacity == nil || req.TicketPrice == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, date, capacity and ticket_price are required"})
	}
	if *req.Capacity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be a positive integer"})
	}
	if *req.TicketPrice < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_price cannot be negative"})
	}
	date, err := parseEventDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, use YYYY-MM-DD or RFC3339"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	e := model.Event{
		Name:           req.Name,
		Date:           date,
		Capacity:       *req.Capacity,
		TicketPrice:    *req.TicketPrice,
		DynamicPricing: req.DynamicPricing,
		CreatedBy:      uid,
	}
	if err := h.Events.Create(ctx, &e); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"event": e})
}

// Register handles POST /events/register/:eventId.  The repository applies
// the duplicate, capacity and dynamic-pricing rules atomically; this handler
// only translates its sentinels into HTTP responses and fires the
// registration-confirmed event.
func (h *EventHandler) Register(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	price, err := h.Events.RegisterAttendee(ctx, eventID, uid)
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user already registered for the event"})
	case errors.Is(err, repository.ErrSoldOut):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event is sold out"})
	case err != nil:
		log.Printf("register attendee: event=%d user=%d: %v", eventID, uid, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	// Best-effort notification; a broker outage must not fail the request.
	email, _ := c.Get("email").(string)
	go h.publishConfirmation(eventID, uid, email, price)

	return c.JSON(http.StatusOK, echo.Map{
		"message":      "registration successful",
		"ticket_price": price,
	})
}

func (h *EventHandler) publishConfirmation(eventID, userID uint64, email string, price float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := ""
	if e, err := h.Events.GetByID(ctx, eventID); err == nil {
		name = e.Name
	}
	ev := queue.RegistrationConfirmedEvent{
		EventID:      eventID,
		EventName:    name,
		UserID:       userID,
		Email:        email,
		TicketPrice:  price,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := queue_publisher.PublishRegistrationConfirmed(ctx, ev); err != nil {
		log.Printf("publish registration confirmation: event=%d user=%d: %v", eventID, userID, err)
	}
}

// Cancel handles DELETE /events/:eventId.  Only the creator or an admin may
// cancel.  The has-attendees rule is checked before the seven-day window, so
// an event with attendees is rejected for that reason even when both hold.
func (h *EventHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	e, err := h.Events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if e.CreatedBy != uid {
		u, err := h.Users.GetByID(ctx, uid)
		if err != nil || u.Role != model.RoleAdmin {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not authorized"})
		}
	}

	err = h.Events.Cancel(ctx, eventID, time.Now().UTC())
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, repository.ErrHasAttendees):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event cannot be cancelled as it has attendees"})
	case errors.Is(err, repository.ErrTooCloseToCancel):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event cannot be cancelled within 7 days of its date"})
	case err != nil:
		log.Printf("cancel event %d: %v", eventID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "event cancelled successfully"})
}

// Rate handles POST /events/:eventId/rating.  Only attendees may rate, once
// each, on a 0–5 scale.
func (h *EventHandler) Rate(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		Rating *float64 `json:"rating"`
	}
	if err := c.Bind(&body); err != nil || body.Rating == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating is required"})
	}
	if *body.Rating < 0 || *body.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 0 and 5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Events.Rate(ctx, eventID, uid, *body.Rating)
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, repository.ErrNotAttendee):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only attendees can rate an event"})
	case errors.Is(err, repository.ErrAlreadyRated):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you already rated this event"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rating failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "rating recorded"})
}

// Detail handles GET /events/:eventId.
func (h *EventHandler) Detail(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	e, err := h.Events.GetByID(c.Request().Context(), eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, e)
}
