package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
)

// ReportHandler serves the read-only report endpoints: event listings,
// per-creator and per-attendee views, capacity fill and the aggregate
// statistics.  None of its methods mutate state.
type ReportHandler struct {
	Events *repository.EventRepo
	Users  *repository.UserRepo
}

func NewReportHandler(events *repository.EventRepo, users *repository.UserRepo) *ReportHandler {
	if events == nil || users == nil {
		panic("nil repository passed to NewReportHandler")
	}
	return &ReportHandler{Events: events, Users: users}
}

// List handles GET /events.  Admins and organizers see every event; other
// users see only the events they created.  Each entry carries the name and
// the attendee count, nothing per-attendee.
func (h *ReportHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var createdBy *uint64
	if u.Role != model.RoleAdmin && u.Role != model.RoleOrganizer {
		createdBy = &uid
	}
	summaries, err := h.Events.Summaries(c.Request().Context(), createdBy)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, summaries)
}

// allowSelfOrAdmin rejects callers reading another user's data unless they
// are an admin.
func (h *ReportHandler) allowSelfOrAdmin(c echo.Context, target uint64) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if uid == target {
		return nil
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if err != nil || u.Role != model.RoleAdmin {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not authorized"})
	}
	return nil
}

// CreatedBy handles GET /events/created/:userId.
func (h *ReportHandler) CreatedBy(c echo.Context) error {
	target, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || target == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if resp := h.allowSelfOrAdmin(c, target); resp != nil {
		return resp
	}
	events, err := h.Events.ListByCreator(c.Request().Context(), target)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, events)
}

// RegisteredBy handles GET /events/registered/:userId.  Results come back
// sorted ascending by event date.
func (h *ReportHandler) RegisteredBy(c echo.Context) error {
	target, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || target == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if resp := h.allowSelfOrAdmin(c, target); resp != nil {
		return resp
	}
	events, err := h.Events.ListByAttendee(c.Request().Context(), target)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, events)
}

// CapacityFill handles GET /events/capacity/:eventId.
func (h *ReportHandler) CapacityFill(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	pct, err := h.Events.CapacityFill(c.Request().Context(), eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		// Includes the zero-capacity case, which creation forbids.
		log.Printf("capacity fill for event %d: %v", eventID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"percentage_filled": pct})
}

// Aggregate handles GET /events/aggregate.
func (h *ReportHandler) Aggregate(c echo.Context) error {
	stats, err := h.Events.Aggregate(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, stats)
}
