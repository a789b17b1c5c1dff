// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/handler"
	"github.com/iliyamo/event-registration/internal/middleware"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
)

// Deps carries everything RegisterRoutes needs to build the route table.
type Deps struct {
	Auth      *handler.AuthHandler
	Events    *handler.EventHandler
	Reports   *handler.ReportHandler
	Users     *repository.UserRepo
	Blacklist middleware.Blacklist
	JWTSecret string
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts all endpoints on e.  Public auth endpoints sit
// behind the rate limiter; everything else requires a valid, non-revoked
// access token.  Event creation additionally requires the organizer or
// admin role.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Public, rate limited.
	e.POST("/register", d.Auth.Register, d.RateLimit)
	e.POST("/login", d.Auth.Login, d.RateLimit)
	e.POST("/auth/refresh", d.Auth.Refresh, d.RateLimit)

	// Everything below requires authentication.
	auth := e.Group("", middleware.JWTAuth(d.JWTSecret, d.Blacklist))

	auth.GET("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me)

	auth.GET("/events", d.Reports.List)
	auth.GET("/events/aggregate", d.Reports.Aggregate)
	auth.GET("/events/capacity/:eventId", d.Reports.CapacityFill)
	auth.GET("/events/created/:userId", d.Reports.CreatedBy)
	auth.GET("/events/registered/:userId", d.Reports.RegisteredBy)

	auth.POST("/events/create", d.Events.Create,
		middleware.RequireRole(d.Users, model.RoleOrganizer, model.RoleAdmin))
	auth.POST("/events/register/:eventId", d.Events.Register)
	auth.POST("/events/:eventId/rating", d.Events.Rate)
	auth.GET("/events/:eventId", d.Events.Detail)
	auth.DELETE("/events/:eventId", d.Events.Cancel)
}
