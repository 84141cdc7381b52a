package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/http/handlers"
	"github.com/spec-kit/ticket-workflow/internal/auth"
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. The role gates here keep obviously
// wrong callers off a route; the services enforce the full rules.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.Create)
	tickets.Get("/", auth.RequireRole(), cfg.Tickets.List)
	tickets.Get("/:id", auth.RequireRole(), cfg.Tickets.Get)
	tickets.Post("/:id/messages", auth.RequireRole(), cfg.Tickets.AddMessage)
	tickets.Put("/:id/status", auth.RequireRole(domain.RoleSupport, domain.RoleAdmin), cfg.Tickets.UpdateStatus)
	tickets.Put("/:id/assign", auth.RequireRole(domain.RoleSupport, domain.RoleAdmin), cfg.Tickets.Assign)
	tickets.Put("/:id/rating", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.SubmitRating)
}
