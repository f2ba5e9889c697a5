package server

import (
	"github.com/gofiber/fiber/v2"

	"optionsTracker/internal/app"
	"optionsTracker/internal/auth"
	"optionsTracker/internal/ports"
)

// Config holds the dependencies of the HTTP boundary.
type Config struct {
	Logger    ports.Logger
	Strategy  *app.StrategyService
	Auth      *auth.Service
	JWTSecret string
}

// New builds the Fiber application with all routes registered.
func New(cfg Config) *fiber.App {
	fapp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	fapp.Use(func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		return c.Next()
	})

	h := NewHandler(cfg.Logger, cfg.Strategy, cfg.Auth)
	setupRoutes(fapp, h, cfg.JWTSecret)

	return fapp
}

func setupRoutes(fapp *fiber.App, h *Handler, jwtSecret string) {
	fapp.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	api := fapp.Group("/api")

	api.Post("/register", h.Register)
	api.Post("/login", h.Login)

	api.Post("/calculate", h.Calculate)
	api.Post("/preview", h.Preview)
	api.Get("/transactions/:userID", h.UserTransactions)

	api.Put("/stocks", h.UpsertStock)
	api.Get("/stocks/:stockID", h.Stock)

	// Audit data is privileged; a valid token is required.
	api.Get("/audit-logs/:userID", Auth(jwtSecret), h.AuditLogs)
}
