package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cmdgate/cmdgate/internal/adapter/store"
	"github.com/cmdgate/cmdgate/internal/handler"
	"github.com/cmdgate/cmdgate/internal/middleware"
	"github.com/cmdgate/cmdgate/internal/policy"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/cmdgate/cmdgate/internal/service"
	"github.com/cmdgate/cmdgate/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Command Gateway",
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"seed_rules", cfg.SeedRules,
	)

	// ── Storage ──────────────────────────────────────────────────────────
	var st port.Store
	switch cfg.StoreDriver {
	case "memory":
		st = store.NewMemoryStore()
	default:
		pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		st = pgStore
	}
	defer st.Close()

	// ── Services ─────────────────────────────────────────────────────────
	authService := service.NewAuthService(st, cfg.DefaultCredits)
	policyService := service.NewPolicyService(st)
	gatewayService := service.NewGatewayService(st, policy.NewEvaluator())

	// ── Seeding ──────────────────────────────────────────────────────────
	ctx := context.Background()
	if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminCredits); err != nil {
		slog.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}
	if cfg.SeedRules {
		if err := policyService.SeedDefaults(ctx); err != nil {
			slog.Error("failed to seed default rules", "error", err)
			os.Exit(1)
		}
	}

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAPIKey},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	// ── Public Routes ────────────────────────────────────────────────────
	authHandler := handler.NewAuthHandler(authService)
	public := app.Group("/api/v1")
	authHandler.Register(public)

	// Health check
	public.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	api := app.Group("/api/v1", middleware.APIKeyAuth(authService))
	authHandler.RegisterProtected(api)

	commandHandler := handler.NewCommandHandler(gatewayService)
	commandHandler.Register(api)

	// ── Admin Routes ─────────────────────────────────────────────────────
	admin := api.Group("", middleware.RequireAdmin)

	ruleHandler := handler.NewRuleHandler(policyService)
	ruleHandler.Register(admin)

	auditHandler := handler.NewAuditHandler(st)
	auditHandler.Register(admin)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
