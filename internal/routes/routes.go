package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cambio-fx/cambio_fx/internal/auth"
	"github.com/cambio-fx/cambio_fx/internal/config"
	"github.com/cambio-fx/cambio_fx/internal/exchange"
	"github.com/cambio-fx/cambio_fx/internal/identity"
	"github.com/cambio-fx/cambio_fx/internal/middleware"
	"github.com/cambio-fx/cambio_fx/internal/notification"
	"github.com/cambio-fx/cambio_fx/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories fall back to in-memory implementations without a database.
	var walletRepo wallet.Repository
	var identityRepo identity.Repository
	var offerRepo exchange.OfferRepository
	var txRepo exchange.TransactionRepository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		offerRepo = exchange.NewPostgresOfferRepository(d.DB)
		txRepo = exchange.NewPostgresTransactionRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
		offerRepo = exchange.NewMemoryOfferRepository()
		txRepo = exchange.NewMemoryTransactionRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc)
	exchangeSvc := exchange.NewService(identityRepo, walletRepo, offerRepo, txRepo, notifier, d.Logger)
	exchangeHandler := exchange.NewHandler(exchangeSvc, d.Logger)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("request_id").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identitySvc, walletRepo, d.Logger)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes. Idempotency sits behind the JWT guard so replay keys
	// are scoped to the authenticated user.
	guards := []fiber.Handler{middleware.JWTAuth(d.Cfg, identityRepo)}
	if d.Cache != nil {
		guards = append(guards, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	protected := api.Group("", guards...)
	protected.Post("/auth/logout", authHandler.Logout)
	RegisterWalletMeRoute(protected, walletRepo, identityRepo, exchangeSvc)
	// Profile endpoint
	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		user, err := identityRepo.FindByID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":       user.ID,
			"email":         user.Email,
			"name":          user.Name,
			"token_version": user.TokenVersion,
			"created_at":    user.CreatedAt,
		})
	})
	RegisterExchangeRoutes(protected, exchangeHandler)

	return nil
}

// RegisterExchangeRoutes wires offer submission, listing, settlement and history endpoints.
func RegisterExchangeRoutes(r fiber.Router, h *exchange.Handler) {
	offers := r.Group("/offers")
	offers.Post("", h.Submit)
	offers.Get("", h.List)
	offers.Delete("/:offerId", h.Cancel)
	offers.Post("/:offerId/accept", h.Accept)
	r.Get("/transactions", h.Transactions)
}
