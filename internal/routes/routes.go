package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/CodeXPrim8/BU/internal/account"
	"github.com/CodeXPrim8/BU/internal/config"
	"github.com/CodeXPrim8/BU/internal/eventsink"
	"github.com/CodeXPrim8/BU/internal/gateway"
	"github.com/CodeXPrim8/BU/internal/ledger"
	"github.com/CodeXPrim8/BU/internal/middleware"
	"github.com/CodeXPrim8/BU/internal/policy"
	"github.com/CodeXPrim8/BU/internal/profile"
	"github.com/CodeXPrim8/BU/internal/spend"
	"github.com/CodeXPrim8/BU/internal/wallet"
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
	// The policy table is static; a hole in it is a programming error caught
	// before the first request.
	if err := policy.Validate(); err != nil {
		return err
	}

	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Backends: Postgres when configured, in-memory in dev.
	var store ledger.Store
	var accountRepo account.Repository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		accountRepo = account.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		accountRepo = account.NewMemoryRepository()
	}

	sink := eventsink.NewLogSink(d.Logger)
	accountSvc := account.NewService(accountRepo, store, sink)
	engine := ledger.NewEngine(store, sink, d.Logger)
	balances := ledger.NewBalanceService(store)
	history := ledger.NewHistory(store, accountSvc)

	walletSvc := wallet.NewService(accountSvc, engine, balances, history)
	spendSvc := spend.NewService(accountSvc, engine)

	walletHandler := wallet.NewHandler(walletSvc)
	spendHandler := spend.NewHandler(spendSvc)
	profileHandler := profile.NewHandler(accountSvc)
	gatewayHandler := gateway.NewHandler(engine, d.Cfg.GatewaySecret, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes: account opening and the gateway callback. The callback
	// is authenticated by its HMAC signature, not a bearer token, and its
	// contract carries no Idempotency-Key; the gateway reference deduplicates
	// it at the store level instead.
	api.Post("/accounts", profileHandler.Register)
	api.Post("/gateway/confirm", gatewayHandler.Confirm)

	// Protected routes. Idempotency sits behind Auth so stored responses are
	// scoped to the authenticated account.
	protected := api.Group("", middleware.Auth(d.Cfg.JWTSecret))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterProfileRoutes(protected, profileHandler)
	RegisterWalletRoutes(protected, walletHandler)
	RegisterSpendRoutes(protected, spendHandler)

	return nil
}
