package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chathub/internal/config"
	"chathub/internal/db"
	"chathub/internal/events"
	"chathub/internal/handlers"
	"chathub/internal/hub"
	"chathub/internal/metrics"
	"chathub/internal/preview"
	"chathub/internal/services"
	"chathub/internal/utils"
	"chathub/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Deps are the collaborators NewServer wires into routes.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Hub      *hub.Hub
	Accounts *services.UserService
	Messages *services.ChatService
	Metrics  *metrics.Metrics
}

// NewServer builds the Fiber app with every route.
func NewServer(d Deps) *fiber.App {
	v := validator.New()

	app := fiber.New(fiber.Config{
		AppName:      "chathub",
		BodyLimit:    1 << 20,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: d.Config.CORSOrigins()}))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	api := app.Group("/api")

	// Public Routes
	api.Post("/register", handlers.RegisterHandler(d.Accounts, v, d.Logger))
	api.Post("/login", handlers.LoginHandler(d.Accounts, v, d.Logger))
	api.Post("/refresh", handlers.RefreshHandler(d.Accounts))

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware(d.Accounts))
	protected.Get("/me", handlers.MeHandler(d.Accounts))
	protected.Get("/users", handlers.UsersHandler(d.Accounts, d.Hub))
	protected.Get("/messages", handlers.MessagesHandler(d.Messages, d.Config.HistoryLimit))
	protected.Patch("/messages/:id/react", handlers.ReactHandler(d.Hub, v))

	// WebSocket Route
	// Note: Middleware order matters. WSUpgradeMiddleware rejects plain
	// HTTP, AuthMiddleware answers 401 before the upgrade.
	ws := handlers.NewWSHandler(d.Hub, v, d.Metrics, d.Logger, handlers.WSConfig{
		MaxMessageBytes: d.Config.MaxMessageBytes,
		RateLimit:       d.Config.RateLimit,
		RateBurst:       d.Config.RateBurst,
		SendBuffer:      d.Config.SendBuffer,
	})
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware(d.Accounts))
	app.Get("/ws", ws.Handler())

	return app
}

func Run() {
	// Load Env
	envErr := utils.LoadEnv()
	cfg := config.Load()

	log := utils.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat())
	slog.SetDefault(log)
	if envErr != nil {
		log.Warn("Skipping .env file", "error", envErr)
	}
	log.Info("Starting chathub", "environment", cfg.Environment, "port", cfg.Port)

	ctx := context.Background()

	// Init DB
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Error("Failed to prepare schema", "error", err)
		os.Exit(1)
	}

	m := metrics.New(true)

	// Link previews, cached in Redis when configured
	opts := []preview.Option{
		preview.WithTimeout(cfg.PreviewTimeout),
		preview.WithLogger(log.With("component", "preview")),
		preview.WithMetrics(m),
	}
	if cfg.RedisAddr != "" {
		cache, err := preview.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("Redis unavailable, link previews are not cached", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer cache.Close()
			opts = append(opts, preview.WithCache(cache))
			log.Info("Redis connection successful", "addr", cfg.RedisAddr)
		}
	}
	enricher := preview.New(preview.NewHTTPFetcher(preview.FetcherConfig{}), opts...)

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, log.With("component", "kafka"))
		log.Info("Publishing domain events", "brokers", cfg.KafkaBrokers)
	}
	defer publisher.Close()

	// Services
	userService := services.NewUserService(pool, cfg.JWTSecret)
	chatService := services.NewChatService(pool)

	h := hub.New(hub.Options{
		Store:        chatService,
		Enricher:     enricher,
		Publisher:    publisher,
		Metrics:      m,
		Logger:       log.With("component", "hub"),
		HistoryLimit: cfg.HistoryLimit,
	})
	defer h.Close()

	app := NewServer(Deps{
		Config:   cfg,
		Logger:   log,
		Hub:      h,
		Accounts: userService,
		Messages: chatService,
		Metrics:  m,
	})

	// Start Server
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("Server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Info("Gracefully shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("Shutdown incomplete", "error", err)
	}
	log.Info("Server shutdown complete")
}
