package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopify-gateway/internal/application"
	"shopify-gateway/internal/application/webhook_handlers"
	"shopify-gateway/internal/config"
	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/api"
	"shopify-gateway/internal/infrastructure/encryption"
	"shopify-gateway/internal/infrastructure/pubsub"
	"shopify-gateway/internal/infrastructure/ratelimit"
	"shopify-gateway/internal/infrastructure/repository"
	"shopify-gateway/internal/infrastructure/session"
	shopifyinfra "shopify-gateway/internal/infrastructure/shopify"
	"shopify-gateway/internal/infrastructure/signature"

	securitymiddleware "shopify-gateway/internal/infrastructure/middleware"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Connect to MongoDB
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.MongoDatabase)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize infrastructure (implementations)
	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	shopRepo := repository.NewMongoShopRepository(db)
	auditSink := repository.NewMongoAuditSink(db, logger)

	sessionStore := session.NewRedisStore(redisClient, logger)
	stateStore := session.NewRedisStateStore(redisClient)

	engine := signature.NewEngine(cfg.APISecret)
	webhookVerifier := signature.NewWebhookVerifier(cfg.APISecret)

	limiter := ratelimit.NewLimiter(redisClient, ratelimit.Config{
		Window:  cfg.RateLimitWindow,
		Max:     cfg.RateLimitMax,
		Enabled: true,
	}, logger)

	platformClient := shopifyinfra.NewClient(cfg.APIKey, cfg.APISecret, logger)

	// Initialize application services
	authService := application.NewAuthService(
		stateStore,
		sessionStore,
		shopRepo,
		platformClient,
		encryptionService,
		engine,
		auditSink,
		logger,
		application.AuthServiceConfig{
			AppURL:     cfg.AppURL,
			Scopes:     domain.ScopesForPlan(cfg.Plan),
			SessionTTL: cfg.SessionTTL,
			StateTTL:   cfg.StateTTL,
		},
	)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(sessionStore, shopRepo, logger))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewDiscountHandler(logger))

	// Initialize webhook pub/sub and the audit observer consuming it
	webhookPubSub := pubsub.NewWebhookPubSub(logger)
	go application.NewWebhookAuditObserver(auditSink, logger).Run(context.Background(), webhookPubSub)

	authHandler := api.NewAuthHandler(authService, sessionStore, logger)
	webhookHandler := api.NewWebhookHandler(webhookVerifier, webhookDispatcher, shopRepo, webhookPubSub, logger)
	proxyHandler := api.NewProxyHandler(engine, shopRepo, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(limiter.Middleware(ratelimit.TenantKey))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// OAuth routes
	r.Get("/auth/login", authHandler.Login)
	r.Get("/auth/callback", authHandler.Callback)
	r.Post("/auth/token", authHandler.Token)

	// Webhook endpoints
	r.Post("/webhooks/register", authHandler.RegisterWebhooks)
	r.Post("/webhooks/*", webhookHandler.Handle)

	// App proxy endpoint
	r.Get("/proxy/*", proxyHandler.Handle)

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}
