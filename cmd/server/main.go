package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/promptmarket/api/internal/database"
	"github.com/promptmarket/api/internal/handlers"
	"github.com/promptmarket/api/internal/middleware"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/pkg/cache"
	"github.com/promptmarket/api/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/promptmarket/api/docs" // Import generated docs
)

// catalogCacheTTL bounds how stale the public product listing may get.
const catalogCacheTTL = 5 * time.Minute

// @title           PromptMarket API
// @version         1.0
// @description     Marketplace backend for AI prompt packs: cookie-based sessions,
// @description     Google OAuth 2.0 sign-in, product listings, and checkout.
//
// @contact.name   API Support
// @contact.email  support@promptmarket.example
//
// @host      localhost:3001
// @BasePath  /
//
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name session_id
// @description Opaque session identifier stored in an HttpOnly cookie
func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("Starting promptmarket api")

	// Initialize PostgreSQL
	postgresDB, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer postgresDB.Close()

	if err := postgresDB.RunMigrations(context.Background(), database.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize Redis
	redisDB, err := database.NewRedisDB(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisDB.Close()

	// Initialize cache
	cacheInstance := cache.NewCache(redisDB.Client())
	productCache := cache.NewProductCache(cacheInstance, postgresDB, catalogCacheTTL)

	// Initialize services
	authService := services.NewAuthService(postgresDB, cfg.Database.QueryTimeout)
	sessionService := services.NewSessionService(redisDB, cfg.Session.TTL)
	oauthService := services.NewOAuthService(&cfg.OAuth, cfg.Session.Secret, authService, cacheInstance)
	gateway := services.NewHTTPGateway(&cfg.Payment)
	productService := services.NewProductService(postgresDB, productCache, productCache, gateway, cfg.Server.FrontendURL, cfg.Database.QueryTimeout)

	// Initialize handlers
	isProduction := cfg.Server.IsProduction()
	authHandler := handlers.NewAuthHandler(authService, oauthService, sessionService, isProduction, cfg.Server.FrontendURL, cfg.Session.CreateOnSignup)
	userHandler := handlers.NewUserHandler(authService, sessionService)
	productHandler := handlers.NewProductHandler(productService)
	healthHandler := handlers.NewHealthHandler(postgresDB, redisDB)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", middleware.MetricsHandler())

	// Swagger API documentation
	r.Get("/api/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/api/docs/doc.json"),
	))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints (rate limited)
			r.Group(func(r chi.Router) {
				r.Use(rateLimiter.Limit("auth"))
				r.Post("/signup", authHandler.Signup)
				r.Post("/login", authHandler.Login)
				// Both forms are published; /google is what API docs
				// historically advertised, /google/login matches the
				// rest of the auth surface.
				r.Get("/google", authHandler.GoogleLogin)
				r.Get("/google/login", authHandler.GoogleLogin)
				r.Get("/google/callback", authHandler.GoogleCallback)
			})

			// Logout is deliberately outside SessionAuth: destroying a
			// session that no longer exists still answers 200.
			r.Delete("/logout", authHandler.Logout)

			// Protected endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.SessionAuth(sessionService))
				r.Get("/session", authHandler.Session)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.SessionAuth(sessionService))
			r.Put("/{id}", userHandler.UpdateProfile)
		})

		r.Route("/products", func(r chi.Router) {
			// Public catalog
			r.Get("/", productHandler.List)

			// Protected endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.SessionAuth(sessionService))
				r.Get("/my-products", productHandler.MyProducts)
				r.Post("/register", productHandler.Register)
				r.Post("/purchase", productHandler.Purchase)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped gracefully")
}
