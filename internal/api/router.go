package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/agrotrade/chat/internal/api/middleware"
	"github.com/agrotrade/chat/internal/handlers"
	"github.com/agrotrade/chat/internal/relay"
	"github.com/agrotrade/chat/internal/store"
)

// RouterConfig carries the optional pieces of the HTTP surface.
type RouterConfig struct {
	RateLimitWhitelist []string
	AutoBlockEnabled   bool
}

// NewRouter creates and configures the HTTP router. redisStore may be nil;
// rate limiting and search are skipped without it.
func NewRouter(logger zerolog.Logger, db store.DataStore, redisStore *store.RedisStore, hub *relay.Hub, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting needs Redis; without it the API runs unthrottled.
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - the marketplace frontend and bots call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, redisStore, hub, logger)
	ws := relay.NewHandler(hub, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// Live chat relay
	r.Handle("/ws", ws)

	// Durable message log
	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.AppendMessage)

		r.Get("/chats/buyer", h.BuyerChats)
		r.Get("/chats/seller", h.SellerChats)

		r.Get("/users/{email}", h.GetUser)

		r.Get("/find", h.Search)
		r.Get("/stats", h.Stats)
	})

	return r
}
