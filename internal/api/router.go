package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/searchlens/backend/internal/ai"
	"github.com/searchlens/backend/internal/api/handlers"
	"github.com/searchlens/backend/internal/auth"
	"github.com/searchlens/backend/internal/cache"
	"github.com/searchlens/backend/internal/config"
	"github.com/searchlens/backend/internal/credits"
	"github.com/searchlens/backend/internal/database"
	"github.com/searchlens/backend/internal/gsc"
	"github.com/searchlens/backend/internal/middleware"
	"github.com/searchlens/backend/internal/ratelimit"
	"github.com/searchlens/backend/internal/repository"
	"github.com/searchlens/backend/internal/service"
)

// NewRouter creates and configures the main router
func NewRouter(cfg *config.Config, db *database.DB, redisCache *cache.Redis) *chi.Mux {
	r := chi.NewRouter()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	insightRepo := repository.NewInsightRepository(db)

	// Auth services
	jwtService := auth.NewJWTService(cfg.JWTSecret, 24*time.Hour)
	authMiddleware := auth.NewMiddleware(jwtService, userRepo)

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Timing)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORSWithOrigins(cfg.CORSOrigins))

	// Search Console access layer: token lifecycle, response cache, throttle.
	oauthClient := gsc.NewOAuthClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleTokenURL)
	tokenCache := gsc.NewTokenCache(redisCache)
	tokenManager := gsc.NewTokenManager(userRepo, tokenCache, oauthClient)
	responseCache := gsc.NewResponseCache(redisCache)
	limiter := ratelimit.NewLimiter(redisCache)
	gscClient := gsc.NewClient(tokenManager, responseCache, limiter, gsc.ClientOptions{
		BaseURL:    cfg.GSCBaseURL,
		Timeout:    cfg.UpstreamTimeout,
		RateLimit:  cfg.GSCRateLimit,
		RateWindow: cfg.GSCRateWindow,
	})

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/webmasters.readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: cfg.GoogleTokenURL,
		},
	}

	// Credits and insights
	ledger := credits.NewLedger(userRepo)
	aiClient := ai.NewClientWithOptions(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.AITimeout)
	insightService := service.NewInsightService(insightRepo, ledger, aiClient, cfg.OpenAIModel)

	// Initialize handlers
	healthHandler := handlers.NewHealthChecker(db, redisCache)
	authHandler := handlers.NewAuthHandler(userRepo, jwtService, ledger)
	gscHandler := handlers.NewGSCHandler(gscClient, oauthClient, oauthConfig, tokenCache, userRepo, redisCache)
	insightsHandler := handlers.NewInsightsHandler(gscClient, insightService, insightRepo)
	creditsHandler := handlers.NewCreditsHandler(ledger, userRepo)

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", handlers.LivenessProbe)
	r.Get("/health/ready", healthHandler.ReadinessProbe)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Everything else requires a valid session
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/user/me", authHandler.GetCurrentUser)
			r.Get("/credits", creditsHandler.Balance)

			r.Route("/gsc", func(r chi.Router) {
				r.Get("/connect", gscHandler.Connect)
				r.Delete("/disconnect", gscHandler.Disconnect)
				r.Get("/sites", gscHandler.ListSites)
				r.Post("/analytics", gscHandler.SearchAnalytics)
			})

			r.Route("/insights", func(r chi.Router) {
				r.Post("/generate", insightsHandler.Generate)
				r.Get("/", insightsHandler.List)
				r.Get("/today", insightsHandler.Get)
			})
		})

		// The OAuth callback arrives from Google without a session token; the
		// state parameter carries the user binding.
		r.Get("/gsc/callback", gscHandler.Callback)
	})

	return r
}
