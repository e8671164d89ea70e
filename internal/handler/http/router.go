package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/pkg/health"
	"github.com/utafrali/folio/pkg/middleware"
)

// Services groups the application services the router dispatches to.
type Services struct {
	Books         *service.BookService
	Reviews       *service.ReviewService
	Moderation    *service.ModerationService
	Appeals       *service.AppealService
	Notifications *service.NotificationService
}

// RouterConfig holds the cross-cutting dependencies of the router.
type RouterConfig struct {
	ServiceName    string
	Auth           middleware.TokenValidator
	Health         *health.Handler
	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler
	CORS           middleware.CORSConfig
	// WriteLimiter throttles review posting and appeal filing. Nil disables it.
	WriteLimiter   *middleware.RateLimiter
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(svcs Services, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware(cfg.ServiceName))
	}

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", cfg.MetricsHandler)

	auth := middleware.Auth(cfg.Auth)
	limited := cfg.WriteLimiter.Middleware
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	bookHandler := NewBookHandler(svcs.Books, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)
	moderationHandler := NewModerationHandler(svcs.Moderation, logger)
	appealHandler := NewAppealHandler(svcs.Appeals, logger)
	notificationHandler := NewNotificationHandler(svcs.Notifications, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))

		r.Route("/books", func(r chi.Router) {
			r.With(auth).Post("/", bookHandler.CreateBook)
			r.Get("/{bookId}", bookHandler.GetBook)

			r.Get("/{bookId}/reviews", reviewHandler.ListReviews)
			r.With(auth, limited).Post("/{bookId}/reviews", reviewHandler.CreateReview)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Put("/{bookId}/reviews/{reviewId}", moderationHandler.EditReview)
				r.Delete("/{bookId}/reviews/{reviewId}", moderationHandler.DeleteReview)
				r.Get("/{bookId}/moderation-log", moderationHandler.ListModerationLog)
			})
		})

		r.Route("/support", func(r chi.Router) {
			r.Use(auth)
			r.With(limited).Post("/appeal", appealHandler.FileAppeal)
			r.With(adminOnly).Get("/appeals", appealHandler.ListAppeals)
			r.With(adminOnly).Patch("/appeals/{appealId}", appealHandler.ResolveAppeal)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", notificationHandler.ListNotifications)
			r.Put("/{notificationId}/read", notificationHandler.MarkAsRead)
		})
	})

	return r
}
