package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cabo/internal/auth"
	"cabo/internal/config"
	"cabo/internal/models"
	"cabo/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps are the services behind the HTTP API. Optional features are
// still wired; their services report ErrDisabled.
type Deps struct {
	Villas      *service.ContentService[models.Villa, *models.Villa]
	Resorts     *service.ContentService[models.Resort, *models.Resort]
	Adventures  *service.ContentService[models.Adventure, *models.Adventure]
	Restaurants *service.ContentService[models.Restaurant, *models.Restaurant]
	Leads       *service.LeadService
	Guides      *service.GuideService
	Bookings    *service.BookingService
	Images      *service.ImageService
	Itinerary   *service.ItineraryService
	Admin       *service.AdminService
	Tokens      *auth.Tokens
	Ready       func(ctx context.Context) error
}

type Options struct {
	HTTP           config.HTTPConfig
	RateLimit      config.RateLimitConfig
	MediaDir       string
	MediaURL       string
	MaxUploadBytes int64
}

// HTTPServer serves the public site API and the admin API.
type HTTPServer struct {
	deps   Deps
	opts   Options
	engine *gin.Engine
	server *http.Server
	forms  *rateLimiter
	log    *zerolog.Logger
}

func NewHTTPServer(deps Deps, opts Options, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http").Logger()
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 15 << 20
	}

	s := &HTTPServer{
		deps:  deps,
		opts:  opts,
		forms: newRateLimiter(opts.RateLimit.FormsRPS, opts.RateLimit.FormsBurst),
		log:   &l,
	}
	s.engine = s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.HTTP.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler { return s.engine }

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, o := range origins {
		if o == "*" {
			allowCredentials = false
			break
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", requestIDHeader},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}
}

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.log), recovery(s.log), cors.New(corsConfig(s.opts.HTTP.CORSOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", s.ready)

	if s.opts.MediaDir != "" && strings.HasPrefix(s.opts.MediaURL, "/") {
		r.Static(s.opts.MediaURL, s.opts.MediaDir)
	}

	api := r.Group("/api")
	admin := api.Group("/admin", requireAdmin(s.deps.Tokens))
	limited := limitByIP(s.forms)

	registerContent(api, admin, s.deps.Villas, s.log)
	registerContent(api, admin, s.deps.Resorts, s.log)
	registerContent(api, admin, s.deps.Adventures, s.log)
	registerContent(api, admin, s.deps.Restaurants, s.log)

	api.POST("/leads", limited, s.submitLead)
	api.GET("/guides", s.listGuides)
	api.POST("/guide-submissions", limited, s.submitGuide)
	api.POST("/bookings", limited, s.createBooking)
	api.GET("/bookings/:reference", s.getBooking)
	api.POST("/stripe/webhook", s.stripeWebhook)
	api.POST("/itinerary", limited, s.generateItinerary)

	images := api.Group("/images")
	{
		images.GET("", s.listImages)
		images.GET("/:id", s.getImage)
		images.POST("", requireAdmin(s.deps.Tokens), s.uploadImage)
		images.DELETE("/:id", requireAdmin(s.deps.Tokens), s.deleteImage)
	}

	api.POST("/admin/login", limited, s.login)
	admin.GET("/me", s.me)
	admin.GET("/dashboard", s.dashboard)
	admin.GET("/leads", s.listLeads)
	admin.GET("/leads/export", s.exportLeads)
	admin.POST("/leads/resync", s.resyncLeads)
	admin.PATCH("/leads/:id", s.updateLeadStatus)
	admin.GET("/guide-submissions", s.listGuideSubmissions)
	admin.GET("/bookings", s.listBookings)
	admin.PATCH("/bookings/:id/status", s.transitionBooking)
	admin.GET("/outbox/failed", s.failedTasks)
	admin.POST("/outbox/:id/retry", s.retryTask)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})
	return r
}

func (s *HTTPServer) ready(c *gin.Context) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
