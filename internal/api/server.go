package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"ridewatch/internal/api/handlers"
	"ridewatch/internal/api/middleware"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// Config controls the HTTP listener.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8980"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

type Server struct {
	cfg    Config
	log    logx.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg Config, log logx.Logger, store *storage.Store) *Server {
	cfg = cfg.withDefaults()
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	healthHandler := handlers.NewHealthHandler(store, log)
	productHandler := handlers.NewProductHandler(store, log)
	trackerHandler := handlers.NewTrackerHandler(store, log)
	subscriberHandler := handlers.NewSubscriberHandler(store, log)
	eventHandler := handlers.NewEventHandler(store, log)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:slug", productHandler.Get)
		}

		trackers := v1.Group("/trackers")
		{
			trackers.POST("", trackerHandler.Create)
			trackers.POST("/:token/confirm", trackerHandler.Confirm)
			trackers.DELETE("/:token", trackerHandler.Delete)
		}

		subscribers := v1.Group("/subscribers")
		{
			subscribers.POST("", subscriberHandler.Create)
			subscribers.POST("/:token/confirm", subscriberHandler.Confirm)
			subscribers.DELETE("/:token", subscriberHandler.Delete)
		}

		events := v1.Group("/events")
		{
			events.POST("/view", eventHandler.View)
			events.POST("/compare", eventHandler.Compare)
		}
	}

	return &Server{cfg: cfg, log: log, router: router}
}

// Handler returns the full handler chain (CORS wrapping the router), used by
// Start and by tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(s.router)
}

// Start blocks in ListenAndServe until Stop or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.log.Info("api listening", logx.String("addr", s.cfg.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info("api shutting down")
	return s.server.Shutdown(ctx)
}
