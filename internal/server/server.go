// Package server exposes the bridge over HTTP for hosts that integrate via
// REST instead of linking the library.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rezonia/jofotara-bridge/internal/config"
	"github.com/rezonia/jofotara-bridge/internal/model"
	"github.com/rezonia/jofotara-bridge/internal/qr"
	"github.com/rezonia/jofotara-bridge/internal/reconcile"
	"github.com/rezonia/jofotara-bridge/internal/store"
	"github.com/rezonia/jofotara-bridge/internal/transport"
)

// Config holds server configuration
type Config struct {
	Address      string
	Settings     config.Settings
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config     *Config
	router     *gin.Engine
	store      *store.MemoryStore
	reconciler *reconcile.Reconciler
	logger     *zap.Logger
}

// NewServer creates a new API server over the given invoice store.
func NewServer(cfg *Config, st *store.MemoryStore) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	logger := zap.NewNop()
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	}

	client := transport.NewClient(cfg.Settings,
		transport.WithLogger(logger),
		transport.WithAuditSink(st),
	)
	fetcher := qr.NewFetcher(qr.WithLogger(logger))
	reconciler := reconcile.NewReconciler(cfg.Settings, st, client,
		reconcile.WithAttachmentStore(st),
		reconcile.WithQRFetcher(fetcher),
		reconcile.WithLogger(logger),
	)

	s := &Server{
		config:     cfg,
		router:     router,
		store:      st,
		reconciler: reconciler,
		logger:     logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/invoices/:id", s.handleGetInvoice)
		v1.POST("/invoices/:id/send", s.handleSend)
		v1.POST("/invoices/:id/qr", s.handleAttachQR)
		v1.POST("/retry", s.handleRetry)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	inv, err := s.store.Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) handleSend(c *gin.Context) {
	id := c.Param("id")

	if _, err := s.store.Invoice(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.reconciler.Send(c.Request.Context(), id)
	if err != nil {
		status := http.StatusBadGateway

		var cfgErr *model.ConfigError
		var trErr *model.TransformError
		switch {
		case errors.As(err, &cfgErr):
			status = http.StatusBadRequest
		case errors.As(err, &trErr):
			status = http.StatusUnprocessableEntity
		}

		body := gin.H{"error": err.Error()}
		if resp != nil {
			// The authority's rejection body is data for the caller.
			body["response"] = resp.Fields
		}
		c.JSON(status, body)
		return
	}

	inv, ferr := s.store.Invoice(c.Request.Context(), id)
	if ferr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": ferr.Error()})
		return
	}

	c.JSON(http.StatusOK, SendResponse{
		Status:   string(inv.Status),
		UUID:     inv.UUID,
		QR:       inv.QR,
		Response: resp.Fields,
	})
}

func (s *Server) handleAttachQR(c *gin.Context) {
	url, err := s.reconciler.AttachQRImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, QRResponse{FileURL: url})
}

func (s *Server) handleRetry(c *gin.Context) {
	if err := s.reconciler.RetryPending(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
