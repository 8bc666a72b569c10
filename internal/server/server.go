// Package server exposes the ticket passthrough API and the top-issues
// report over HTTP.
package server

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"issueboard/internal/config"
	"issueboard/internal/digest"
	"issueboard/internal/domain"
)

//go:embed web/index.html
var indexHTML []byte

// TicketStore is satisfied by *fusion.Client.
type TicketStore interface {
	ListRecords(ctx context.Context) (json.RawMessage, error)
	FetchAllRecords(ctx context.Context) ([]domain.RawRecord, error)
	CreateRecord(ctx context.Context, fields json.RawMessage) (json.RawMessage, error)
	UpdateRecord(ctx context.Context, recordID string, fields json.RawMessage) (json.RawMessage, error)
	DeleteRecord(ctx context.Context, recordID string) (json.RawMessage, error)
}

// DigestRunner produces an on-demand digest. Nil disables POST /api/reports.
type DigestRunner func(ctx context.Context, now time.Time) (digest.Result, error)

type Server struct {
	cfg     config.Config
	tickets TicketStore
	db      *sql.DB
	digest  DigestRunner
}

func New(cfg config.Config, tickets TicketStore, db *sql.DB, runner DigestRunner) *Server {
	return &Server{cfg: cfg, tickets: tickets, db: db, digest: runner}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/tickets", s.handleListTickets)
		api.POST("/tickets", s.handleCreateTicket)
		api.PATCH("/tickets/:id", s.handleUpdateTicket)
		api.DELETE("/tickets/:id", s.handleDeleteTicket)

		api.GET("/top-issues", s.handleTopIssues)

		api.GET("/reports", s.handleListReports)
		api.POST("/reports", s.handleRunDigest)
		api.GET("/reports/:id", s.handleGetReport)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})
	return r
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("http request")
	}
}

func badGateway(c *gin.Context, err error) {
	log.WithError(err).Warn("upstream request failed")
	c.JSON(http.StatusBadGateway, gin.H{"message": err.Error()})
}
