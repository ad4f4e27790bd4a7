// Package web is the HTTP surface: the inbound provider webhook, the
// automessage callback and the JSON conversation API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jbaxter/correspond/internal/conversation"
	"github.com/jbaxter/correspond/internal/outbox"
	"gorm.io/gorm"
)

// Server bundles the dependencies the handlers need.
type Server struct {
	DB             *gorm.DB
	Queue          outbox.Queue
	DefaultCountry string
	Log            *slog.Logger
}

func (s *Server) conversations() *conversation.Service {
	return &conversation.Service{DB: s.DB, Queue: s.Queue, Log: s.Log}
}

// NewRouter builds the gin engine with all routes registered. Split out
// from Start so tests can drive handlers without a listening socket.
func NewRouter(s *Server) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.Log))

	router.POST("/hooks/nexmo", s.handleNexmoHook)
	router.POST("/automessage/:id", s.handleAutoMessage)

	api := router.Group("/api")
	api.GET("/organizations/:slug/", s.handleOrganizationDetail)
	api.GET("/organizations/:slug/conversations/", s.handleConversationList)
	api.POST("/organizations/:slug/users/", s.handleUserCreate)
	api.GET("/conversations/:id/messages/", s.handleMessageList)
	api.POST("/conversations/:id/messages/", s.handleMessageCreate)
	api.POST("/conversations/:id/mark/:action", s.handleMark)
	api.PATCH("/users/:id", s.handleUserUpdate)

	return router
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Server *Server
	Port   int
}

// Start launches the HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Server == nil || opts.Server.DB == nil {
		return fmt.Errorf("web: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Server),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	opts.Server.Log.Info("http server listening", "port", opts.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
