// Package server exposes the conversation archive over the /api/fs JSON
// routes and runs chat sessions over websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"RagChat/internal/archive"
	"RagChat/internal/chatbot"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the archive and to chat sessions.
type Server struct {
	archive  archive.Archive
	deps     chatbot.Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// New builds the router. deps supplies the collaborators shared by every
// chat session; each websocket connection gets its own transcript and
// document selection.
func New(arch archive.Archive, deps chatbot.Deps, allowedOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		archive: arch,
		deps:    deps,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
	s.engine = s.setupRouter(allowedOrigins)
	return s
}

func (s *Server) setupRouter(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	headers := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		headers.AllowAllOrigins = true
	} else {
		headers.AllowOrigins = allowedOrigins
	}
	headers.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	headers.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	headers.ExposeHeaders = []string{"Content-Length"}
	r.Use(cors.New(headers))

	api := r.Group("/api")
	{
		fs := api.Group("/fs")
		{
			fs.POST("/get-convos", s.listConversations)
			fs.POST("/get-convo-by-path", s.fetchConversation)
			fs.POST("/persist-convo", s.persistConversation)
			fs.POST("/delete-convo-by-path", s.deleteConversation)
		}
		api.GET("/chat/ws", s.chatSocket)
	}
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
