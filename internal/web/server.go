// Package web serves the read-only dashboard: a small HTML page, a JSON API
// over projects, tasks, slots and agent runs, and Prometheus metrics.
package web

import (
	"context"
	"embed"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/internal/worktrees"
)

//go:embed static/index.html
var static embed.FS

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// WorktreeLister lists a repository's worktrees matched to tasks.
type WorktreeLister interface {
	List(ctx context.Context, repo string) ([]worktrees.Entry, error)
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string
	// Repo is the repository whose worktrees /api/worktrees lists.
	Repo string
	// Worktrees lists git worktrees. Nil makes /api/worktrees return an
	// empty list.
	Worktrees WorktreeLister
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Debug enables gin's debug mode.
	Debug bool
}

// Server is the dashboard HTTP server.
type Server struct {
	db     state.Store
	cfg    Config
	engine *gin.Engine
}

// NewServer creates the server and registers its routes.
func NewServer(db state.Store, cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{db: db, cfg: cfg, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.index)

	api := s.engine.Group("/api")
	api.GET("/projects", s.listProjects)
	api.GET("/projects/:id", s.getProject)
	api.GET("/projects/:id/tasks", s.projectTasks)
	api.GET("/projects/:id/summary", s.projectSummary)
	api.GET("/projects/:id/ready", s.readyTasks)
	api.GET("/projects/:id/slots", s.projectSlots)
	api.GET("/tasks/:id", s.getTask)
	api.GET("/tasks/:id/runs", s.taskRuns)
	api.GET("/runs", s.listRuns)
	api.GET("/worktrees", s.listWorktrees)

	if s.cfg.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[web] dashboard listening on http://%s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Printf("[web] dashboard stopped")
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[web] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
