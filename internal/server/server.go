package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/TobiSchelling/moodtrack/internal/coach"
	"github.com/TobiSchelling/moodtrack/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP API and dashboard.
type Server struct {
	coach  *coach.Coach
	cfg    *config.Config
	logger *zap.Logger
	pages  map[string]*template.Template
	engine *gin.Engine
}

// New creates a new Server.
func New(co *coach.Coach, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"derefTime": func(t *time.Time) time.Time {
			if t == nil {
				return time.Time{}
			}
			return *t
		},
		"stars": func(n *int) string {
			if n == nil {
				return "unrated"
			}
			return fmt.Sprintf("%d/5", *n)
		},
		"date": func(t time.Time) string {
			return t.In(co.Location()).Format("Mon 02 Jan 15:04")
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"dashboard.html", "events.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		coach:  co,
		cfg:    cfg,
		logger: logger,
		pages:  pages,
		engine: gin.New(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), requestLogger(s.logger))
	if origins := s.cfg.Server.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	staticSub, _ := fs.Sub(staticFS, "static")
	r.StaticFS("/static", http.FS(staticSub))
	r.GET("/healthz", s.handleHealth)

	auth := authenticate(s.cfg.JWTSecret(), s.cfg.User.ID)

	r.GET("/", auth, s.handleDashboard)
	r.GET("/events", auth, s.handleEvents)

	api := r.Group("/api", auth)
	api.POST("/checkins", s.handleCheckin)
	api.GET("/checkins/:id/directive", s.handleDirective)
	api.POST("/advice/:id/feedback", s.handleFeedback)
	api.GET("/analytics", s.handleAnalytics)
	api.GET("/analytics/export", s.handleExport)
	api.GET("/stats", s.handleStats)
	api.GET("/traits", s.handleGetTraits)
	api.PUT("/traits", s.handlePutTraits)
	api.POST("/enhancement/reset", s.handleResetEnhancement)
}

func (s *Server) render(c *gin.Context, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", zap.String("template", name))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.logger.Error("rendering template", zap.String("template", name), zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Serve listens on the configured port until ctx is cancelled.
func Serve(ctx context.Context, co *coach.Coach, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv, err := New(co, cfg, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()
	logger.Info("server listening", zap.String("url", "http://"+addr), zap.Bool("auth", cfg.JWTSecret() != nil))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
