package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// ReviewService is the part of review.Service the handlers drive.
type ReviewService interface {
	GetScene(ctx context.Context, id string) (*review.Scene, error)
	ListScenes(ctx context.Context) ([]*review.Scene, error)
	ListTags(ctx context.Context) ([]*review.Tag, error)
	GetJob(ctx context.Context, id string) (*review.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*review.Job, error)
	PendingReviewCount(ctx context.Context) (int, error)

	SyncScene(ctx context.Context, sceneID string) (*review.Scene, error)
	QueueSync(ctx context.Context, sceneID string) (*review.Job, error)
	QueueComplete(ctx context.Context, sceneID string) (*review.Job, error)

	Timeline(ctx context.Context, sceneID string, filter timeline.Filter) (*review.SceneTimeline, error)
	Navigate(ctx context.Context, sceneID string, filter timeline.Filter, req timeline.Request) (timeline.Result, error)
	Readiness(ctx context.Context, sceneID string) (*review.Readiness, error)
	CompleteScene(ctx context.Context, sceneID string) (*review.Completion, error)
	History(ctx context.Context, sceneID string, limit int) ([]*review.Event, error)

	Confirm(ctx context.Context, markerID string) (*review.Marker, error)
	Reject(ctx context.Context, markerID string) (*review.Marker, error)
	Reset(ctx context.Context, markerID string) (*review.Marker, error)
	UpdateMarker(ctx context.Context, markerID string, patch review.MarkerPatch) (*review.Marker, error)
	Split(ctx context.Context, markerID string, t float64) (*review.Marker, *review.Marker, error)
	Duplicate(ctx context.Context, markerID string) (*review.Marker, error)
	CreateManual(ctx context.Context, sceneID string, in review.NewMarker) (*review.Marker, error)
	Delete(ctx context.Context, markerID string) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Service        ReviewService
	Tokens         TokenStore
	Runner         *review.Runner
	Probe          *stash.CachedProbe
	Logger         *slog.Logger
	StartTime      time.Time
	DeviceID       string
	AllowedOrigins []string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
