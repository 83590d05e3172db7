// Package v1 exposes the chat assistant over HTTP.
package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/pharmacontrol/internal/profile"
	"github.com/hrygo/pharmacontrol/plugin/ai/session"
	"github.com/hrygo/pharmacontrol/server/internal/observability"
	"github.com/hrygo/pharmacontrol/server/middleware"
	reportjob "github.com/hrygo/pharmacontrol/server/runner/report"
	"github.com/hrygo/pharmacontrol/server/service/chat"
)

// ChatService runs conversation turns.
type ChatService interface {
	NewChat(ctx context.Context) (*session.Session, error)
	HandleMessage(ctx context.Context, in chat.Input) (string, error)
}

// TranscriptService lists and removes stored transcripts.
type TranscriptService interface {
	ListTranscripts(ctx context.Context) ([]session.TranscriptInfo, error)
	DeleteTranscript(ctx context.Context, name string) (bool, error)
}

// ReportJob runs the daily reporting job on demand.
type ReportJob interface {
	RunOnce(ctx context.Context) reportjob.Result
}

// ReportFeed lists generated reports.
type ReportFeed interface {
	Feed(baseURL string, limit int) (*feeds.Feed, error)
}

// NextRunner reports when the next scheduled job fires.
type NextRunner interface {
	NextRun() time.Time
}

// APIV1Service holds the HTTP handlers.
type APIV1Service struct {
	Profile     *profile.Profile
	Chat        ChatService
	Transcripts TranscriptService
	Job         ReportJob
	Feed        ReportFeed
	Scheduler   NextRunner
	Metrics     *observability.Metrics
	Limiter     *middleware.RateLimiter

	startedAt time.Time
}

// NewAPIV1Service creates the handler set. Scheduler and Limiter are optional.
func NewAPIV1Service(svc APIV1Service) *APIV1Service {
	s := svc
	if s.Metrics == nil {
		s.Metrics = observability.GlobalMetrics()
	}
	s.startedAt = time.Now()
	return &s
}

// RegisterRoutes mounts every route on e. staticDir is served under /static.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo, staticDir string) {
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(s.requestContext())

	chatGroup := e.Group("")
	if s.Limiter != nil {
		chatGroup.Use(s.Limiter.Middleware())
	}
	chatGroup.POST("/chat", s.SendMessage)
	chatGroup.POST("/nuevo-chat", s.StartChat)

	e.GET("/historial/archivos", s.ListHistory)
	e.DELETE("/historial/:name", s.DeleteHistory)
	e.POST("/test-correo", s.RunReports)
	e.GET("/reportes/feed.atom", s.ReportsFeed)
	e.GET("/health", s.Health)

	if staticDir != "" {
		e.Static("/static", staticDir)
	}
}
