// Package server wires the PharmaControl components into an HTTP server.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/pharmacontrol/internal/profile"
	"github.com/hrygo/pharmacontrol/plugin/ai/cache"
	"github.com/hrygo/pharmacontrol/plugin/ai/router"
	"github.com/hrygo/pharmacontrol/plugin/ai/session"
	"github.com/hrygo/pharmacontrol/plugin/inventory"
	"github.com/hrygo/pharmacontrol/plugin/mail"
	"github.com/hrygo/pharmacontrol/server/ai"
	"github.com/hrygo/pharmacontrol/server/internal/observability"
	"github.com/hrygo/pharmacontrol/server/middleware"
	v1 "github.com/hrygo/pharmacontrol/server/router/api/v1"
	reportjob "github.com/hrygo/pharmacontrol/server/runner/report"
	"github.com/hrygo/pharmacontrol/server/service/chat"
	"github.com/hrygo/pharmacontrol/server/service/report"
	"github.com/hrygo/pharmacontrol/server/timezone"
)

// SetupLogger installs the process logger: console output in dev and demo
// mode, JSON in prod.
func SetupLogger(w io.Writer, mode, level string) {
	slog.SetDefault(observability.NewLogger(w, mode, level))
}

// Components are the long-lived services built from a Profile.
type Components struct {
	Sessions *session.FileStore
	Backend  *inventory.Client
	Reports  *report.Builder
	Cache    *cache.Service
	Chat     *chat.Service
	Runner   *reportjob.Runner
	Location *time.Location
}

// Build constructs every component. A missing language model key or SMTP
// configuration degrades the matching feature instead of failing.
func Build(ctx context.Context, p *profile.Profile) (*Components, error) {
	loc, err := timezone.ParseTimezone(p.ReportTimezone)
	if err != nil {
		slog.Warn("invalid report timezone, using UTC", "timezone", p.ReportTimezone, "error", err)
	}

	sessions, err := session.NewFileStore(session.FileStoreConfig{
		Dir:       p.TranscriptsDir(),
		URLPrefix: "/static/historial/",
		Welcome:   chat.WelcomeHTML,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open transcript store")
	}
	if n, err := sessions.Recover(ctx); err != nil {
		slog.Warn("transcript recovery incomplete", "recovered", n, "error", err)
	} else if n > 0 {
		slog.Info("transcripts recovered", "count", n)
	}

	backendCfg := &inventory.Config{
		BaseURL:       p.BackendURL,
		ServiceToken:  p.BackendServiceToken,
		UploadEnabled: p.BackendUpload,
		UploadTimeout: 30 * time.Second,
		Timeout:       p.RequestTimeout,
	}
	if p.IsOAuthEnabled() {
		backendCfg.OAuth = &inventory.OAuthConfig{
			TokenURL:     p.OAuthTokenURL,
			ClientID:     p.OAuthClientID,
			ClientSecret: p.OAuthClientSecret,
		}
	}
	backend := inventory.NewClient(backendCfg)

	reports, err := report.NewBuilder(report.Config{
		Dir:       p.ReportsDir(),
		URLPrefix: "/static/reportes/",
		LogoPath:  p.ReportLogo,
		Location:  loc,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create report builder")
	}

	descCache := cache.NewService(cache.DefaultServiceConfig())
	var describer *ai.Describer
	if p.IsAIEnabled() {
		cfg := ai.DefaultConfig()
		cfg.APIKey = p.OpenAIAPIKey
		if p.OpenAIBaseURL != "" {
			cfg.BaseURL = p.OpenAIBaseURL
		}
		if p.OpenAIModel != "" {
			cfg.ChatModel = p.OpenAIModel
		}
		provider, err := ai.NewProvider(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create language model provider")
		}
		slog.Info("drug descriptions enabled", "model", provider.Model())
		describer = ai.NewDescriber(provider, descCache)
	} else {
		slog.Warn("OPENAI_API_KEY not set, drug descriptions will use the fallback text")
		describer = ai.NewDescriber(nil, descCache)
	}

	chatSvc := chat.NewService(chat.Deps{
		Sessions:  sessions,
		Router:    router.NewService(),
		Backend:   backend,
		Reports:   reports,
		Describer: describer,
		Uploader:  backend,
		Metrics:   observability.GlobalMetrics(),
	})

	mailer := mail.New(mail.Config{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUser,
		Password: p.SMTPPass,
		To:       p.MailTo,
	})
	if !mailer.Enabled() {
		slog.Warn("SMTP not configured, daily reports will not be emailed")
	}

	return &Components{
		Sessions: sessions,
		Backend:  backend,
		Reports:  reports,
		Cache:    descCache,
		Chat:     chatSvc,
		Runner:   reportjob.NewRunner(backend, reports, mailer),
		Location: loc,
	}, nil
}

// Close waits for background uploads and stops the cache janitor.
func (c *Components) Close() {
	c.Chat.Wait()
	c.Cache.Close()
}

// Server is the HTTP server plus the report scheduler.
type Server struct {
	Profile    *profile.Profile
	Components *Components

	echoServer *echo.Echo
	scheduler  *reportjob.Scheduler
}

const shutdownTimeout = 40 * time.Second

// NewServer builds the components and registers the HTTP routes.
func NewServer(ctx context.Context, p *profile.Profile) (*Server, error) {
	components, err := Build(ctx, p)
	if err != nil {
		return nil, err
	}

	clock, err := timezone.ParseClock(p.ReportSchedule)
	if err != nil {
		slog.Warn("invalid report schedule, using default", "schedule", p.ReportSchedule, "error", err)
		clock, _ = timezone.ParseClock("")
	}
	scheduler := reportjob.NewScheduler(components.Runner, clock, components.Location)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var limiter *middleware.RateLimiter
	if p.ChatRateLimit > 0 {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{PerMinute: p.ChatRateLimit})
	}

	api := v1.NewAPIV1Service(v1.APIV1Service{
		Profile:     p,
		Chat:        components.Chat,
		Transcripts: components.Sessions,
		Job:         components.Runner,
		Feed:        components.Reports,
		Scheduler:   scheduler,
		Metrics:     observability.GlobalMetrics(),
		Limiter:     limiter,
	})
	api.RegisterRoutes(e, p.Data)

	return &Server{
		Profile:    p,
		Components: components,
		echoServer: e,
		scheduler:  scheduler,
	}, nil
}

// Start starts the scheduler and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("pharmacontrol listening", "addr", addr, "mode", s.Profile.Mode, "version", s.Profile.Version)
	if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Run serves until ctx is done or the server fails to start, then shuts
// everything down. Only a start failure is returned.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.Shutdown(shutdownCtx)
	return err
}

// Shutdown stops the scheduler, the HTTP server and background work.
func (s *Server) Shutdown(ctx context.Context) {
	s.scheduler.Stop()
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	s.Components.Close()
	slog.Info("pharmacontrol stopped")
}
