package v1

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

const feedLimit = 50

// RunReportsResponse is the body returned by POST /test-correo.
type RunReportsResponse struct {
	OK       bool     `json:"ok"`
	Message  string   `json:"message"`
	Files    []string `json:"files"`
	Emailed  bool     `json:"emailed"`
	Failures []string `json:"failures,omitempty"`
}

// RunReports runs the daily job now.
// POST /test-correo
func (s *APIV1Service) RunReports(c echo.Context) error {
	res := s.Job.RunOnce(c.Request().Context())

	files := make([]string, len(res.Files))
	for i, f := range res.Files {
		files[i] = filepath.Base(f)
	}

	msg := "Reportes generados y correo enviado."
	switch {
	case len(files) == 0:
		msg = "No se generaron reportes."
	case !res.Emailed:
		msg = "Reportes generados, pero el correo no se envió."
	}

	return c.JSON(http.StatusOK, RunReportsResponse{
		OK:       res.OK(),
		Message:  msg,
		Files:    files,
		Emailed:  res.Emailed,
		Failures: res.Failures,
	})
}

// ReportsFeed serves generated reports as an Atom feed.
// GET /reportes/feed.atom
func (s *APIV1Service) ReportsFeed(c echo.Context) error {
	baseURL := c.Scheme() + "://" + c.Request().Host

	feed, err := s.Feed.Feed(baseURL, feedLimit)
	if err != nil {
		slog.Error("failed to build report feed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build feed"})
	}
	atom, err := feed.ToAtom()
	if err != nil {
		slog.Error("failed to encode report feed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build feed"})
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}
