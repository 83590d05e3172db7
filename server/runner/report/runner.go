// Package report runs the daily reporting job: build the inventory PDFs and
// email them in one message.
package report

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
	apperrors "github.com/hrygo/pharmacontrol/server/internal/errors"
	reports "github.com/hrygo/pharmacontrol/server/service/report"
)

// Report titles produced by the job.
const (
	TitleGeneral    = "Reporte general de medicamentos"
	TitleOutOfStock = "Medicamentos sin existencia"
	TitleSuppliers  = "Reporte de proveedores"
	TitleUsers      = "Reporte de usuarios"
)

// Backend fetches inventory collections.
type Backend interface {
	ListMedications(ctx context.Context) ([]inventory.Record, error)
	ListSuppliers(ctx context.Context) ([]inventory.Record, error)
	ListUsers(ctx context.Context) ([]inventory.Record, error)
}

// Builder renders PDFs.
type Builder interface {
	BuildReport(ctx context.Context, job reports.Job) (string, error)
}

// Mailer delivers the generated files.
type Mailer interface {
	Enabled() bool
	SendReports(ctx context.Context, files []string) error
}

// Result summarizes one run.
type Result struct {
	Files    []string  `json:"files"`
	Emailed  bool      `json:"emailed"`
	Failures []string  `json:"failures,omitempty"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
}

// OK reports whether the run produced and delivered at least one report.
func (r Result) OK() bool {
	return r.Emailed && len(r.Failures) == 0
}

// Runner executes the job.
type Runner struct {
	backend Backend
	builder Builder
	mailer  Mailer
}

// NewRunner creates a Runner. A nil mailer only builds the files.
func NewRunner(backend Backend, builder Builder, mailer Mailer) *Runner {
	return &Runner{backend: backend, builder: builder, mailer: mailer}
}

// RunOnce runs the job. Every step failure is logged and recorded; the job
// always runs to the end.
func (r *Runner) RunOnce(ctx context.Context) Result {
	res := Result{Started: time.Now()}
	defer func() { res.Duration = time.Since(res.Started).Round(time.Millisecond).String() }()

	slog.Info("daily report job started")

	meds, err := r.backend.ListMedications(ctx)
	if err != nil {
		appErr := apperrors.BackendUnavailable(err)
		slog.Error("daily report: medication fetch failed", appErr.LogAttrs()...)
		res.Failures = append(res.Failures, appErr.Error())
	} else {
		r.build(ctx, &res, reports.Job{Title: TitleGeneral, Category: reports.CategoryMedications, Records: meds})
		if out := reports.Filter(meds, reports.OutOfStock); len(out) > 0 {
			r.build(ctx, &res, reports.Job{Title: TitleOutOfStock, Category: reports.CategoryMedications, Records: out})
		}
	}

	var (
		suppliers, users       []inventory.Record
		suppliersErr, usersErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		suppliers, suppliersErr = r.backend.ListSuppliers(ctx)
		return nil
	})
	g.Go(func() error {
		users, usersErr = r.backend.ListUsers(ctx)
		return nil
	})
	_ = g.Wait()

	r.buildSecondary(ctx, &res, reports.CategorySuppliers, TitleSuppliers, suppliers, suppliersErr)
	r.buildSecondary(ctx, &res, reports.CategoryUsers, TitleUsers, users, usersErr)

	if len(res.Files) == 0 {
		slog.Warn("daily report: no reports generated, email skipped")
		return res
	}
	if r.mailer == nil || !r.mailer.Enabled() {
		slog.Warn("daily report: smtp not configured, email skipped", "files", len(res.Files))
		return res
	}

	if err := r.mailer.SendReports(ctx, res.Files); err != nil {
		appErr := apperrors.DeliveryFailed("email", err)
		slog.Error("daily report: email failed", appErr.LogAttrs()...)
		res.Failures = append(res.Failures, appErr.Error())
		return res
	}
	res.Emailed = true
	slog.Info("daily report job finished", "files", len(res.Files), "failures", len(res.Failures))
	return res
}

func (r *Runner) buildSecondary(ctx context.Context, res *Result, c reports.Category, title string, records []inventory.Record, err error) {
	if err != nil {
		appErr := apperrors.SecondaryFetchFailed(string(c), err)
		slog.Error("daily report: secondary fetch failed", appErr.LogAttrs()...)
		res.Failures = append(res.Failures, appErr.Error())
		return
	}
	if len(records) == 0 {
		slog.Info("daily report: collection empty, skipped", "collection", string(c))
		return
	}
	r.build(ctx, res, reports.Job{Title: title, Category: c, Records: records})
}

func (r *Runner) build(ctx context.Context, res *Result, job reports.Job) {
	path, err := r.builder.BuildReport(ctx, job)
	if err != nil {
		slog.Error("daily report: render failed", "title", job.Title, "error", err)
		res.Failures = append(res.Failures, err.Error())
		return
	}
	slog.Debug("daily report: file ready", "file", filepath.Base(path))
	res.Files = append(res.Files, path)
}
