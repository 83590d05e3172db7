// Package chat runs one conversation turn: classify the message, fetch
// inventory data, build the reply and record both sides in the transcript.
package chat

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"

	"github.com/hrygo/pharmacontrol/internal/util"
	"github.com/hrygo/pharmacontrol/plugin/ai/router"
	"github.com/hrygo/pharmacontrol/plugin/ai/session"
	"github.com/hrygo/pharmacontrol/plugin/inventory"
	"github.com/hrygo/pharmacontrol/server/ai"
	apperrors "github.com/hrygo/pharmacontrol/server/internal/errors"
	"github.com/hrygo/pharmacontrol/server/internal/observability"
	"github.com/hrygo/pharmacontrol/server/service/report"
)

const (
	maxSuggestions  = 3
	maxDetailRunes  = 300
	uploadGraceTime = 35 * time.Second

	// searchShortcut is menu option 6; it asks for a name instead of searching.
	searchShortcut = "6"
)

// Backend fetches inventory collections.
type Backend interface {
	ListMedications(ctx context.Context) ([]inventory.Record, error)
	ListSuppliers(ctx context.Context) ([]inventory.Record, error)
	ListUsers(ctx context.Context) ([]inventory.Record, error)
}

// Uploader hands generated documents back to the backend.
type Uploader interface {
	UploadEnabled() bool
	UploadDocument(ctx context.Context, doc inventory.Document, requestToken string) error
}

// ReportBuilder renders PDFs.
type ReportBuilder interface {
	BuildReport(ctx context.Context, job report.Job) (string, error)
	URL(file string) string
}

// Describer produces drug descriptions and never fails.
type Describer interface {
	Describe(ctx context.Context, s ai.Subject) ai.Description
}

// Deps are the collaborators of a Service. Uploader and Metrics are optional.
type Deps struct {
	Sessions  session.SessionService
	Router    router.RouterService
	Backend   Backend
	Reports   ReportBuilder
	Describer Describer
	Uploader  Uploader
	Metrics   *observability.Metrics
}

// Input is one inbound chat message.
type Input struct {
	Message   string
	SessionID string
	// Token is an optional per-request credential for document uploads.
	Token string
}

// Service is the dialogue orchestrator.
type Service struct {
	sessions  session.SessionService
	router    router.RouterService
	backend   Backend
	reports   ReportBuilder
	describer Describer
	uploader  Uploader
	metrics   *observability.Metrics

	uploads sync.WaitGroup
}

// NewService creates a chat service.
func NewService(deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = observability.GlobalMetrics()
	}
	return &Service{
		sessions:  deps.Sessions,
		router:    deps.Router,
		backend:   deps.Backend,
		reports:   deps.Reports,
		describer: deps.Describer,
		uploader:  deps.Uploader,
		metrics:   deps.Metrics,
	}
}

// NewChat starts a session whose first turn is the welcome message.
func (s *Service) NewChat(ctx context.Context) (*session.Session, error) {
	sess, err := s.sessions.CreateSession(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	return sess, nil
}

// HandleMessage runs one turn and returns the assistant reply. Unknown
// sessions fail with an INVALID_SESSION AppError; every other failure is
// turned into a reply that is recorded like any other.
func (s *Service) HandleMessage(ctx context.Context, in Input) (string, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return "", apperrors.InvalidArgument("el mensaje no puede estar vacío")
	}

	reqCtx := observability.RequestFromContext(ctx)
	reqCtx.SessionID = in.SessionID
	start := time.Now()

	if err := s.sessions.AppendTurn(ctx, in.SessionID, session.RoleUser, message); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return "", apperrors.InvalidSession(in.SessionID)
		}
		return "", errors.Wrap(err, "failed to record user turn")
	}

	intent, err := s.router.ClassifyIntent(ctx, message)
	if err != nil {
		return "", err
	}
	reqCtx.Intent = string(intent)

	reply, failed := s.turn(ctx, intent, message, in.Token)

	s.metrics.RecordTurn(string(intent), time.Since(start))
	if failed {
		s.metrics.RecordFailure(string(intent))
	}

	if err := s.sessions.AppendTurn(ctx, in.SessionID, session.RoleAssistant, reply); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return "", apperrors.InvalidSession(in.SessionID)
		}
		return "", errors.Wrap(err, "failed to record assistant turn")
	}

	reqCtx.Info("turn handled",
		slog.Int(observability.LogFieldMessageLen, len(message)),
		slog.Int64(observability.LogFieldDuration, time.Since(start).Milliseconds()),
		slog.Bool("failed", failed),
	)
	return reply, nil
}

// Wait blocks until background uploads finish.
func (s *Service) Wait() {
	s.uploads.Wait()
}

// turn fetches medications and dispatches. It reports whether the reply is
// an error card.
func (s *Service) turn(ctx context.Context, intent router.Intent, message, token string) (reply string, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chat turn panicked", "intent", string(intent), "panic", r)
			reply, failed = genericErrorCard(fmt.Sprint(r)), true
		}
	}()

	meds, err := s.backend.ListMedications(ctx)
	if err != nil {
		appErr := apperrors.BackendUnavailable(err)
		slog.Error("medication fetch failed", appErr.LogAttrs()...)
		return backendErrorCard(err), true
	}

	reply, err = s.dispatch(ctx, intent, message, token, meds)
	if err != nil {
		slog.Error("chat dispatch failed", "intent", string(intent), "error", err)
		return genericErrorCard(err.Error()), true
	}
	return reply, false
}

func (s *Service) dispatch(ctx context.Context, intent router.Intent, message, token string, meds []inventory.Record) (string, error) {
	switch intent {
	case router.IntentGreeting, router.IntentMenu:
		return WelcomeHTML, nil

	case router.IntentInStock:
		inStock := report.Filter(meds, report.InStock)
		return s.reportReply(ctx, token, report.Job{
			Title:    "Medicamentos en Existencia",
			Category: report.CategoryMedications,
			Records:  inStock,
		}, reportView{
			Icon:    "💊",
			Heading: "Medicamentos con existencia",
			Lead:    "📦 Se encontraron",
			Noun:    "medicamentos con stock disponible.",
		}, true)

	case router.IntentOutOfStock:
		outOfStock := report.Filter(meds, report.OutOfStock)
		if len(outOfStock) == 0 {
			return AllInStockText, nil
		}
		return s.reportReply(ctx, token, report.Job{
			Title:    "Medicamentos sin existencia",
			Category: report.CategoryMedications,
			Records:  outOfStock,
		}, reportView{
			Icon:    "⚠️",
			Heading: "Medicamentos SIN existencia",
			Lead:    "📄 Se encontraron",
			Noun:    "productos agotados.",
		}, true)

	case router.IntentGeneralReport:
		return s.reportReply(ctx, token, report.Job{
			Title:    "Reporte general de medicamentos",
			Category: report.CategoryMedications,
			Records:  meds,
		}, reportView{
			Icon:    "📑",
			Heading: "Reporte general generado exitosamente.",
			Lead:    "📦 Incluye",
			Noun:    "medicamentos registrados.",
		}, false)

	case router.IntentSuppliers:
		suppliers, err := s.backend.ListSuppliers(ctx)
		if err != nil {
			return secondaryErrorCard(report.CategorySuppliers, err)
		}
		if len(suppliers) == 0 {
			return NoSuppliersText, nil
		}
		return s.reportReply(ctx, token, report.Job{
			Title:    "Reporte de proveedores",
			Category: report.CategorySuppliers,
			Records:  suppliers,
		}, reportView{
			Icon:    "🏭",
			Heading: "Reporte de Proveedores generado correctamente.",
			Lead:    "Se encontraron",
			Noun:    "proveedores registrados.",
		}, true)

	case router.IntentUsers:
		users, err := s.backend.ListUsers(ctx)
		if err != nil {
			return secondaryErrorCard(report.CategoryUsers, err)
		}
		if len(users) == 0 {
			return NoUsersText, nil
		}
		return s.reportReply(ctx, token, report.Job{
			Title:    "Reporte de usuarios",
			Category: report.CategoryUsers,
			Records:  users,
		}, reportView{
			Icon:    "👤",
			Heading: "Reporte de Usuarios generado correctamente.",
			Lead:    "Se encontraron",
			Noun:    "usuarios registrados.",
		}, true)

	default:
		return s.search(ctx, message, meds)
	}
}

func (s *Service) reportReply(ctx context.Context, token string, job report.Job, view reportView, withTable bool) (string, error) {
	path, err := s.reports.BuildReport(ctx, job)
	if err != nil {
		return "", err
	}
	s.upload(ctx, path, job, token)

	if withTable {
		table, err := report.RenderHTMLTable(job.Records, job.Category)
		if err != nil {
			return "", err
		}
		view.Table = table
	}
	view.Count = len(job.Records)
	view.Link = s.reports.URL(path)
	return render("report", view)
}

// upload sends the PDF to the backend in the background. Failures are only
// logged.
func (s *Service) upload(ctx context.Context, path string, job report.Job, token string) {
	if s.uploader == nil || !s.uploader.UploadEnabled() {
		return
	}

	doc := inventory.Document{Path: path, Title: job.Title, Category: string(job.Category)}
	upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadGraceTime)

	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		defer cancel()
		if err := s.uploader.UploadDocument(upCtx, doc, token); err != nil {
			appErr := apperrors.DeliveryFailed("upload", err).WithContext("file", filepath.Base(path))
			slog.Warn("report upload failed", appErr.LogAttrs()...)
		}
	}()
}

func (s *Service) search(ctx context.Context, query string, meds []inventory.Record) (string, error) {
	needle := util.Normalize(query)
	if needle == searchShortcut {
		return SearchPromptText, nil
	}

	if needle != "" {
		for _, med := range meds {
			name := util.Normalize(report.Display(med, "nombre", "name"))
			if name == "" || name == util.Normalize(report.NotAvailable) {
				continue
			}
			if strings.Contains(name, needle) {
				return s.describeFound(ctx, med)
			}
		}
	}

	desc := s.describe(ctx, ai.Subject{Name: query})
	return render("not_found", notFoundView{
		Title:       capitalize(query),
		Description: template.HTML(desc),
		Suggestions: suggestions(needle, meds),
	})
}

func (s *Service) describeFound(ctx context.Context, med inventory.Record) (string, error) {
	name := report.Display(med, "nombre", "name")
	category := orDefault(report.Display(med, "categoria"), "Sin categoría")
	supplier := orDefault(report.Display(med, "proveedor"), "Proveedor no registrado")

	desc := s.describe(ctx, ai.Subject{Name: name, Category: category, Supplier: supplier})
	return render("found", foundView{
		Name:        name,
		Category:    category,
		Supplier:    supplier,
		Stock:       report.Stock(med),
		Description: template.HTML(desc),
	})
}

func (s *Service) describe(ctx context.Context, subject ai.Subject) string {
	if s.describer == nil {
		return ai.FallbackDescription
	}
	d := s.describer.Describe(ctx, subject)
	if d.Err != nil {
		appErr := apperrors.GenerationFailed(d.Err).WithContext("subject", subject.Name)
		slog.Warn("using fallback description", appErr.LogAttrs()...)
	}
	return d.HTML
}

// suggestions returns up to three medication names close to needle.
func suggestions(needle string, meds []inventory.Record) []string {
	if needle == "" {
		return nil
	}

	seen := make(map[string]bool, len(meds))
	names := make([]string, 0, len(meds))
	for _, med := range meds {
		name := report.Display(med, "nombre", "name")
		if name == report.NotAvailable || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	ranks := fuzzy.RankFindNormalizedFold(needle, names)
	sort.Sort(ranks)

	out := make([]string, 0, maxSuggestions)
	for _, r := range ranks {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, r.Target)
	}
	return out
}

func backendErrorCard(err error) string {
	out, rerr := render("backend_error", util.Truncate(err.Error(), maxDetailRunes))
	if rerr != nil {
		return "❌ No se pudo conectar con la API de medicamentos."
	}
	return out
}

func genericErrorCard(detail string) string {
	out, err := render("generic_error", util.Truncate(detail, maxDetailRunes))
	if err != nil {
		return "❌ Ocurrió un problema mientras procesaba tu petición. Intenta de nuevo en unos minutos."
	}
	return out
}

func secondaryErrorCard(c report.Category, cause error) (string, error) {
	appErr := apperrors.SecondaryFetchFailed(string(c), cause)
	slog.Error("secondary fetch failed", appErr.LogAttrs()...)

	view := secondaryErrorView{
		Collection: string(c),
		Detail:     util.Truncate(cause.Error(), maxDetailRunes),
	}
	switch c {
	case report.CategorySuppliers:
		view.Icon = "🏭"
		view.Endpoint = "/api/proveedores/all"
		view.Alternatives = "<b>medicamentos</b> o <b>usuarios</b>"
	default:
		view.Icon = "👤"
		view.Endpoint = "/api/users/all"
		view.Alternatives = "<b>medicamentos</b>, <b>proveedores</b>"
	}
	return render("secondary_error", view)
}

func orDefault(s, def string) string {
	if s == report.NotAvailable {
		return def
	}
	return s
}

func capitalize(s string) string {
	r := []rune(strings.ToLower(strings.TrimSpace(s)))
	if len(r) == 0 {
		return ""
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
