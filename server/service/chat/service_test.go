package chat

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/pharmacontrol/plugin/ai/router"
	"github.com/hrygo/pharmacontrol/plugin/ai/session"
	"github.com/hrygo/pharmacontrol/plugin/inventory"
	"github.com/hrygo/pharmacontrol/server/ai"
	apperrors "github.com/hrygo/pharmacontrol/server/internal/errors"
	"github.com/hrygo/pharmacontrol/server/internal/observability"
	"github.com/hrygo/pharmacontrol/server/service/report"
)

type stubBackend struct {
	meds, suppliers, users          []inventory.Record
	medsErr, suppliersErr, usersErr error
}

func (b *stubBackend) ListMedications(context.Context) ([]inventory.Record, error) {
	return b.meds, b.medsErr
}

func (b *stubBackend) ListSuppliers(context.Context) ([]inventory.Record, error) {
	return b.suppliers, b.suppliersErr
}

func (b *stubBackend) ListUsers(context.Context) ([]inventory.Record, error) {
	return b.users, b.usersErr
}

type stubDescriber struct {
	mu    sync.Mutex
	fail  bool
	calls []ai.Subject
}

func (d *stubDescriber) Describe(_ context.Context, s ai.Subject) ai.Description {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, s)
	if d.fail {
		return ai.Description{HTML: ai.FallbackDescription, Fallback: true, Err: errors.New("llm down")}
	}
	return ai.Description{HTML: "<p>Analgésico de uso común.</p>"}
}

type stubUploader struct {
	mu   sync.Mutex
	docs []inventory.Document
	err  error
}

func (u *stubUploader) UploadEnabled() bool { return true }

func (u *stubUploader) UploadDocument(_ context.Context, doc inventory.Document, _ string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.docs = append(u.docs, doc)
	return u.err
}

type panickingReports struct{}

func (panickingReports) BuildReport(context.Context, report.Job) (string, error) {
	panic("pdf engine exploded")
}

func (panickingReports) URL(string) string { return "" }

type panickingBackend struct{ stubBackend }

func (*panickingBackend) ListMedications(context.Context) ([]inventory.Record, error) {
	panic("nil map in backend adapter")
}

func sampleMeds() []inventory.Record {
	return []inventory.Record{
		{"nombre": "Paracetamol", "categoria": map[string]any{"nombre": "Analgésicos"}, "proveedor": map[string]any{"nombre": "Farmacéutica Norte"}, "cantidad": 5},
		{"nombre": "Ibuprofeno", "cantidad": 0},
		{"nombre": "Amoxicilina", "cantidad": "12"},
		{"nombre": "Omeprazol", "existencias": 0},
	}
}

type fixture struct {
	svc       *Service
	sessions  *session.MockSessionService
	backend   *stubBackend
	describer *stubDescriber
	uploader  *stubUploader
	metrics   *observability.Metrics
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "reportes")
	builder, err := report.NewBuilder(report.Config{Dir: dir, URLPrefix: "/static/reportes/"})
	require.NoError(t, err)

	f := &fixture{
		sessions:  session.NewMockSessionService(WelcomeHTML),
		backend:   &stubBackend{meds: sampleMeds()},
		describer: &stubDescriber{},
		uploader:  &stubUploader{},
		metrics:   observability.NewMetrics(),
		dir:       dir,
	}
	f.svc = NewService(Deps{
		Sessions:  f.sessions,
		Router:    router.NewService(),
		Backend:   f.backend,
		Reports:   builder,
		Describer: f.describer,
		Uploader:  f.uploader,
		Metrics:   f.metrics,
	})
	return f
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	sess, err := f.svc.NewChat(context.Background())
	require.NoError(t, err)
	return sess.ID
}

func (f *fixture) send(t *testing.T, id, message string) string {
	t.Helper()
	reply, err := f.svc.HandleMessage(context.Background(), Input{Message: message, SessionID: id})
	require.NoError(t, err)
	return reply
}

func TestNewChat_StartsWithWelcome(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	sess, err := f.sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, session.RoleAssistant, sess.Turns[0].Role)
	assert.Equal(t, WelcomeHTML, sess.Turns[0].Content)
}

func TestHandleMessage_InvalidSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleMessage(context.Background(), Input{Message: "hola", SessionID: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidSession(err))
	assert.Zero(t, f.sessions.Snapshots("nope"))
}

func TestHandleMessage_EmptyMessage(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	_, err := f.svc.HandleMessage(context.Background(), Input{Message: "   ", SessionID: id})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

func TestHandleMessage_GreetingAndMenu(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	assert.Equal(t, WelcomeHTML, f.send(t, id, "Hola!"))
	assert.Equal(t, WelcomeHTML, f.send(t, id, "menu"))

	sess, err := f.sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 5)
	assert.Equal(t, session.RoleUser, sess.Turns[1].Role)
	assert.Equal(t, "Hola!", sess.Turns[1].Content)
	assert.Equal(t, session.RoleAssistant, sess.Turns[2].Role)
}

func TestHandleMessage_InStockReport(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	reply := f.send(t, id, "3")
	f.svc.Wait()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(reply))
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "Medicamentos con existencia")
	assert.Equal(t, "2", doc.Find("p b").Eq(1).Text())
	assert.Equal(t, 2, doc.Find("table tbody tr").Length())

	href, ok := doc.Find("a.pdf-btn").Attr("href")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(href, "/static/reportes/reporte_medicamentos_en_existencia_"))
	assert.FileExists(t, filepath.Join(f.dir, filepath.Base(href)))

	require.Len(t, f.uploader.docs, 1)
	assert.Equal(t, "Medicamentos en Existencia", f.uploader.docs[0].Title)
	assert.Equal(t, "medicamentos", f.uploader.docs[0].Category)
}

func TestHandleMessage_OutOfStockReport(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	reply := f.send(t, id, "sin stock")
	f.svc.Wait()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(reply))
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "SIN existencia")
	assert.Equal(t, 2, doc.Find("table tbody tr.row-alert").Length())
}

func TestHandleMessage_OutOfStockNone(t *testing.T) {
	f := newFixture(t)
	f.backend.meds = []inventory.Record{{"nombre": "Paracetamol", "cantidad": 3}}
	id := f.newSession(t)

	assert.Equal(t, AllInStockText, f.send(t, id, "2"))
	f.svc.Wait()
	assert.Empty(t, f.uploader.docs)
}

func TestHandleMessage_GeneralReportHasNoTable(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	reply := f.send(t, id, "reporte general")
	f.svc.Wait()

	assert.Contains(t, reply, "Incluye <b>4</b> medicamentos registrados.")
	assert.NotContains(t, reply, "<table")
	assert.Contains(t, reply, "pdf-btn")
}

func TestHandleMessage_BackendFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.medsErr = errors.New("connection refused")
	id := f.newSession(t)

	reply := f.send(t, id, "1")
	assert.Contains(t, reply, "No se pudo conectar con la API de medicamentos")
	assert.Contains(t, reply, "connection refused")

	sess, err := f.sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 3)
	assert.Equal(t, reply, sess.Turns[2].Content)

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 1, snap.TurnFailed)
}

func TestHandleMessage_SecondaryFailureIsScoped(t *testing.T) {
	f := newFixture(t)
	f.backend.suppliersErr = errors.New("500 Internal Server Error")
	id := f.newSession(t)

	reply := f.send(t, id, "proveedores")
	assert.Contains(t, reply, "No pude obtener la lista de proveedores.")
	assert.Contains(t, reply, "/api/proveedores/all")
	assert.Contains(t, reply, "500 Internal Server Error")
	assert.NotContains(t, reply, "Intenta de nuevo en unos minutos")
}

func TestHandleMessage_EmptySecondaryCollections(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	assert.Equal(t, NoSuppliersText, f.send(t, id, "4"))
	assert.Equal(t, NoUsersText, f.send(t, id, "usuarios"))
}

func TestHandleMessage_UsersReport(t *testing.T) {
	f := newFixture(t)
	f.backend.users = []inventory.Record{
		{"nombre": "Ana", "email": "ana@example.com", "direccion": "Centro"},
	}
	id := f.newSession(t)

	reply := f.send(t, id, "5")
	f.svc.Wait()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(reply))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("table.tabla-usuarios tbody tr").Length())
	assert.Contains(t, doc.Find("td").Text(), "ana@example.com")
}

func TestHandleMessage_SearchFound(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	reply := f.send(t, id, "PARACETAMOL")
	assert.Contains(t, reply, "<b>Paracetamol</b>")
	assert.Contains(t, reply, "Analgésicos")
	assert.Contains(t, reply, "Farmacéutica Norte")
	assert.Contains(t, reply, "Existencias: <b>5</b>")
	assert.Contains(t, reply, "<p>Analgésico de uso común.</p>")

	require.Len(t, f.describer.calls, 1)
	assert.Equal(t, ai.Subject{Name: "Paracetamol", Category: "Analgésicos", Supplier: "Farmacéutica Norte"}, f.describer.calls[0])
}

func TestHandleMessage_SearchFoundDefaults(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	reply := f.send(t, id, "ibuprofeno")
	assert.Contains(t, reply, "Sin categoría")
	assert.Contains(t, reply, "Proveedor no registrado")
	assert.Contains(t, reply, "Existencias: <b>0</b>")
}

func TestHandleMessage_SearchNotFoundWithFailingModel(t *testing.T) {
	f := newFixture(t)
	f.describer.fail = true
	id := f.newSession(t)

	reply := f.send(t, id, "aspirina")
	assert.Contains(t, reply, "<b>Aspirina</b>")
	assert.Contains(t, reply, "No encontré este medicamento")
	assert.Contains(t, reply, ai.FallbackDescription)

	require.Len(t, f.describer.calls, 1)
	assert.Equal(t, "aspirina", f.describer.calls[0].Name)
}

func TestHandleMessage_SearchSuggestions(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	reply := f.send(t, id, "amoxcilina")
	assert.Contains(t, reply, "¿Quisiste decir")
	assert.Contains(t, reply, "<b>Amoxicilina</b>")
}

func TestHandleMessage_SearchShortcutPrompts(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	assert.Equal(t, SearchPromptText, f.send(t, id, "6"))
	assert.Empty(t, f.describer.calls)
}

func TestHandleMessage_PanicBecomesGenericCard(t *testing.T) {
	f := newFixture(t)
	f.svc.reports = panickingReports{}
	id := f.newSession(t)

	reply := f.send(t, id, "3")
	assert.Contains(t, reply, "Ocurrió un problema mientras procesaba tu petición")
	assert.Contains(t, reply, "pdf engine exploded")

	sess, err := f.sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, reply, sess.Turns[len(sess.Turns)-1].Content)
}

func TestHandleMessage_BackendPanicIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.svc.backend = &panickingBackend{}
	id := f.newSession(t)

	reply := f.send(t, id, "hola")
	assert.Contains(t, reply, "nil map in backend adapter")

	sess, err := f.sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, reply, sess.Turns[len(sess.Turns)-1].Content)
	assert.EqualValues(t, 1, f.metrics.Snapshot().TurnFailed)
}

func TestHandleMessage_UploadFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = errors.New("401 Unauthorized")
	id := f.newSession(t)

	reply := f.send(t, id, "1")
	f.svc.Wait()
	assert.Contains(t, reply, "pdf-btn")
	assert.Len(t, f.uploader.docs, 1)
}

func TestHandleMessage_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	f.send(t, id, "hola")
	f.send(t, id, "menu")

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 2, snap.TurnTotal)
	assert.EqualValues(t, 0, snap.TurnFailed)
}

func TestHandleMessage_InputIsNotMutated(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)
	before := sampleMeds()

	f.send(t, id, "sin stock")
	f.send(t, id, "existencias")
	f.svc.Wait()

	assert.Equal(t, before, f.backend.meds)
}
