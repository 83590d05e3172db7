package report

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
	reports "github.com/hrygo/pharmacontrol/server/service/report"
	"github.com/hrygo/pharmacontrol/server/timezone"
)

type mockBackend struct {
	meds, suppliers, users          []inventory.Record
	medsErr, suppliersErr, usersErr error
	calls                           atomic.Int32
}

func (m *mockBackend) ListMedications(context.Context) ([]inventory.Record, error) {
	m.calls.Add(1)
	return m.meds, m.medsErr
}

func (m *mockBackend) ListSuppliers(context.Context) ([]inventory.Record, error) {
	m.calls.Add(1)
	return m.suppliers, m.suppliersErr
}

func (m *mockBackend) ListUsers(context.Context) ([]inventory.Record, error) {
	m.calls.Add(1)
	return m.users, m.usersErr
}

type mockMailer struct {
	mu      sync.Mutex
	enabled bool
	err     error
	sent    [][]string
}

func (m *mockMailer) Enabled() bool { return m.enabled }

func (m *mockMailer) SendReports(_ context.Context, files []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, files)
	return m.err
}

func newTestRunner(t *testing.T, backend *mockBackend, mailer *mockMailer) *Runner {
	t.Helper()
	builder, err := reports.NewBuilder(reports.Config{Dir: filepath.Join(t.TempDir(), "reportes")})
	require.NoError(t, err)
	return NewRunner(backend, builder, mailer)
}

func fullBackend() *mockBackend {
	return &mockBackend{
		meds: []inventory.Record{
			{"nombre": "Paracetamol", "cantidad": 10},
			{"nombre": "Ibuprofeno", "cantidad": 0},
		},
		suppliers: []inventory.Record{{"nombre": "Farmacéutica Norte", "direccion": "Monterrey"}},
		users:     []inventory.Record{{"nombre": "Ana", "email": "ana@example.com"}},
	}
}

func fileTitles(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f)
	}
	return out
}

func TestRunOnce_AllReports(t *testing.T) {
	mailer := &mockMailer{enabled: true}
	r := newTestRunner(t, fullBackend(), mailer)

	res := r.RunOnce(context.Background())

	require.Len(t, res.Files, 4)
	names := fileTitles(res.Files)
	assert.Contains(t, names[0], "reporte_reporte_general_de_medicamentos_")
	assert.Contains(t, names[1], "reporte_medicamentos_sin_existencia_")
	assert.Contains(t, names[2], "reporte_reporte_de_proveedores_")
	assert.Contains(t, names[3], "reporte_reporte_de_usuarios_")
	for _, f := range res.Files {
		assert.FileExists(t, f)
	}

	assert.True(t, res.Emailed)
	assert.True(t, res.OK())
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, res.Files, mailer.sent[0])
}

func TestRunOnce_NoOutOfStockReportWhenAllStocked(t *testing.T) {
	backend := fullBackend()
	backend.meds = []inventory.Record{{"nombre": "Paracetamol", "cantidad": 10}}
	r := newTestRunner(t, backend, &mockMailer{enabled: true})

	res := r.RunOnce(context.Background())
	assert.Len(t, res.Files, 3)
}

func TestRunOnce_MedicationFailureContinues(t *testing.T) {
	backend := fullBackend()
	backend.medsErr = errors.New("connection refused")
	mailer := &mockMailer{enabled: true}
	r := newTestRunner(t, backend, mailer)

	res := r.RunOnce(context.Background())

	assert.Len(t, res.Files, 2)
	assert.True(t, res.Emailed)
	assert.False(t, res.OK())
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "connection refused")
	assert.EqualValues(t, 3, backend.calls.Load())
}

func TestRunOnce_SecondaryFailuresAreIndependent(t *testing.T) {
	backend := fullBackend()
	backend.suppliersErr = errors.New("suppliers down")
	mailer := &mockMailer{enabled: true}
	r := newTestRunner(t, backend, mailer)

	res := r.RunOnce(context.Background())

	names := fileTitles(res.Files)
	require.Len(t, names, 3)
	assert.Contains(t, names[2], "usuarios")
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "suppliers down")

	assert.True(t, res.Emailed)
	require.Len(t, mailer.sent, 1)
	require.Len(t, mailer.sent[0], 3)
	assert.Equal(t, res.Files, mailer.sent[0])
}

func TestRunOnce_EmptyCollectionsSkipped(t *testing.T) {
	backend := fullBackend()
	backend.suppliers = nil
	backend.users = []inventory.Record{}
	r := newTestRunner(t, backend, &mockMailer{enabled: true})

	res := r.RunOnce(context.Background())
	assert.Len(t, res.Files, 2)
	assert.Empty(t, res.Failures)
}

func TestRunOnce_NothingToSend(t *testing.T) {
	backend := &mockBackend{
		medsErr:      errors.New("down"),
		suppliersErr: errors.New("down"),
		usersErr:     errors.New("down"),
	}
	mailer := &mockMailer{enabled: true}
	r := newTestRunner(t, backend, mailer)

	res := r.RunOnce(context.Background())

	assert.Empty(t, res.Files)
	assert.False(t, res.Emailed)
	assert.Len(t, res.Failures, 3)
	assert.Empty(t, mailer.sent)
}

func TestRunOnce_MailerDisabled(t *testing.T) {
	mailer := &mockMailer{enabled: false}
	r := newTestRunner(t, fullBackend(), mailer)

	res := r.RunOnce(context.Background())
	assert.Len(t, res.Files, 4)
	assert.False(t, res.Emailed)
	assert.Empty(t, mailer.sent)
}

func TestRunOnce_NilMailer(t *testing.T) {
	builder, err := reports.NewBuilder(reports.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	r := NewRunner(fullBackend(), builder, nil)

	res := r.RunOnce(context.Background())
	assert.Len(t, res.Files, 4)
	assert.False(t, res.Emailed)
}

func TestRunOnce_MailFailureRecorded(t *testing.T) {
	mailer := &mockMailer{enabled: true, err: errors.New("535 auth failed")}
	r := newTestRunner(t, fullBackend(), mailer)

	res := r.RunOnce(context.Background())
	assert.False(t, res.Emailed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "535 auth failed")
	assert.NotEmpty(t, res.Duration)
}

func TestScheduler_StartStop(t *testing.T) {
	loc, err := timezone.ParseTimezone("")
	require.NoError(t, err)
	clock := timezone.Clock{Hour: 3, Minute: 17}

	s := NewScheduler(newTestRunner(t, fullBackend(), &mockMailer{}), clock, loc)
	assert.Equal(t, "CRON_TZ=America/Mexico_City 17 3 * * *", s.Spec())
	assert.False(t, s.IsRunning())
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next := s.NextRun()
	want := timezone.NextRun(time.Now(), clock, loc)
	assert.WithinDuration(t, want, next, time.Minute)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}
