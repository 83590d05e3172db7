package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/pharmacontrol/internal/profile"
	"github.com/hrygo/pharmacontrol/server/service/chat"
)

func testProfile(t *testing.T, backendURL string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		Mode:           "dev",
		Port:           5000,
		Data:           t.TempDir(),
		BackendURL:     backendURL,
		ReportSchedule: "07:30",
		ReportTimezone: "America/Mexico_City",
		ChatRateLimit:  100,
		Version:        "test",
	}
	require.NoError(t, p.Validate())
	return p
}

func TestNewServer_Wiring(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/medicamentos/all":
			_, _ = w.Write([]byte(`[{"nombre":"Paracetamol","cantidad":4}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer backend.Close()

	s, err := NewServer(context.Background(), testProfile(t, backend.URL+"/api"))
	require.NoError(t, err)
	defer s.Components.Close()

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		s.echoServer.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/nuevo-chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var started struct {
		SessionID string `json:"session_id"`
		Welcome   string `json:"welcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, chat.WelcomeHTML, started.Welcome)

	rec = do(http.MethodPost, "/chat", `{"message":"paracetamol","session_id":"`+started.SessionID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Contains(t, reply.Response, "Paracetamol")
	assert.Contains(t, reply.Response, "Existencias: <b>4</b>")

	rec = do(http.MethodGet, "/historial/archivos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "historial_"+started.SessionID+".json")

	rec = do(http.MethodGet, "/static/historial/historial_"+started.SessionID+".json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paracetamol")
}

func TestBuild_RecoversTranscripts(t *testing.T) {
	p := testProfile(t, "http://127.0.0.1:1/api")

	first, err := Build(context.Background(), p)
	require.NoError(t, err)
	sess, err := first.Sessions.CreateSession(context.Background())
	require.NoError(t, err)
	first.Close()

	second, err := Build(context.Background(), p)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Sessions.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestServer_RunStartFailureShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	p := testProfile(t, "http://127.0.0.1:1/api")
	p.Addr = "127.0.0.1"
	p.Port = ln.Addr().(*net.TCPAddr).Port

	s, err := NewServer(context.Background(), p)
	require.NoError(t, err)

	assert.Error(t, s.Run(context.Background()))
	assert.False(t, s.scheduler.IsRunning())
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	p := testProfile(t, "http://127.0.0.1:1/api")
	p.Addr = "127.0.0.1"
	p.Port = 0

	s, err := NewServer(context.Background(), p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.scheduler.IsRunning, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, s.scheduler.IsRunning())
}
