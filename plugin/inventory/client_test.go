package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api/"
	cfg.ServiceToken = "svc-token"
	return NewClient(cfg)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:3000/api", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.False(t, cfg.UploadEnabled)
}

func TestClient_ListCollections(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "svc-token", r.Header.Get(headerServiceToken))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/medicamentos/all":
			fmt.Fprint(w, `[{"id":1,"nombre":"Paracetamol","existencias":12,"categoria":{"nombre":"Analgésicos"}}]`)
		case "/api/proveedores/all":
			fmt.Fprint(w, `[{"id":7,"nombre":"Farmacorp","direccion":"Av. Reforma 10"}]`)
		case "/api/users/all":
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	meds, err := client.ListMedications(ctx)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Paracetamol", meds[0]["nombre"])
	assert.Equal(t, float64(12), meds[0]["existencias"])
	assert.IsType(t, map[string]any{}, meds[0]["categoria"])

	suppliers, err := client.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Len(t, suppliers, 1)

	users, err := client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestClient_ListErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		client := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.ListSuppliers(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("decode", func(t *testing.T) {
		client := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"not":"an array"}`)
		})
		_, err := client.ListMedications(context.Background())
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		_, err := NewClient(cfg).ListMedications(context.Background())
		assert.Error(t, err)
	})
}

func TestEffectiveCredential(t *testing.T) {
	ctx := context.Background()
	client := NewClient(&Config{ServiceToken: "svc-token"})

	valid := signedToken(t, time.Now().Add(time.Hour))
	expired := signedToken(t, time.Now().Add(-time.Hour))

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"no request token", "", "svc-token"},
		{"valid jwt", valid, valid},
		{"bearer prefix", "Bearer " + valid, valid},
		{"expired jwt", expired, "svc-token"},
		{"opaque token", "opaque-abc", "opaque-abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.EffectiveCredential(ctx, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewClient(&Config{}).EffectiveCredential(ctx, "")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestEffectiveCredential_ClientCredentials(t *testing.T) {
	var calls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "oauth-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	client := NewClient(&Config{OAuth: &OAuthConfig{
		TokenURL:     tokenSrv.URL,
		ClientID:     "chatbot",
		ClientSecret: "s3cret",
	}})

	for i := 0; i < 2; i++ {
		got, err := client.EffectiveCredential(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "oauth-token", got)
	}
	assert.EqualValues(t, 1, calls.Load(), "token should be reused until expiry")
}

func TestUploadDocument(t *testing.T) {
	pdfPath := filepath.Join(t.TempDir(), "reporte_test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.3 test"), 0o644))

	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/documentos/upload", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		assert.Equal(t, "svc-token", r.Header.Get(headerServiceToken))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "Reporte de usuarios", r.FormValue("titulo"))
		assert.Equal(t, "usuarios", r.FormValue("categoria"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "reporte_test.pdf", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.3 test", string(data))

		w.WriteHeader(http.StatusCreated)
	})

	err := client.UploadDocument(context.Background(), Document{
		Path:     pdfPath,
		Title:    "Reporte de usuarios",
		Category: "usuarios",
	}, "")
	assert.NoError(t, err)
}

func TestUploadDocument_Failures(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	err := client.UploadDocument(context.Background(), Document{Path: "/nonexistent/file.pdf"}, "")
	assert.Error(t, err)

	pdfPath := filepath.Join(t.TempDir(), "r.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("x"), 0o644))
	err = client.UploadDocument(context.Background(), Document{Path: pdfPath}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
