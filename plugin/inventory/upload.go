package inventory

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrNoCredential is returned when no upload credential can be resolved.
var ErrNoCredential = errors.New("no backend credential configured")

// Document is a generated report handed to the backend.
type Document struct {
	Path     string
	Title    string
	Category string
}

// EffectiveCredential resolves the credential used for an upload. A request
// token wins unless it is a JWT whose exp claim has passed; then the static
// service token; then a client credentials token when OAuth is configured.
func (c *Client) EffectiveCredential(_ context.Context, requestToken string) (string, error) {
	requestToken = strings.TrimSpace(strings.TrimPrefix(requestToken, "Bearer "))
	if requestToken != "" && tokenUsable(requestToken, c.now()) {
		return requestToken, nil
	}
	if c.config.ServiceToken != "" {
		return c.config.ServiceToken, nil
	}
	if c.tokenSource != nil {
		tok, err := c.tokenSource.Token()
		if err != nil {
			return "", errors.Wrap(err, "failed to obtain client credentials token")
		}
		return tok.AccessToken, nil
	}
	return "", ErrNoCredential
}

// tokenUsable rejects JWTs past their expiry. Opaque tokens are accepted.
// Signatures are not checked here; the backend verifies them.
func tokenUsable(raw string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return now.Before(exp.Time)
}

// UploadDocument posts a generated PDF to the backend document endpoint.
func (c *Client) UploadDocument(ctx context.Context, doc Document, requestToken string) error {
	credential, err := c.EffectiveCredential(ctx, requestToken)
	if err != nil {
		return err
	}

	body, contentType, err := buildUploadBody(doc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.UploadTimeout)
	defer cancel()

	url := c.endpoint(pathUpload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return errors.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+credential)
	if c.config.ServiceToken != "" {
		req.Header.Set(headerServiceToken, c.config.ServiceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("upload returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	slog.Info("document uploaded", "file", filepath.Base(doc.Path), "category", doc.Category)
	return nil
}

func buildUploadBody(doc Document) (io.Reader, string, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open %s", doc.Path)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(doc.Path))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create form file")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", errors.Wrap(err, "failed to copy document")
	}

	fields := map[string]string{
		"titulo":    doc.Title,
		"categoria": doc.Category,
		"origen":    "chatbot",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", errors.Wrapf(err, "failed to write field %s", k)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to close multipart body")
	}

	return &buf, w.FormDataContentType(), nil
}
