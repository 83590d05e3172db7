package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envKeys {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func load(t *testing.T) *Profile {
	t.Helper()
	v := viper.New()
	require.NoError(t, SetDefaults(v))
	return FromViper(v)
}

func TestProfileDefaults(t *testing.T) {
	clearEnv(t)
	p := load(t)

	tests := []struct {
		name     string
		expected any
		actual   any
	}{
		{"Mode", "demo", p.Mode},
		{"Port", 5000, p.Port},
		{"BackendURL", "http://localhost:3000/api", p.BackendURL},
		{"OpenAIModel", "gpt-4o-mini", p.OpenAIModel},
		{"SMTPPort", 587, p.SMTPPort},
		{"ReportSchedule", "07:30", p.ReportSchedule},
		{"ReportTimezone", "America/Mexico_City", p.ReportTimezone},
		{"ChatRateLimit", 30, p.ChatRateLimit},
		{"BackendUpload", false, p.BackendUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.actual)
		})
	}
	assert.False(t, p.IsAIEnabled())
	assert.False(t, p.IsOAuthEnabled())
}

func TestProfileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMA_MODE", "prod")
	t.Setenv("PHARMA_PORT", "8080")
	t.Setenv("NEST_API_URL", "http://nest:3000/api")
	t.Setenv("NEST_UPLOAD_ENABLED", "true")
	t.Setenv("NEST_OAUTH_TOKEN_URL", "http://nest/oauth/token")
	t.Setenv("NEST_OAUTH_CLIENT_ID", "chatbot")
	t.Setenv("NEST_OAUTH_CLIENT_SECRET", "s3cret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REPORTS_EMAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("CHAT_RATE_LIMIT", "5")

	p := load(t)
	assert.Equal(t, "prod", p.Mode)
	assert.False(t, p.IsDev())
	assert.Equal(t, 8080, p.Port)
	assert.Equal(t, "http://nest:3000/api", p.BackendURL)
	assert.True(t, p.BackendUpload)
	assert.True(t, p.IsOAuthEnabled())
	assert.True(t, p.IsAIEnabled())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, p.MailTo)
	assert.Equal(t, 5, p.ChatRateLimit)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SMTP_HOST=smtp.example.com\nSMTP_USER=bot@example.com\n"), 0o600))
	t.Setenv("SMTP_USER", "preset@example.com")

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	t.Cleanup(func() { os.Unsetenv("SMTP_HOST") })

	p := load(t)
	assert.Equal(t, "smtp.example.com", p.SMTPHost)
	assert.Equal(t, "preset@example.com", p.SMTPUser)
}

func TestValidate(t *testing.T) {
	p := &Profile{Mode: "weird", Port: 5000, Data: filepath.Join(t.TempDir(), "data")}
	require.NoError(t, p.Validate())

	assert.Equal(t, "demo", p.Mode)
	assert.True(t, filepath.IsAbs(p.Data))
	assert.DirExists(t, p.ReportsDir())
	assert.DirExists(t, p.TranscriptsDir())
}

func TestValidate_BadPort(t *testing.T) {
	p := &Profile{Mode: "dev", Port: 70000, Data: t.TempDir()}
	assert.Error(t, p.Validate())
}

func TestValidate_BadTimezone(t *testing.T) {
	p := &Profile{Mode: "prod", Port: 5000, Data: t.TempDir(), ReportTimezone: "Mars/Olympus"}
	assert.ErrorContains(t, p.Validate(), "Mars/Olympus")

	p.ReportTimezone = ""
	assert.NoError(t, p.Validate())
}
