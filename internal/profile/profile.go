package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hrygo/pharmacontrol/server/timezone"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory; reports and transcripts live under it.
	Data string
	// Version is the current version of server
	Version string

	// Inventory backend
	BackendURL          string // NEST_API_URL (default: http://localhost:3000/api)
	BackendServiceToken string // NEST_SERVICE_TOKEN
	BackendUpload       bool   // NEST_UPLOAD_ENABLED
	OAuthTokenURL       string // NEST_OAUTH_TOKEN_URL
	OAuthClientID       string // NEST_OAUTH_CLIENT_ID
	OAuthClientSecret   string // NEST_OAUTH_CLIENT_SECRET

	// Language model
	OpenAIAPIKey  string // OPENAI_API_KEY
	OpenAIBaseURL string // OPENAI_BASE_URL
	OpenAIModel   string // OPENAI_MODEL (default: gpt-4o-mini)

	// Email
	SMTPHost string   // SMTP_HOST
	SMTPPort int      // SMTP_PORT (default: 587)
	SMTPUser string   // SMTP_USER
	SMTPPass string   // SMTP_PASS
	MailTo   []string // REPORTS_EMAIL_TO, comma separated

	// Reports
	ReportSchedule string // REPORTS_SCHEDULE HH:MM (default: 07:30)
	ReportTimezone string // REPORTS_TIMEZONE (default: America/Mexico_City)
	ReportLogo     string // REPORTS_LOGO

	// ChatRateLimit is requests per minute per client; 0 disables limiting.
	ChatRateLimit int // CHAT_RATE_LIMIT (default: 30)
	// RequestTimeout bounds backend calls.
	RequestTimeout time.Duration
}

// envKeys maps viper keys to their environment variables.
var envKeys = map[string]string{
	"mode":                 "PHARMA_MODE",
	"addr":                 "PHARMA_ADDR",
	"port":                 "PHARMA_PORT",
	"data":                 "PHARMA_DATA",
	"backend.url":          "NEST_API_URL",
	"backend.token":        "NEST_SERVICE_TOKEN",
	"backend.upload":       "NEST_UPLOAD_ENABLED",
	"backend.oauth.url":    "NEST_OAUTH_TOKEN_URL",
	"backend.oauth.id":     "NEST_OAUTH_CLIENT_ID",
	"backend.oauth.secret": "NEST_OAUTH_CLIENT_SECRET",
	"backend.timeout":      "NEST_TIMEOUT",
	"openai.key":           "OPENAI_API_KEY",
	"openai.url":           "OPENAI_BASE_URL",
	"openai.model":         "OPENAI_MODEL",
	"smtp.host":            "SMTP_HOST",
	"smtp.port":            "SMTP_PORT",
	"smtp.user":            "SMTP_USER",
	"smtp.pass":            "SMTP_PASS",
	"reports.to":           "REPORTS_EMAIL_TO",
	"reports.schedule":     "REPORTS_SCHEDULE",
	"reports.timezone":     "REPORTS_TIMEZONE",
	"reports.logo":         "REPORTS_LOGO",
	"chat.rate_limit":      "CHAT_RATE_LIMIT",
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault("mode", "demo")
	v.SetDefault("addr", "")
	v.SetDefault("port", 5000)
	v.SetDefault("data", "./data")
	v.SetDefault("backend.url", "http://localhost:3000/api")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("reports.schedule", "07:30")
	v.SetDefault("reports.timezone", "America/Mexico_City")
	v.SetDefault("chat.rate_limit", 30)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return errors.Wrapf(err, "failed to bind %s", env)
		}
	}
	return nil
}

// LoadDotEnv loads .env files that exist. Variables already set win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("failed to load env file", "path", p, "error", err)
		}
	}
}

// FromViper builds a Profile from v.
func FromViper(v *viper.Viper) *Profile {
	return &Profile{
		Mode:                v.GetString("mode"),
		Addr:                v.GetString("addr"),
		Port:                v.GetInt("port"),
		Data:                v.GetString("data"),
		BackendURL:          v.GetString("backend.url"),
		BackendServiceToken: v.GetString("backend.token"),
		BackendUpload:       v.GetBool("backend.upload"),
		OAuthTokenURL:       v.GetString("backend.oauth.url"),
		OAuthClientID:       v.GetString("backend.oauth.id"),
		OAuthClientSecret:   v.GetString("backend.oauth.secret"),
		RequestTimeout:      v.GetDuration("backend.timeout"),
		OpenAIAPIKey:        v.GetString("openai.key"),
		OpenAIBaseURL:       v.GetString("openai.url"),
		OpenAIModel:         v.GetString("openai.model"),
		SMTPHost:            v.GetString("smtp.host"),
		SMTPPort:            v.GetInt("smtp.port"),
		SMTPUser:            v.GetString("smtp.user"),
		SMTPPass:            v.GetString("smtp.pass"),
		MailTo:              splitList(v.GetString("reports.to")),
		ReportSchedule:      v.GetString("reports.schedule"),
		ReportTimezone:      v.GetString("reports.timezone"),
		ReportLogo:          v.GetString("reports.logo"),
		ChatRateLimit:       v.GetInt("chat.rate_limit"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.OpenAIAPIKey != ""
}

// IsOAuthEnabled returns true when client-credentials settings are complete.
func (p *Profile) IsOAuthEnabled() bool {
	return p.OAuthTokenURL != "" && p.OAuthClientID != "" && p.OAuthClientSecret != ""
}

// ReportsDir is where generated PDFs are written.
func (p *Profile) ReportsDir() string {
	return filepath.Join(p.Data, "reportes")
}

// TranscriptsDir is where session snapshots are written.
func (p *Profile) TranscriptsDir() string {
	return filepath.Join(p.Data, "historial")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.Data == "" {
		p.Data = "./data"
	}
	if p.ChatRateLimit < 0 {
		p.ChatRateLimit = 0
	}
	if !timezone.IsValidTimezone(p.ReportTimezone) {
		return errors.Errorf("invalid report timezone %q", p.ReportTimezone)
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	for _, dir := range []string{p.ReportsDir(), p.TranscriptsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "unable to create %s", dir)
		}
	}
	return nil
}
