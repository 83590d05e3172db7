// Package mail sends generated reports by SMTP.
package mail

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

// DefaultSubject is the subject line of the daily report email.
const DefaultSubject = "📊 Reportes automáticos de PharmaControl"

// Config holds SMTP configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From string
	// To lists the recipients.
	To      []string
	Subject string
	Timeout time.Duration
}

// Enabled reports whether enough settings are present to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && len(c.To) > 0 && c.from() != ""
}

func (c Config) from() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// Sender delivers a built message.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends report emails.
type Mailer struct {
	config Config
	// newSender is replaced in tests.
	newSender func(Config) (Sender, error)
	now       func() time.Time
}

// New creates a Mailer.
func New(config Config) *Mailer {
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Mailer{
		config:    config,
		newSender: dialSMTP,
		now:       time.Now,
	}
}

// Enabled reports whether the mailer is configured.
func (m *Mailer) Enabled() bool {
	return m.config.Enabled()
}

// SendReports sends one message with every file attached.
func (m *Mailer) SendReports(ctx context.Context, files []string) error {
	if !m.Enabled() {
		return errors.New("smtp is not configured")
	}
	if len(files) == 0 {
		return errors.New("no files to send")
	}

	msg, err := m.BuildMessage(files)
	if err != nil {
		return err
	}

	sender, err := m.newSender(m.config)
	if err != nil {
		return errors.Wrap(err, "failed to create smtp client")
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	if err := sender.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send mail via %s", m.config.Host)
	}

	slog.Info("report email sent", "to", strings.Join(m.config.To, ","), "attachments", len(files))
	return nil
}

var bodyTmpl = template.Must(template.New("body").Parse(`<h3>📊 Reportes automáticos generados</h3>
<p>Adjunto encontrarás los reportes del día ({{.Date}}):</p>
<ul>{{range .Files}}<li>{{.}}</li>{{end}}</ul>
<p>Saludos,<br>PharmaControl IA 🤖💊</p>`))

// BuildMessage assembles the report email.
func (m *Mailer) BuildMessage(files []string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.config.from()); err != nil {
		return nil, errors.Wrap(err, "invalid sender address")
	}
	if err := msg.To(m.config.To...); err != nil {
		return nil, errors.Wrap(err, "invalid recipient address")
	}
	msg.Subject(m.config.Subject)
	msg.SetDate()

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}

	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, struct {
		Date  string
		Files []string
	}{
		Date:  m.now().Format("02/01/2006"),
		Files: names,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to render mail body")
	}
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	for _, f := range files {
		msg.AttachFile(f)
	}
	return msg, nil
}

func dialSMTP(cfg Config) (Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return mail.NewClient(cfg.Host, opts...)
}
