package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/pharmacontrol/internal/util"
	"github.com/hrygo/pharmacontrol/plugin/inventory"
)

const (
	defaultMaxConcurrent = 3
	maxNameAttempts      = 8
	logoPixels           = 240
)

// Config configures a Builder.
type Config struct {
	// Dir is where PDFs are written.
	Dir string
	// URLPrefix is the public path Dir is served under, e.g. /static/reportes.
	URLPrefix string
	// LogoPath is an optional image drawn in the page header.
	LogoPath string
	// MaxConcurrent limits simultaneous PDF renders.
	MaxConcurrent int64
	// Location is used for the printed date and the file name stamp.
	Location *time.Location
}

// Job is a request to render one titled report.
type Job struct {
	Title    string
	Category Category
	Records  []inventory.Record
	// Dir overrides the builder's output directory.
	Dir string
}

// Builder renders reports to PDF files.
type Builder struct {
	dir       string
	urlPrefix string
	logo      []byte
	sem       *semaphore.Weighted
	now       func() time.Time
}

// NewBuilder creates the output directory and loads the optional logo.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("report directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create report directory %s", cfg.Dir)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	b := &Builder{
		dir:       cfg.Dir,
		urlPrefix: strings.TrimRight(cfg.URLPrefix, "/"),
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		now:       time.Now,
	}
	if loc := cfg.Location; loc != nil {
		b.now = func() time.Time { return time.Now().In(loc) }
	}

	if cfg.LogoPath != "" {
		logo, err := loadLogo(cfg.LogoPath)
		if err != nil {
			slog.Warn("report logo unavailable, rendering without it", "path", cfg.LogoPath, "error", err)
		} else {
			b.logo = logo
		}
	}

	return b, nil
}

// Dir returns the default output directory.
func (b *Builder) Dir() string {
	return b.dir
}

// BuildReport renders job to a new PDF and returns its path. Records are
// read only.
func (b *Builder) BuildReport(ctx context.Context, job Job) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", errors.Wrap(err, "report render slot unavailable")
	}
	defer b.sem.Release(1)

	dir := job.Dir
	if dir == "" {
		dir = b.dir
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create report directory %s", dir)
	}

	now := b.now()
	doc := &pdfDoc{
		layout: layoutFor(job.Category),
		title:  job.Title,
		rows:   Rows(job.Records, job.Category, 0),
		logo:   b.logo,
		now:    now,
	}

	var buf bytes.Buffer
	if err := doc.render(&buf); err != nil {
		return "", err
	}

	f, err := createUnique(dir, job.Title, now)
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		os.Remove(name)
		return "", errors.Wrapf(err, "failed to write %s", name)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", errors.Wrapf(err, "failed to close %s", name)
	}

	slog.Info("report generated",
		"file", filepath.Base(name),
		"category", string(doc.layout.category),
		"records", len(job.Records),
	)
	return name, nil
}

// URL returns the public link of a generated report.
func (b *Builder) URL(file string) string {
	return path.Join(b.urlPrefix, filepath.Base(file))
}

// FileName returns reporte_<slug>_<YYYYmmdd_HHMMSS>_<nanoseconds>.pdf.
func FileName(title string, t time.Time) string {
	return fmt.Sprintf("reporte_%s_%s_%09d.pdf", slug(title), t.Format("20060102_150405"), t.Nanosecond())
}

func slug(title string) string {
	s := strings.ReplaceAll(util.Normalize(title), " ", "_")
	if s == "" {
		return "sin_titulo"
	}
	return s
}

// createUnique opens a new file named after title and t, bumping the time
// suffix when a file of that name already exists.
func createUnique(dir, title string, t time.Time) (*os.File, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := filepath.Join(dir, FileName(title, t.Add(time.Duration(i))))
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "failed to create %s", name)
		}
	}
	return nil, errors.Errorf("could not allocate a unique report name for %q", title)
}

func loadLogo(p string) ([]byte, error) {
	img, err := imaging.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open logo")
	}
	var resized image.Image = img
	if img.Bounds().Dx() > logoPixels {
		resized = imaging.Resize(img, logoPixels, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "failed to encode logo")
	}
	return buf.Bytes(), nil
}
