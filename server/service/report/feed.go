package report

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/pkg/errors"
)

// Info describes a generated report on disk.
type Info struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the PDFs in the output directory, newest first.
func (b *Builder) List() ([]Info, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read report directory")
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:    e.Name(),
			Path:    filepath.Join(b.dir, e.Name()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].Name > infos[j].Name
		}
		return infos[i].ModTime.After(infos[j].ModTime)
	})
	return infos, nil
}

// Feed builds an Atom-ready feed of the latest reports. baseURL is the public
// origin, e.g. https://pharma.example.com.
func (b *Builder) Feed(baseURL string, limit int) (*feeds.Feed, error) {
	infos, err := b.List()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}

	base := strings.TrimRight(baseURL, "/")
	feed := &feeds.Feed{
		Title:       "PharmaControl - Reportes",
		Link:        &feeds.Link{Href: base + b.urlPrefix},
		Description: "Reportes PDF generados por el asistente",
		Created:     b.now(),
	}
	if len(infos) > 0 {
		feed.Updated = infos[0].ModTime
	}

	for _, info := range infos {
		href := base + b.URL(info.Name)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          href,
			Title:       titleFromName(info.Name),
			Link:        &feeds.Link{Href: href, Type: "application/pdf", Length: strconv.FormatInt(info.Size, 10)},
			Description: info.Name,
			Created:     info.ModTime,
		})
	}
	return feed, nil
}

// titleFromName turns reporte_medicamentos_sin_existencia_20250101_073000_000000001.pdf
// into "Medicamentos sin existencia".
func titleFromName(name string) string {
	s := strings.TrimSuffix(strings.TrimPrefix(name, "reporte_"), ".pdf")
	parts := strings.Split(s, "_")
	// Drop the date, time and nanosecond suffix.
	if len(parts) > 3 {
		parts = parts[:len(parts)-3]
	}
	s = strings.Join(parts, " ")
	if s == "" {
		return name
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
