package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hrygo/pharmacontrol/internal/util"
	"github.com/hrygo/pharmacontrol/plugin/ai/cache"
)

// FallbackDescription is shown whenever the language model cannot answer.
const FallbackDescription = "⚠️ En este momento no pude generar la descripción con la IA. Inténtalo de nuevo más tarde."

const (
	systemPrompt = "Eres un experto en farmacología y redacción médica para pacientes."

	descriptionCacheTTL = 24 * time.Hour
	cacheKeyPrefix      = "desc:"
)

// ChatClient is the completion call used by the Describer.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Subject identifies the drug to describe. Category and Supplier are optional
// context taken from the inventory record.
type Subject struct {
	Name     string
	Category string
	Supplier string
}

// Description is the outcome of a describe call. HTML is always usable: on
// failure it holds the sanitized fallback text and Err holds the cause.
type Description struct {
	HTML     string
	Fallback bool
	Cached   bool
	Err      error
}

// Describer produces short patient-facing drug descriptions.
type Describer struct {
	client ChatClient
	cache  cache.CacheService
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewDescriber creates a Describer. A nil client always yields the fallback;
// a nil cache disables caching.
func NewDescriber(client ChatClient, c cache.CacheService) *Describer {
	return &Describer{
		client: client,
		cache:  c,
		md:     goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
		policy: bluemonday.UGCPolicy(),
	}
}

// Describe never fails; failures are reported through Description.Err.
func (d *Describer) Describe(ctx context.Context, s Subject) Description {
	key := cacheKey(s)
	if d.cache != nil {
		if cached, ok := d.cache.Get(ctx, key); ok {
			return Description{HTML: string(cached), Cached: true}
		}
	}

	if d.client == nil {
		return d.fallback(fmt.Errorf("language model not configured"))
	}

	text, err := d.client.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(s)},
	})
	if err != nil {
		slog.Warn("description generation failed", "subject", s.Name, "error", err)
		return d.fallback(err)
	}

	rendered, err := d.RenderMarkdown(text)
	if err != nil {
		return d.fallback(err)
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, []byte(rendered), descriptionCacheTTL); err != nil {
			slog.Debug("failed to cache description", "error", err)
		}
	}
	return Description{HTML: rendered}
}

// RenderMarkdown converts model output to sanitized HTML.
func (d *Describer) RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := d.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.TrimSpace(d.policy.Sanitize(buf.String())), nil
}

func (d *Describer) fallback(err error) Description {
	return Description{
		HTML:     FallbackDescription,
		Fallback: true,
		Err:      err,
	}
}

// BuildPrompt returns the user prompt for a subject.
func BuildPrompt(s Subject) string {
	var b strings.Builder
	b.WriteString("Eres un asistente farmacéutico profesional que explica las cosas de forma\n")
	b.WriteString("clara y sencilla, como si hablaras con un paciente.\n\n")
	b.WriteString("Explica qué es, para qué sirve y consideraciones generales del siguiente medicamento:\n\n")
	fmt.Fprintf(&b, "Medicamento: %s\n", strings.TrimSpace(s.Name))
	if s.Category != "" || s.Supplier != "" {
		fmt.Fprintf(&b, "Categoría: %s\n", s.Category)
		fmt.Fprintf(&b, "Proveedor: %s\n", s.Supplier)
	}
	b.WriteString("\nIndicaciones:\n")
	b.WriteString("- Usa un tono natural, amable y profesional.\n")
	b.WriteString("- No des dosis exactas ni esquemas de tratamiento, solo orientación general.\n")
	b.WriteString("- No más de 6-8 líneas.\n")
	b.WriteString("- Termina con una advertencia tipo: \"Siempre consulta a un profesional de la salud\".\n")
	return b.String()
}

func cacheKey(s Subject) string {
	return cacheKeyPrefix + util.Normalize(s.Name) + "|" + util.Normalize(s.Category) + "|" + util.Normalize(s.Supplier)
}
