package snapshot

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"strings"

	"github.com/bdobrica/Shashin/internal/shashin/catalog"
)

// DefaultStatsURL is the link base that the identifier is appended to.
const DefaultStatsURL = "https://quotex-partner.com/statistics?search="

// DefaultTemplate is the name of the embedded report template.
const DefaultTemplate = "report.html.tmpl"

//go:embed templates/*.tmpl
var embedded embed.FS

// MissingFieldError is returned when the values handed to the renderer lack
// a catalog field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("report value for field %q is missing", e.Field)
}

// Renderer fills the report template with resolved values.
type Renderer struct {
	catalog  *catalog.Catalog
	tmpl     *template.Template
	statsURL string
}

// NewRenderer creates a Renderer over the embedded report template. An empty
// statsURL uses DefaultStatsURL.
func NewRenderer(cat *catalog.Catalog, statsURL string) (*Renderer, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("report template: %w", err)
	}
	return NewRendererFS(sub, DefaultTemplate, cat, statsURL)
}

// NewRendererFS creates a Renderer from the template at path in root, for
// operators who ship their own layout. Templates are trusted operator
// content.
func NewRendererFS(root fs.FS, path string, cat *catalog.Catalog, statsURL string) (*Renderer, error) {
	if statsURL == "" {
		statsURL = DefaultStatsURL
	}
	if _, err := url.Parse(statsURL); err != nil {
		return nil, fmt.Errorf("stats url %q: %w", statsURL, err)
	}

	raw, err := fs.ReadFile(root, path)
	if err != nil {
		return nil, fmt.Errorf("report template %q: %w", path, err)
	}

	r := &Renderer{catalog: cat, statsURL: statsURL}

	// missingkey=error makes a template key without a value fail the render
	// instead of printing "<no value>".
	tmpl, err := template.New(path).
		Option("missingkey=error").
		Funcs(template.FuncMap{"statsURL": r.link}).
		Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("report template %q: parse: %w", path, err)
	}
	r.tmpl = tmpl
	return r, nil
}

func (r *Renderer) link(identifier string) template.URL {
	return template.URL(r.statsURL + url.QueryEscape(identifier))
}

// Render produces the report text. The output is HTML limited to <b> and
// <a> tags, with one line per template line.
func (r *Renderer) Render(values Values) (string, error) {
	for _, name := range r.catalog.Names() {
		if _, ok := values[name]; !ok {
			return "", &MissingFieldError{Field: name}
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, map[string]string(values)); err != nil {
		return "", fmt.Errorf("report template: render: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
