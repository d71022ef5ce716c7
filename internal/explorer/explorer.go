// Package explorer renders the interactive query page served at the root path.
package explorer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
)

// ContentType is the media type the page is served with.
const ContentType = "text/html; charset=utf-8"

const (
	graphiQLVersion = "3.0.9"
	reactVersion    = "18.2.0"
)

//go:embed page.html.tmpl
var pageTemplate string

var tmpl = template.Must(template.New("explorer").Parse(pageTemplate))

// Config controls what the page shows.
type Config struct {
	Title        string
	Endpoint     string
	DefaultQuery string
}

// DefaultConfig points the explorer at the root endpoint.
func DefaultConfig() Config {
	return Config{
		Title:        "users-graphql explorer",
		Endpoint:     "/",
		DefaultQuery: "{\n  users {\n    age\n    name\n  }\n}\n",
	}
}

// Page is a rendered explorer page. The bytes are fixed at construction.
type Page struct {
	body []byte
}

// New renders the page once.
func New(cfg Config) (*Page, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/"
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Config
		GraphiQLVersion string
		ReactVersion    string
	}{cfg, graphiQLVersion, reactVersion})
	if err != nil {
		return nil, fmt.Errorf("render explorer page: %w", err)
	}
	return &Page{body: buf.Bytes()}, nil
}

// Bytes returns a copy of the rendered page.
func (p *Page) Bytes() []byte {
	return bytes.Clone(p.body)
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(p.body)
}
