// Package renderer renders stored template sources into HTML documents.
package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"
)

// Renderer renders a template source with a flat variable map.
type Renderer interface {
	Render(name, source string, vars map[string]string) ([]byte, error)
}

// HTMLRenderer uses html/template and keeps the last parsed source per template name.
type HTMLRenderer struct {
	mu    sync.RWMutex
	cache map[string]parsedTemplate
}

type parsedTemplate struct {
	source string
	tpl    *template.Template
}

// NewHTMLRenderer returns an empty renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{cache: make(map[string]parsedTemplate)}
}

func (r *HTMLRenderer) parse(name, source string) (*template.Template, error) {
	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok && cached.source == source {
		return cached.tpl, nil
	}

	// Missing variables render as empty strings.
	tpl, err := template.New(name).Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	r.mu.Lock()
	r.cache[name] = parsedTemplate{source: source, tpl: tpl}
	r.mu.Unlock()
	return tpl, nil
}

// Render executes the template. Values are HTML-escaped; URL variables used in
// src/href attributes are filtered by html/template's URL sanitizer.
func (r *HTMLRenderer) Render(name, source string, vars map[string]string) ([]byte, error) {
	tpl, err := r.parse(name, source)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
