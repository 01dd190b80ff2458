package handler

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/DukeRupert/cardapiofacil/internal/templ/components/toast"
)

// Renderer manages template parsing and rendering with isolated template
// sets. Every page uses the public layout.
//
// Templates are organized as:
//   - layouts/public.html - base layout
//   - partials/*.html - fragments shared by pages and returned alone to htmx
//   - pages/*.html - pages, each parsed into its own clone of the layout
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
	fsys      fs.FS
	isDev     bool
	mu        sync.RWMutex
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// FS holds the template tree. In development it is an os.DirFS so
	// edits show up on the next request.
	FS     fs.FS
	Logger *slog.Logger
	IsDev  bool
}

// NewRenderer parses every template in cfg.FS.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		logger:    cfg.Logger,
		fsys:      cfg.FS,
		isDev:     cfg.IsDev,
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Renderer) load() error {
	templates := make(map[string]*template.Template)

	partialFiles, err := fs.Glob(r.fsys, "partials/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob partials: %w", err)
	}

	// Each partial is also a standalone template for htmx responses.
	for _, partial := range partialFiles {
		partialTmpl, err := template.New("").Funcs(TemplateFuncs()).ParseFS(r.fsys, partial)
		if err != nil {
			return fmt.Errorf("failed to parse partial %s: %w", partial, err)
		}
		templates["partial/"+baseName(partial)] = partialTmpl
	}

	base, err := template.New("public").Funcs(TemplateFuncs()).ParseFS(r.fsys, "layouts/public.html")
	if err != nil {
		return fmt.Errorf("failed to parse public layout: %w", err)
	}
	if len(partialFiles) > 0 {
		base, err = base.ParseFS(r.fsys, partialFiles...)
		if err != nil {
			return fmt.Errorf("failed to parse partials into public layout: %w", err)
		}
	}

	pages, err := fs.Glob(r.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob pages: %w", err)
	}

	for _, page := range pages {
		pageTmpl, err := base.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout for %s: %w", page, err)
		}

		pageTmpl, err = pageTmpl.ParseFS(r.fsys, page)
		if err != nil {
			return fmt.Errorf("failed to parse page %s: %w", page, err)
		}
		templates[baseName(page)] = pageTmpl
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

func baseName(name string) string {
	return strings.TrimSuffix(path.Base(name), path.Ext(name))
}

// Reload reparses all templates. Useful for development.
func (r *Renderer) Reload() error {
	return r.load()
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	if r.isDev {
		if err := r.Reload(); err != nil {
			return nil, fmt.Errorf("template reload failed: %w", err)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render renders a template to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, err := r.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.ExecuteTemplate(w, executeName(name), data)
}

// executeName is the template a set starts from: the layout for pages and
// the fragment itself for partials.
func executeName(name string) string {
	if partial, ok := strings.CutPrefix(name, "partial/"); ok {
		return partial
	}
	return "public"
}

// RenderHTTP renders a page with the given status.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, status int, name string, data any) {
	r.write(w, status, name, data, nil)
}

// RenderPartial renders a partial (for htmx responses). The partial file
// defines a template named after the file.
func (r *Renderer) RenderPartial(w http.ResponseWriter, status int, name string, data any) {
	r.write(w, status, "partial/"+name, data, nil)
}

// RenderPartialWithToast renders a partial and appends an out-of-band toast.
func (r *Renderer) RenderPartialWithToast(w http.ResponseWriter, status int, name string, data any, t toast.Data) {
	r.write(w, status, "partial/"+name, data, &t)
}

func (r *Renderer) write(w http.ResponseWriter, status int, name string, data any, t *toast.Data) {
	// Render to buffer first to catch errors before writing headers
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}
	if t != nil {
		if err := toast.OOB(*t).Render(context.Background(), &buf); err != nil {
			r.logger.Error("toast render failed", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
