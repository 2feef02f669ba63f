// Package render resolves view tokens to pre-parsed html templates and writes
// the rendered page. Templates are parsed once at construction so a broken
// template set fails at startup instead of on the first request.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/samber/lo"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"

	"github.com/okian/homeview/internal/domain/view"
	"github.com/okian/homeview/pkg/logger"
	"github.com/okian/homeview/pkg/metrics"
)

const (
	defaultPrefix    = "views/"
	defaultSuffix    = ".html"
	defaultLayoutDir = "layouts/"

	requestIDHeader = "X-Request-ID"
	htmlContentType = "text/html; charset=utf-8"
)

// Page is the data every view template receives.
type Page struct {
	View      string
	Path      string
	Method    string
	RequestID string
	Data      any
}

// Resolver maps view tokens to templates found at prefix + token + suffix.
type Resolver struct {
	fsys fs.FS
	dir  string // on-disk root when built by NewFromDir; enables Watch

	prefix         string
	suffix         string
	layoutDir      string
	minifyEnabled  bool
	liveReloadPath string
	logger         logger.Logger

	minifier *minify.M

	mu    sync.RWMutex
	views map[view.Token]*template.Template
}

// New parses every view in fsys and returns a ready Resolver.
func New(fsys fs.FS, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		fsys:      fsys,
		prefix:    defaultPrefix,
		suffix:    defaultSuffix,
		layoutDir: defaultLayoutDir,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fsys == nil {
		return nil, fmt.Errorf("%w: nil template filesystem", ErrParse)
	}
	if r.minifyEnabled {
		r.minifier = minify.New()
		r.minifier.AddFunc("text/html", minhtml.Minify)
	}

	views, err := r.parse()
	if err != nil {
		return nil, err
	}
	r.views = views
	metrics.UpdateTemplatesLoaded(len(views))
	return r, nil
}

// NewFromDir is New over an on-disk template root. Resolvers built this way can Watch.
func NewFromDir(dir string, opts ...Option) (*Resolver, error) {
	r, err := New(dirFS(dir), opts...)
	if err != nil {
		return nil, err
	}
	r.dir = dir
	return r, nil
}

// Has reports whether token resolves to a parsed view.
func (r *Resolver) Has(token view.Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.views[token]
	return ok
}

// Views lists the resolvable tokens in sorted order.
func (r *Resolver) Views() []view.Token {
	r.mu.RLock()
	out := lo.Keys(r.views)
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Render executes the view for token and writes it with status 200.
// Nothing is written to w when an error is returned, except ErrWrite: the
// status line has gone out and the client stopped reading the body.
func (r *Resolver) Render(w http.ResponseWriter, req *http.Request, token view.Token) error {
	if err := token.Validate(); err != nil {
		metrics.RecordViewRender("", "error")
		return fmt.Errorf("%w: %w", ErrRender, err)
	}

	r.mu.RLock()
	t, ok := r.views[token]
	r.mu.RUnlock()
	if !ok {
		metrics.RecordViewRender(token.String(), "not_found")
		return fmt.Errorf("%w: %s", ErrViewNotFound, token)
	}

	page := Page{View: token.String()}
	if req != nil {
		page.Path = req.URL.Path
		page.Method = req.Method
		page.RequestID = req.Header.Get(requestIDHeader)
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, token.String(), page); err != nil {
		metrics.RecordViewRender(token.String(), "error")
		return fmt.Errorf("%w: %s: %w", ErrRender, token, err)
	}
	body := r.minify(req, buf.Bytes())
	metrics.RecordViewRenderLatency(token.String(), float64(time.Since(start).Microseconds())/1000)
	metrics.RecordViewRender(token.String(), "ok")

	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, token, err)
	}
	return nil
}

// Reload re-parses the template set. On failure the previous set stays active.
func (r *Resolver) Reload() error {
	views, err := r.parse()
	if err != nil {
		metrics.RecordTemplateReload("error")
		return err
	}
	r.mu.Lock()
	r.views = views
	r.mu.Unlock()
	metrics.RecordTemplateReload("ok")
	metrics.UpdateTemplatesLoaded(len(views))
	return nil
}

func (r *Resolver) minify(req *http.Request, body []byte) []byte {
	if r.minifier == nil {
		return body
	}
	var out bytes.Buffer
	if err := r.minifier.Minify("text/html", &out, bytes.NewReader(body)); err != nil {
		ctx := context.Background()
		if req != nil {
			ctx = req.Context()
		}
		r.logger.Warn(ctx, "html minify failed; serving unminified", logger.Error(err))
		return body
	}
	return out.Bytes()
}

func (r *Resolver) funcs() template.FuncMap {
	fm := sprig.FuncMap()
	fm["liveReload"] = func() template.HTML {
		if r.liveReloadPath == "" {
			return ""
		}
		return template.HTML(fmt.Sprintf(liveReloadScript, template.JSEscapeString(r.liveReloadPath)))
	}
	return fm
}

// parse builds a fresh token -> template map from the filesystem.
func (r *Resolver) parse() (map[view.Token]*template.Template, error) {
	base := template.New("").Funcs(r.funcs())

	var layouts []string
	if strings.Trim(r.layoutDir, "/") != "" {
		var err error
		if layouts, err = r.files(r.layoutDir); err != nil {
			return nil, err
		}
	}
	for _, name := range layouts {
		src, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
		}
		if _, err := base.New(name).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
		}
	}

	names, err := r.files(r.prefix)
	if err != nil {
		return nil, err
	}
	views := make(map[view.Token]*template.Template, len(names))
	for _, name := range names {
		token := r.tokenFor(name)
		if r.isLayout(name) || token.Validate() != nil {
			continue
		}
		src, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
		}
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("%w: clone layouts for %s: %w", ErrParse, name, err)
		}
		if _, err := t.New(token.String()).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
		}
		views[token] = t
	}

	if len(views) == 0 {
		return nil, fmt.Errorf("%w: no views matching %s*%s", ErrParse, r.prefix, r.suffix)
	}
	return views, nil
}

// files lists template files under dir carrying the configured suffix.
// A missing dir yields no files; any other stat failure is a parse error.
func (r *Resolver) files(dir string) ([]string, error) {
	root := strings.Trim(dir, "/")
	if root == "" {
		root = "."
	}
	if _, err := fs.Stat(r.fsys, root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, root, err)
	}

	var out []string
	err := fs.WalkDir(r.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, r.suffix) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", ErrParse, root, err)
	}
	slices.Sort(out)
	return out, nil
}

func (r *Resolver) tokenFor(name string) view.Token {
	rel := strings.TrimPrefix(name, strings.Trim(r.prefix, "/")+"/")
	if strings.Trim(r.prefix, "/") == "" {
		rel = name
	}
	return view.Token(strings.TrimSuffix(path.Clean(rel), r.suffix))
}

func (r *Resolver) isLayout(name string) bool {
	dir := strings.Trim(r.layoutDir, "/")
	return dir != "" && strings.HasPrefix(name, dir+"/")
}

const liveReloadScript = `<script>(function(){var p=location.protocol==="https:"?"wss://":"ws://";` +
	`var s=new WebSocket(p+location.host+"%s");s.onmessage=function(e){if(e.data==="reload"){location.reload();}};})();</script>`
