package render

import (
	"github.com/okian/homeview/pkg/logger"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithPrefix sets the directory (inside the template FS) that holds views.
func WithPrefix(prefix string) Option {
	return func(r *Resolver) {
		r.prefix = prefix
	}
}

// WithSuffix sets the file extension appended to a view token.
func WithSuffix(suffix string) Option {
	return func(r *Resolver) {
		if suffix != "" {
			r.suffix = suffix
		}
	}
}

// WithLayoutDir sets the directory whose templates are shared by every view.
func WithLayoutDir(dir string) Option {
	return func(r *Resolver) {
		r.layoutDir = dir
	}
}

// WithMinify toggles HTML minification of rendered pages.
func WithMinify(enabled bool) Option {
	return func(r *Resolver) {
		r.minifyEnabled = enabled
	}
}

// WithLiveReload makes the liveReload template func emit a client for the
// websocket endpoint at path. An empty path disables it.
func WithLiveReload(path string) Option {
	return func(r *Resolver) {
		r.liveReloadPath = path
	}
}

// WithLogger sets the logger used for reloads and render failures.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}
