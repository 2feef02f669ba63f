package app

import (
	"io/fs"

	"github.com/okian/homeview/internal/adapters/http/controller"
	"github.com/okian/homeview/internal/config"
	"github.com/okian/homeview/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the process configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTemplates overrides the template source. It takes precedence over
// the configured template_dir and the embedded templates.
func WithTemplates(fsys fs.FS) Option {
	return func(s *Service) {
		s.templates = fsys
	}
}

// WithRoutes replaces the route table.
func WithRoutes(routes []controller.Route) Option {
	return func(s *Service) {
		if len(routes) > 0 {
			s.routes = routes
		}
	}
}
