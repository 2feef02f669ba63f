package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/okian/homeview/internal/adapters/http/render"
	"github.com/okian/homeview/internal/domain/view"
	"github.com/okian/homeview/pkg/logger"
)

// Renderer turns a view token into a response. It must write nothing when it
// returns an error so the caller can still send an error status. The one
// exception is render.ErrWrite, returned once the response is already started.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, token view.Token) error
}

// Route binds a ServeMux pattern to a controller.
type Route struct {
	// Name labels the route in logs and metrics.
	Name string `yaml:"name"`
	// Pattern is an http.ServeMux pattern, e.g. "/{$}" or "GET /about".
	Pattern string `yaml:"pattern"`
	// View is the token the controller is expected to return; informational.
	View view.Token `yaml:"view"`

	Controller Controller `yaml:"-"`
}

// Routes returns the active route table.
//
// The site root is the only bound path. It carries no method so any verb is
// accepted, and "{$}" keeps it from swallowing every other path.
func Routes() []Route {
	return []Route{
		{Name: "home", Pattern: "/{$}", View: view.Home, Controller: NewHomeController()},
	}
}

// Middleware wraps the handler built for a named route.
type Middleware func(next http.HandlerFunc, name string) http.HandlerFunc

// Register binds every route on mux. Each request runs the route's controller
// and hands the resulting token to renderer. Failures become a 500.
func Register(ctx context.Context, mux *http.ServeMux, renderer Renderer, log logger.Logger, routes []Route, mws ...Middleware) {
	if mux == nil {
		panic("mux is nil")
	}
	if renderer == nil {
		panic("renderer is nil")
	}
	if log == nil {
		log = logger.Nop()
	}

	for _, rt := range routes {
		if rt.Controller == nil {
			panic("route " + rt.Name + " has no controller")
		}
		h := handlerFor(rt, renderer, log)
		for _, mw := range mws {
			h = mw(h, rt.Name)
		}
		mux.HandleFunc(rt.Pattern, h)
		log.Debug(ctx, "route registered", logger.String("route", rt.Name), logger.String("pattern", rt.Pattern))
	}
}

func handlerFor(rt Route, renderer Renderer, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := rt.Controller.Handle(r)
		if err := token.Validate(); err != nil {
			log.Error(r.Context(), "controller returned an invalid view",
				logger.String("route", rt.Name), logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if err := renderer.Render(w, r, token); err != nil {
			if errors.Is(err, render.ErrWrite) {
				log.Debug(r.Context(), "client went away during render",
					logger.String("route", rt.Name), logger.String("view", token.String()), logger.Error(err))
				return
			}
			log.Error(r.Context(), "view render failed",
				logger.String("route", rt.Name), logger.String("view", token.String()), logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
}

// Validate checks the table before registration; ServeMux would panic on a
// duplicate pattern instead.
func Validate(routes []Route) error {
	if len(routes) == 0 {
		return ErrNoRoutes
	}
	if dup := lo.FindDuplicatesBy(routes, func(rt Route) string { return rt.Name }); len(dup) > 0 {
		return fmt.Errorf("%w: name %s", ErrDuplicateRoute, dup[0].Name)
	}
	if dup := lo.FindDuplicatesBy(routes, func(rt Route) string { return rt.Pattern }); len(dup) > 0 {
		return fmt.Errorf("%w: pattern %s", ErrDuplicateRoute, dup[0].Pattern)
	}
	return nil
}
