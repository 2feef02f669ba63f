// Package controller maps inbound request paths to view tokens.
//
// Controllers are plain values registered through an explicit route table;
// nothing is discovered at runtime. A controller only decides which view to
// show. Rendering belongs to the Renderer the routes are registered with.
package controller

import (
	"net/http"

	"github.com/okian/homeview/internal/domain/view"
)

// Controller picks the view for a request that already matched its route.
// Implementations must be safe for concurrent use.
type Controller interface {
	Handle(r *http.Request) view.Token
}

// Func adapts an ordinary function to Controller.
type Func func(r *http.Request) view.Token

// Handle calls f(r).
func (f Func) Handle(r *http.Request) view.Token { return f(r) }

// HomeController serves the site root.
type HomeController struct{}

// NewHomeController creates a new home controller.
func NewHomeController() *HomeController {
	return &HomeController{}
}

// Handle returns the home view. The request is not inspected.
func (HomeController) Handle(*http.Request) view.Token {
	return view.Home
}
