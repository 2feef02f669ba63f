// Package view defines the token a request handler hands to the view resolver.
package view

import (
	"errors"
	"strings"
)

// ErrEmptyToken is returned when a token carries no view name.
var ErrEmptyToken = errors.New("view token is empty")

// Token identifies which view template the host should render.
// It has no structure of its own; the resolver decides where it lives.
type Token string

// Home is the view rendered for the site root.
const Home Token = "home"

// String implements fmt.Stringer.
func (t Token) String() string { return string(t) }

// Validate reports whether t can be handed to a resolver.
func (t Token) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return ErrEmptyToken
	}
	return nil
}
