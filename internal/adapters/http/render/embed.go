package render

import (
	"embed"
	"io/fs"
)

//go:embed templates
var embeddedFS embed.FS

// Embedded returns the templates compiled into the binary, rooted so that
// views live under "views/" and layouts under "layouts/".
func Embedded() fs.FS {
	sub, err := fs.Sub(embeddedFS, "templates")
	if err != nil {
		return embeddedFS
	}
	return sub
}
