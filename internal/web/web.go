// Package web embeds the HTML templates and static assets served by the
// landing page.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templates embed.FS

//go:embed static
var static embed.FS

// Templates returns the template tree rooted at layouts/, pages/ and
// partials/.
func Templates() fs.FS {
	return mustSub(templates, "templates")
}

// Static returns the static asset tree.
func Static() fs.FS {
	return mustSub(static, "static")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		// Only fails for an invalid path, which is a compile-time constant here.
		panic(err)
	}
	return sub
}
