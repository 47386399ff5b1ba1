package stories

import "embed"

// defaultTheme holds the templates used when the site configures no
// templateDir: layout.html plus one page template per kind of page.
//
//go:embed templates/*.html
var defaultTheme embed.FS
