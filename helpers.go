package stories

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// Slugify converts a name to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// replaceSlashes joins path segments into an absolute URL path with a
// trailing slash, collapsing any doubled slashes.
func replaceSlashes(segments ...string) string {
	p := path.Join(append([]string{"/"}, segments...)...)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// absoluteURL resolves a site-relative path against the site URL.
func absoluteURL(base, p string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + p
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + p
	return u.String()
}
