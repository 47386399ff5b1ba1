package stories

import (
	"bufio"
	"bytes"

	"github.com/russross/blackfriday/v2"
)

const htmlFlags = blackfriday.UseXHTML |
	blackfriday.Smartypants |
	blackfriday.SmartypantsFractions |
	blackfriday.SmartypantsLatexDashes

const extensions = blackfriday.NoIntraEmphasis |
	blackfriday.Tables |
	blackfriday.FencedCode |
	blackfriday.Autolink |
	blackfriday.Strikethrough |
	blackfriday.AutoHeadingIDs

type renderer interface {
	render(in []byte) string
}

func newMarkdownRenderer() renderer {
	return &blackfridayHtmlRenderer{
		params:     blackfriday.HTMLRendererParameters{Flags: htmlFlags},
		extensions: extensions,
	}
}

type blackfridayHtmlRenderer struct {
	params     blackfriday.HTMLRendererParameters
	extensions blackfriday.Extensions
}

// The HTML renderer keeps heading ids between runs, so each document gets
// a fresh one.
func (b *blackfridayHtmlRenderer) render(in []byte) string {
	in = stripHighlightDirectives(in)
	r := blackfriday.NewHTMLRenderer(b.params)
	return string(blackfriday.Run(in, blackfriday.WithRenderer(r), blackfriday.WithExtensions(b.extensions)))
}

// For now, just strip the highlighting directives.
func stripHighlightDirectives(text []byte) []byte {
	newText := bytes.NewBuffer(make([]byte, 0, len(text)))
	r := bufio.NewReader(bytes.NewReader(text))

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && !bytes.HasPrefix(bytes.TrimSpace(line), []byte("!highlight")) {
			newText.Write(line)
		}
		if err != nil {
			break
		}
	}

	return newText.Bytes()
}
