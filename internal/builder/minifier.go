package builder

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

type Minifier interface {
	Bytes(mediatype string, b []byte) ([]byte, error)
}

// TDMinifier collapses whitespace and drops comments
type TDMinifier struct {
	Minifier *minify.M
}

func (m *TDMinifier) Bytes(mediatype string, b []byte) ([]byte, error) {
	return m.Minifier.Bytes(mediatype, b)
}

type NOOPMinifier struct {
}

func (m *NOOPMinifier) Bytes(mediatype string, b []byte) ([]byte, error) {
	return b, nil
}

var htmlMinifier Minifier = newTDMinifier()

func newTDMinifier() *TDMinifier {
	minifier := minify.New()
	minifier.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &TDMinifier{
		Minifier: minifier,
	}
}

func minifierFor(enabled bool) Minifier {
	if enabled {
		return htmlMinifier
	}
	return &NOOPMinifier{}
}
