package builder

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/pkg/plan"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageData is what page templates see, actions use the <!--# .Title --> syntax
type pageData struct {
	Title   string
	Name    string
	Profile string
	Hash    string
}

func (b *Builder) buildPages(ctx context.Context, bundle *bundleResult) ([]string, error) {
	favicons := make(map[string]struct{})
	pages := make([]string, 0, len(b.plan.Directives))

	for _, d := range b.plan.Directives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if d.Favicon != "" {
			if _, ok := favicons[d.Favicon]; !ok {
				dst := filepath.Join(b.buildDir, filepath.Base(d.Favicon))
				if _, err := copyFile(b.path(d.Favicon), dst); err != nil {
					tlogger.Error("builder", "html", "msg", "favicon", "file", d.Favicon, "err", err)
					return nil, err
				}
				favicons[d.Favicon] = struct{}{}
			}
		}

		out, err := b.renderPage(d, bundle)
		if err != nil {
			return nil, err
		}

		err = os.WriteFile(filepath.Join(b.buildDir, d.Filename), out, 0644)
		if err != nil {
			tlogger.Error("builder", "html", "msg", "output file creation", "file", d.Filename, "err", err)
			return nil, err
		}
		tlogger.Debug("builder", "html", "msg", "Page written", "file", d.Filename)
		pages = append(pages, d.Filename)
	}
	return pages, nil
}

func (b *Builder) renderPage(d plan.HTMLDirective, bundle *bundleResult) ([]byte, error) {
	src, err := os.ReadFile(b.path(d.Template))
	if err != nil {
		tlogger.Error("builder", "html", "msg", "file error", "file", d.Template, "err", err)
		return nil, err
	}

	t, err := template.New(d.Template).Delims(`<!--#`, `-->`).Parse(string(replaceWindowsCarriageReturn(src)))
	if err != nil {
		tlogger.Error("builder", "html", "msg", "templater", "file", d.Template, "err", err)
		return nil, err
	}

	name := d.Filename[:len(d.Filename)-len(filepath.Ext(d.Filename))]
	buf := &bytes.Buffer{}
	err = t.Execute(buf, pageData{
		Title:   d.Title,
		Name:    name,
		Profile: string(b.plan.Profile),
		Hash:    bundle.hash,
	})
	if err != nil {
		tlogger.Error("builder", "html", "msg", "templater", "file", d.Template, "err", err)
		return nil, err
	}

	doc, err := html.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Template, err)
	}

	head := findElement(doc, atom.Head)
	body := findElement(doc, atom.Body)
	if head == nil || body == nil {
		return nil, fmt.Errorf("%s: document has no head or body", d.Template)
	}

	query := ""
	if d.Hash {
		query = "?" + bundle.hash
	}

	setTitle(head, d.Title)
	for _, m := range d.Meta {
		head.AppendChild(metaNode(m))
	}
	if d.Favicon != "" {
		head.AppendChild(element(atom.Link, "rel", "icon", "href", filepath.Base(d.Favicon)+query))
	}
	for _, c := range d.Chunks {
		chunk, ok := bundle.chunks[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s references %q", plan.ErrMissingChunk, d.Filename, c)
		}
		if chunk.CSS != "" {
			head.AppendChild(element(atom.Link, "href", chunk.CSS+query, "rel", "stylesheet"))
		}
		body.AppendChild(element(atom.Script, "src", chunk.JS+query))
	}

	out := &bytes.Buffer{}
	if err := html.Render(out, doc); err != nil {
		return nil, err
	}

	return minifierFor(d.Minify).Bytes("text/html", out.Bytes())
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// setTitle fills an empty or missing <title>, a title written by the template is kept
func setTitle(head *html.Node, title string) {
	t := findElement(head, atom.Title)
	if t == nil {
		t = element(atom.Title)
		head.InsertBefore(t, head.FirstChild)
	}

	text := ""
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		text += c.Data
	}
	if strings.TrimSpace(text) != "" {
		return
	}
	for t.FirstChild != nil {
		t.RemoveChild(t.FirstChild)
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

func metaNode(m plan.Meta) *html.Node {
	if m.HTTPEquiv != "" {
		return element(atom.Meta, "http-equiv", m.HTTPEquiv, "content", m.Content)
	}
	return element(atom.Meta, "name", m.Name, "content", m.Content)
}

// element builds a node from key/value attribute pairs
func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}
