// ABOUTME: HTML to markdown conversion for fetched pages using golang.org/x/net/html
// ABOUTME: Page chrome is dropped; headings, lists, links, emphasis, and code keep their markdown form

package tools

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Nav: true, atom.Footer: true,
	atom.Header: true, atom.Iframe: true, atom.Noscript: true, atom.Svg: true,
}

// wrap holds the markers written around an element's content.
type wrap struct{ open, close string }

var blockMarks = map[atom.Atom]wrap{
	atom.H1: {"\n# ", "\n"}, atom.H2: {"\n## ", "\n"}, atom.H3: {"\n### ", "\n"},
	atom.H4: {"\n#### ", "\n"}, atom.H5: {"\n#### ", "\n"}, atom.H6: {"\n#### ", "\n"},
	atom.P: {"\n\n", ""}, atom.Div: {"\n\n", ""}, atom.Section: {"\n\n", ""}, atom.Article: {"\n\n", ""},
	atom.Blockquote: {"\n\n> ", "\n"},
	atom.Li:         {"\n- ", ""},
	atom.Br:         {"\n", ""},
	atom.Strong:     {"**", "**"}, atom.B: {"**", "**"},
	atom.Em: {"*", "*"}, atom.I: {"*", "*"},
}

// mdWriter accumulates markdown while walking a parsed document.
type mdWriter struct {
	b     strings.Builder
	inPre bool
}

// htmlToMarkdown converts HTML to readable markdown. Unparseable input is
// returned unchanged.
func htmlToMarkdown(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	var w mdWriter
	w.node(doc)
	return strings.TrimSpace(collapseBlankLines(w.b.String()))
}

func (w *mdWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		w.element(n)
		return
	}
	w.children(n)
}

func (w *mdWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *mdWriter) text(s string) {
	if !w.inPre {
		s = strings.Join(strings.Fields(s), " ")
	}
	if s != "" {
		w.b.WriteString(s)
	}
}

func (w *mdWriter) element(n *html.Node) {
	if skipped[n.DataAtom] {
		return
	}

	switch n.DataAtom {
	case atom.Pre:
		w.b.WriteString("\n```\n")
		w.inPre = true
		w.children(n)
		w.inPre = false
		w.b.WriteString("\n```\n")
		return
	case atom.Code:
		if w.inPre {
			w.children(n)
			return
		}
		w.b.WriteString("`")
		w.children(n)
		w.b.WriteString("`")
		return
	case atom.A:
		if href := attr(n, "href"); href != "" {
			if label := plainText(n); label != "" {
				w.b.WriteString("[" + label + "](" + href + ")")
				return
			}
		}
	}

	m := blockMarks[n.DataAtom]
	w.b.WriteString(m.open)
	w.children(n)
	w.b.WriteString(m.close)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// plainText returns the concatenated text below n.
func plainText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(d *html.Node) {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
		for c := d.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapseBlankLines limits runs of blank lines to one.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
