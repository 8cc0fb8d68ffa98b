// Package dom exposes a small query capability over parsed HTML so field
// rules do not depend on a specific parser.
package dom

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Document is a parsed page.
type Document interface {
	// FindOne returns the first node matching selector in document order.
	FindOne(selector string) (Node, bool)
	// FindAll returns every node matching selector in document order.
	FindAll(selector string) []Node
}

// Node is one element of a Document.
type Node interface {
	Document

	// Text returns the element's combined text, trimmed.
	Text() string
	// Attr returns the attribute value and whether it was present.
	Attr(name string) (string, bool)
	// OwnText returns the first non-blank text node that is a direct child
	// of the element, trimmed. Text inside child elements is ignored.
	OwnText() string
}

// Parse reads an HTML document.
func Parse(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "dom: parse html")
	}
	return &selection{sel: doc.Selection}, nil
}

type selection struct {
	sel *goquery.Selection
}

func (s *selection) FindOne(selector string) (Node, bool) {
	found := s.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return &selection{sel: found}, true
}

func (s *selection) FindAll(selector string) []Node {
	found := s.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, item *goquery.Selection) {
		nodes = append(nodes, &selection{sel: item})
	})
	return nodes
}

func (s *selection) Text() string {
	return strings.TrimSpace(s.sel.Text())
}

func (s *selection) Attr(name string) (string, bool) {
	return s.sel.Attr(name)
}

func (s *selection) OwnText() string {
	if len(s.sel.Nodes) == 0 {
		return ""
	}
	for c := s.sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(c.Data); text != "" {
			return text
		}
	}
	return ""
}

// FirstText returns the trimmed text of the first selector that matches a
// node with non-empty text. Selectors are tried in order.
func FirstText(doc Document, selectors []string) (string, bool) {
	for _, sel := range selectors {
		if node, ok := doc.FindOne(sel); ok {
			if text := node.Text(); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// FirstMatch returns the nodes of the first selector that matches anything.
func FirstMatch(doc Document, selectors []string) []Node {
	for _, sel := range selectors {
		if nodes := doc.FindAll(sel); len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}
