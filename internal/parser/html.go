package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. h1-h6 become weak heading labels.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return flowDocument(filename, htmlItems(doc)), nil
}

// htmlItems collects headings and text containers from the document body.
func htmlItems(doc *html.Node) []flowItem {
	var items []flowItem
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				items = append(items, flowItem{text: textContent(n), level: level})
				return // Don't recurse into heading children (already extracted text).
			}

			// Skip non-content elements.
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "head":
				return
			case "p", "li", "td", "th", "blockquote", "pre", "dt", "dd", "caption":
				if t := textContent(n); t != "" {
					items = append(items, flowItem{text: t, bold: isStrongOnly(n)})
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return items
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// isStrongOnly reports whether every non-blank text under n sits inside <b> or
// <strong>.
func isStrongOnly(n *html.Node) bool {
	found := false
	ok := true
	var visit func(*html.Node, bool)
	visit = func(n *html.Node, strong bool) {
		if n.Type == html.ElementNode && (n.Data == "b" || n.Data == "strong") {
			strong = true
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			found = true
			ok = ok && strong
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, strong)
		}
	}
	visit(n, false)
	return found && ok
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
