// Package dom parses page snapshots and answers the class and XPath lookups
// the site parsers need.
package dom

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed page snapshot.
type Document struct {
	root    *html.Node
	doc     *goquery.Document
	baseURL *url.URL
}

// Node is a single element of a Document.
type Node struct {
	node    *html.Node
	baseURL *url.URL
}

// Parse builds a Document from raw HTML. pageURL is used to resolve
// relative links and may be empty.
func Parse(body []byte, pageURL string) (*Document, error) {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var base *url.URL
	if strings.TrimSpace(pageURL) != "" {
		base, err = url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("parse page url: %w", err)
		}
	}
	return &Document{
		root:    root,
		doc:     goquery.NewDocumentFromNode(root),
		baseURL: base,
	}, nil
}

// ByClass returns every element carrying class, in document order.
func (d *Document) ByClass(class string) []Node {
	return d.wrap(d.doc.Find(classSelector(class)))
}

// ByXPath evaluates expr against the document.
func (d *Document) ByXPath(expr string) ([]Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Node{node: n, baseURL: d.baseURL})
	}
	return out, nil
}

func (d *Document) wrap(sel *goquery.Selection) []Node {
	out := make([]Node, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, Node{node: n, baseURL: d.baseURL})
	}
	return out
}

// Attr returns the attribute value, or "" when absent.
func (n Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	for _, a := range n.node.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Href returns the href attribute resolved against the page URL, the way a
// browser reports the href property.
func (n Node) Href() string {
	raw := strings.TrimSpace(n.Attr("href"))
	if raw == "" {
		return ""
	}
	return Resolve(n.baseURL, raw)
}

// InnerHTML renders the children of the element.
func (n Node) InnerHTML() string {
	if n.node == nil {
		return ""
	}
	out, err := goquery.NewDocumentFromNode(n.node).Selection.Html()
	if err != nil {
		return ""
	}
	return out
}

// ByClass returns descendants carrying class.
func (n Node) ByClass(class string) []Node {
	if n.node == nil {
		return nil
	}
	sel := goquery.NewDocumentFromNode(n.node).Find(classSelector(class))
	out := make([]Node, 0, sel.Length())
	for _, c := range sel.Nodes {
		out = append(out, Node{node: c, baseURL: n.baseURL})
	}
	return out
}

// FirstByClass returns the first descendant carrying class.
func (n Node) FirstByClass(class string) (Node, bool) {
	found := n.ByClass(class)
	if len(found) == 0 {
		return Node{}, false
	}
	return found[0], true
}

// Resolve resolves ref against base. Unparseable refs are returned unchanged.
func Resolve(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func classSelector(class string) string {
	return fmt.Sprintf("[class~=%q]", strings.TrimSpace(class))
}
