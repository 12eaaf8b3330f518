package markup

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

type htmlTree struct {
	doc *html.Node
}

func parseHTML(r io.Reader) (*htmlTree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	stripHTMLComments(doc)
	return &htmlTree{doc: doc}, nil
}

// stripHTMLComments removes comment nodes and merges the text nodes that
// become adjacent as a result.
func stripHTMLComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripHTMLComments(c)
		}
		c = next
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		for c.Type == html.TextNode && c.NextSibling != nil && c.NextSibling.Type == html.TextNode {
			next := c.NextSibling
			c.Data += next.Data
			n.RemoveChild(next)
		}
	}
}

func (t *htmlTree) root() element {
	for c := t.doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return htmlElement{c}
		}
	}
	return nil
}

func (t *htmlTree) render(w io.Writer) error {
	if err := html.Render(w, t.doc); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}

type htmlElement struct {
	n *html.Node
}

func (e htmlElement) tag() string { return e.n.Data }

func (e htmlElement) children() []element {
	var out []element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, htmlElement{c})
		}
	}
	return out
}

func htmlAttrKey(a html.Attribute) string {
	if a.Namespace != "" {
		return a.Namespace + ":" + a.Key
	}
	return a.Key
}

func (e htmlElement) attrs() []Attr {
	out := make([]Attr, 0, len(e.n.Attr))
	for _, a := range e.n.Attr {
		out = append(out, Attr{Key: htmlAttrKey(a), Value: a.Val})
	}
	return out
}

func (e htmlElement) setAttr(key, value string) {
	for i := range e.n.Attr {
		if htmlAttrKey(e.n.Attr[i]) == key {
			e.n.Attr[i].Val = value
			return
		}
	}
	a := html.Attribute{Key: key, Val: value}
	if ns, local, ok := strings.Cut(key, ":"); ok {
		a.Namespace, a.Key = ns, local
	}
	e.n.Attr = append(e.n.Attr, a)
}

func (e htmlElement) runs() []string {
	runs := []string{""}
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			runs[len(runs)-1] += c.Data
		case html.ElementNode:
			runs = append(runs, "")
		}
	}
	return runs
}

func (e htmlElement) setRun(i int, text string) bool {
	slot := 0
	var after *html.Node // element child that opens slot i
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			slot++
			if slot == i {
				after = c
			}
		case html.TextNode:
			if slot == i {
				c.Data = text
				return true
			}
		}
		if slot > i {
			break
		}
	}
	if i > 0 && after == nil {
		return false
	}

	node := &html.Node{Type: html.TextNode, Data: text}
	if i == 0 {
		e.n.InsertBefore(node, e.n.FirstChild)
	} else {
		e.n.InsertBefore(node, after.NextSibling)
	}
	return true
}
