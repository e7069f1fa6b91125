package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var reDoubleSpace = regexp.MustCompile(`[ \t]{2,}`)

// findAll returns a preorder snapshot of the nodes under root (root
// excluded) matching pred. Taking a snapshot keeps callers free to detach
// nodes while working through the result.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func isTag(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, name := range names {
			if n.Data == name {
				return true
			}
		}
		return false
	}
}

func isElement(n *html.Node) bool {
	return n.Type == html.ElementNode
}

func newElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// unwrap replaces a node with its own children.
func unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

func insertAfter(parent, ref, n *html.Node) {
	if ref.NextSibling != nil {
		parent.InsertBefore(n, ref.NextSibling)
	} else {
		parent.AppendChild(n)
	}
}

// innerText concatenates all descendant text, collapses runs of spaces and
// tabs, and trims the result. Comments contribute nothing.
func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return reDoubleSpace.ReplaceAllString(strings.TrimSpace(b.String()), " ")
}

func findBody(doc *html.Node) *html.Node {
	nodes := findAll(doc, isTag("body"))
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}
