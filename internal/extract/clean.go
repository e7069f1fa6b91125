package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	reUnlikely    = regexp.MustCompile(`combx|comment|disqus|foot|header|menu|meta|nav|rss|shoutbox|sidebar|sponsor`)
	reMaybe       = regexp.MustCompile(`and|article|body|column|main|content|page`)
	reHidden      = regexp.MustCompile(`collapsible closed`)
	reDisplayNone = regexp.MustCompile(`(?i)(^|;)\s*display\s*:\s*none\s*(;|$)`)
	reBlockish    = regexp.MustCompile(`(?i)^(a|blockquote|dl|div|img|ol|p|pre|table|ul)`)
	reBrClose     = regexp.MustCompile(`<br[^>]*/>\s*`)
)

var unneededTags = []string{
	"head", "title", "meta", "script", "noscript", "style",
	"iframe", "embed", "object",
}

// removeUnneeded strips tags that never hold article text. Link tags get
// unwrapped rather than removed because lenient parsers sometimes treat
// them as containers.
func removeUnneeded(doc *html.Node) {
	for _, n := range findAll(doc, isTag(unneededTags...)) {
		detach(n)
	}
	for _, n := range findAll(doc, isTag("link")) {
		unwrap(n)
	}
	for _, n := range findAll(doc, isElement) {
		if reDisplayNone.MatchString(attr(n, "style")) {
			detach(n)
		}
	}
}

// removeUnlikelyBlocks drops elements whose class or id suggests chrome
// rather than content, unless the name also hints at a content block.
func removeUnlikelyBlocks(doc *html.Node) {
	for _, n := range findAll(doc, isElement) {
		if n.Data == "html" || n.Data == "body" {
			continue
		}
		hint := attr(n, "id") + attr(n, "class")
		if reUnlikely.MatchString(hint) && !reMaybe.MatchString(hint) {
			detach(n)
			continue
		}
		if reHidden.MatchString(hint) {
			detach(n)
		}
	}
}

// convertDoubleBR splits content around consecutive br tags into
// paragraphs, so that sloppy markup still gets scored per paragraph.
func convertDoubleBR(doc *html.Node) {
	for {
		first, second := findDoubleBR(doc)
		if first == nil {
			return
		}
		parent := first.Parent

		if parent.Data == "p" {
			// Move everything after the pair into a fresh paragraph
			// following this one.
			p := newElement("p")
			for c := second.NextSibling; c != nil; {
				next := c.NextSibling
				parent.RemoveChild(c)
				p.AppendChild(c)
				c = next
			}
			insertAfter(parent.Parent, parent, p)
		} else {
			before := newElement("p")
			for c := parent.FirstChild; c != nil && c != first; {
				next := c.NextSibling
				parent.RemoveChild(c)
				before.AppendChild(c)
				c = next
			}
			after := newElement("p")
			for c := second.NextSibling; c != nil; {
				next := c.NextSibling
				parent.RemoveChild(c)
				after.AppendChild(c)
				c = next
			}
			parent.AppendChild(before)
			parent.AppendChild(after)
		}

		detach(first)
		detach(second)
	}
}

// findDoubleBR locates the first pair of br tags separated by at most
// whitespace.
func findDoubleBR(doc *html.Node) (*html.Node, *html.Node) {
	for _, br := range findAll(doc, isTag("br")) {
		if br.Parent == nil {
			continue
		}
		next := br.NextSibling
		if next != nil && next.Type == html.TextNode {
			if strings.TrimSpace(next.Data) != "" {
				continue
			}
			next = next.NextSibling
		}
		if next != nil && next.Type == html.ElementNode && next.Data == "br" {
			return br, next
		}
	}
	return nil, nil
}

// convertDivToP turns divs without block level children into paragraphs,
// and wraps loose text runs inside the remaining divs in inline
// paragraphs so the scorer can see them.
func convertDivToP(doc *html.Node) {
	for _, div := range findAll(doc, isTag("div")) {
		if hasBlockDescendant(div) {
			for c := div.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.TextNode || strings.TrimSpace(c.Data) == "" {
					continue
				}
				p := newElement("p")
				setAttr(p, "style", "display: inline;")
				div.InsertBefore(p, c)
				div.RemoveChild(c)
				p.AppendChild(c)
				c = p
			}
		} else {
			div.Data = "p"
			div.DataAtom = 0
		}
	}
}

func hasBlockDescendant(n *html.Node) bool {
	for _, el := range findAll(n, isElement) {
		if reBlockish.MatchString(el.Data) {
			return true
		}
	}
	return false
}

// cleanArticle prunes the chosen content element: forms and page titles
// go unconditionally, suspicious containers go by heuristics, URLs become
// absolute, and empty paragraphs disappear.
func cleanArticle(el *html.Node, base *url.URL) {
	for _, n := range findAll(el, isTag("form", "h1")) {
		detach(n)
	}
	for _, n := range findAll(el, isTag("table", "ul", "div", "nav")) {
		if shouldClean(n) {
			detach(n)
		}
	}

	if base != nil {
		for _, key := range []string{"href", "src"} {
			for _, n := range findAll(el, isElement) {
				val := attr(n, key)
				if val == "" {
					continue
				}
				if ref, err := url.Parse(val); err == nil {
					setAttr(n, key, base.ResolveReference(ref).String())
				}
			}
		}
	}

	for _, n := range findAll(el, isTag("p")) {
		if len(findAll(n, isTag("img"))) == 0 && innerText(n) == "" {
			detach(n)
		}
	}
}

// shouldClean decides whether a container looks like chrome. Containers
// with many commas always stay; otherwise the mix of images, list items,
// inputs, text length and link density decides.
func shouldClean(el *html.Node) bool {
	weight := classWeight(el)
	if weight < 0 {
		return true
	}

	text := innerText(el)
	if strings.Count(text, ",")+1 > 10 {
		return false
	}

	countP := len(findAll(el, isTag("p")))
	countImg := len(findAll(el, isTag("img")))
	countLi := len(findAll(el, isTag("li")))
	countInput := len(findAll(el, isTag("input")))
	density := linkDensity(el)

	switch {
	case countImg > countP:
		return true
	case countLi > countP && el.Data != "ul" && el.Data != "ol":
		return true
	case float64(countInput) > float64(countP)/3:
		return true
	case len(text) < 25 && (countImg == 0 || countImg > 2):
		return true
	case weight < 25 && density > 0.2:
		return true
	case density > 0.5:
		return true
	}
	return false
}
