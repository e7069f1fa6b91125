package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	reHeadingTag  = regexp.MustCompile(`^h(\d+)$`)
	reBlankLines  = regexp.MustCompile(`(\n[ \t]*){2,}\n`)
	reAbsoluteRef = regexp.MustCompile(`(?i)^https?://`)
)

// contentToText renders an extracted element as plain text with light
// markdown conventions, then normalizes whitespace.
func contentToText(el *html.Node) string {
	text := nodeToText(el)
	text = reDoubleSpace.ReplaceAllString(text, " ")
	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func nodeToText(n *html.Node) string {
	switch n.Type {
	case html.CommentNode:
		return ""
	case html.TextNode:
		return n.Data
	}

	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeToText(c))
	}
	contents := b.String()

	if n.Type != html.ElementNode {
		return contents
	}

	switch n.Data {
	case "p":
		return strings.TrimSpace(contents) + "\n\n"
	case "br":
		return "\n"
	case "hr":
		return strings.Repeat("-", 18) + "\n\n"
	case "li":
		return "* " + strings.TrimSpace(contents) + "\n"
	case "ol", "ul":
		return strings.TrimSpace(contents) + "\n\n"
	case "i", "em":
		if strings.TrimSpace(contents) == "" {
			return contents
		}
		return " *" + contents + "* "
	case "b", "strong":
		if strings.TrimSpace(contents) == "" {
			return contents
		}
		return " **" + contents + "** "
	case "a":
		href := attr(n, "href")
		if reAbsoluteRef.MatchString(href) {
			if strings.TrimSpace(contents) == "" {
				return ""
			}
			return "[" + strings.TrimSpace(contents) + "](" + href + ")"
		}
		return contents
	}

	if m := reHeadingTag.FindStringSubmatch(n.Data); m != nil {
		level, _ := strconv.Atoi(m[1])
		return strings.Repeat("#", level) + " " + strings.TrimSpace(contents) + "\n\n"
	}

	return contents
}
