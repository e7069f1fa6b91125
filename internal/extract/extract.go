// Package extract pulls the main article text out of a news page. The
// approach follows the classic readability heuristics: paragraphs are
// scored by length and punctuation, scores propagate to ancestors, and
// the best scoring container wins. A first aggressive pass strips
// anything that smells like navigation; if nothing substantial survives,
// a relaxed pass keeps those blocks and falls back to the page body.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoContent reports that a page holds no recognizable article text.
// Callers should record an empty result rather than fail the article.
var ErrNoContent = errors.New("no article content found")

// candidateFloor is the minimum score the aggressive pass accepts before
// retrying with relaxed pruning.
const candidateFloor = 10

var reSentenceEnd = regexp.MustCompile(`\.(\s|$)`)

// Meta carries page metadata read before any pruning happens.
type Meta struct {
	Title        string
	CanonicalURL string
}

// Result is an extracted article. Node is the chosen content element,
// kept for callers that want to inspect the cleaned tree.
type Result struct {
	Node *html.Node
	Text string
	Meta Meta
}

// Extractor turns raw HTML into article text.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract runs the aggressive pass and retries relaxed when it finds
// nothing convincing. It returns ErrNoContent when both passes come up
// empty; the returned Meta is valid either way.
func (e *Extractor) Extract(rawHTML, pageURL string) (*Result, error) {
	result, ok, err := e.pass(rawHTML, pageURL, true)
	if err != nil {
		return nil, err
	}
	if ok {
		return result, nil
	}

	slog.Debug("aggressive extraction found nothing, retrying relaxed", "url", pageURL)
	result, ok, err = e.pass(rawHTML, pageURL, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, ErrNoContent
	}
	return result, nil
}

func (e *Extractor) pass(rawHTML, pageURL string, aggressive bool) (*Result, bool, error) {
	// Self-closed br tags confuse paragraph splitting downstream.
	cleaned := reBrClose.ReplaceAllString(rawHTML, "<br>")

	doc, err := html.Parse(strings.NewReader(cleaned))
	if err != nil {
		return nil, false, fmt.Errorf("parsing html: %w", err)
	}

	var base *url.URL
	if pageURL != "" {
		base, _ = url.Parse(pageURL)
	}
	meta := extractMeta(doc, base)
	result := &Result{Meta: meta}

	removeUnneeded(doc)
	convertDoubleBR(doc)
	if aggressive {
		removeUnlikelyBlocks(doc)
	}
	convertDivToP(doc)

	scores := scoreTree(doc)
	candidate, score := topCandidate(doc, scores)

	switch {
	case candidate == nil && aggressive:
		return result, false, nil
	case candidate == nil:
		candidate = findBody(doc)
		if candidate == nil {
			return result, false, nil
		}
	case aggressive && score < candidateFloor:
		return result, false, nil
	default:
		candidate = extendToSiblings(candidate, scores)
	}

	cleanArticle(candidate, base)
	text := contentToText(candidate)
	if text == "" {
		return result, false, nil
	}
	result.Node = candidate
	result.Text = text
	return result, true, nil
}

// extendToSiblings pulls in siblings of the winning candidate that score
// close to it, so articles split across adjacent containers stay whole.
// When anything gets added the group moves into a synthetic container.
func extendToSiblings(candidate *html.Node, scores map[*html.Node]float64) *html.Node {
	parent := candidate.Parent
	if parent == nil {
		return candidate
	}
	threshold := math.Max(candidateFloor, 0.2*scores[candidate])

	var keep []*html.Node
	for el := parent.FirstChild; el != nil; el = el.NextSibling {
		if el == candidate {
			keep = append(keep, el)
			continue
		}

		if el.Type == html.TextNode {
			trimmed := strings.TrimSpace(el.Data)
			if len(trimmed) >= 80 || reSentenceEnd.MatchString(el.Data) {
				keep = append(keep, el)
			}
			continue
		}
		if el.Type != html.ElementNode {
			continue
		}

		score, scored := scores[el]
		if !scored || score < threshold {
			continue
		}
		if el.Data == "p" {
			text := innerText(el)
			density := linkDensity(el)
			if density >= 0.25 {
				continue
			}
			if len(text) < 80 && (density > 0 || !reSentenceEnd.MatchString(text)) {
				continue
			}
		}
		keep = append(keep, el)
	}

	if len(keep) <= 1 {
		return candidate
	}
	container := newElement("div")
	for _, el := range keep {
		parent.RemoveChild(el)
		container.AppendChild(el)
	}
	return container
}

func extractMeta(doc *html.Node, base *url.URL) Meta {
	var meta Meta

	if titles := findAll(doc, isTag("title")); len(titles) > 0 {
		meta.Title = innerText(titles[0])
	}

	for _, link := range findAll(doc, isTag("link")) {
		if !strings.EqualFold(attr(link, "rel"), "canonical") {
			continue
		}
		href := attr(link, "href")
		if href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if (ref.Scheme == "http" || ref.Scheme == "https") && ref.Host != "" {
			meta.CanonicalURL = ref.String()
		}
		break
	}
	return meta
}
