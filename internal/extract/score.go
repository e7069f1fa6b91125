package extract

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Base scores by tag name. Containers likely to hold article text start
// positive, list and chrome tags start negative.
var tagScores = map[string]float64{
	"div":        5,
	"article":    5,
	"pre":        3,
	"td":         3,
	"blockquote": 3,
	"main":       3,
	"section":    1,
	"span":       -1,
	"header":     -3,
	"footer":     -3,
	"address":    -3,
	"ol":         -3,
	"ul":         -3,
	"dl":         -3,
	"dd":         -3,
	"dt":         -3,
	"li":         -3,
	"form":       -3,
	"aside":      -3,
	"nav":        -3,
	"h1":         -5,
	"h2":         -5,
	"h3":         -5,
	"h4":         -5,
	"h5":         -5,
	"h6":         -5,
	"th":         -5,
}

var (
	rePositive    = regexp.MustCompile(`(?i)article|body|content|entry|hentry|page|pagination|post|text`)
	reNegative    = regexp.MustCompile(`(?i)combx|comment|contact|foot|footer|footnote|link|media|meta|promo|related|scroll|shoutbox|sponsor|tags|widget|gallery|abridged|closed|toggle`)
	rePunctuation = regexp.MustCompile(`[?.!]`)
)

// classWeight judges an element by its class, id and role attributes.
func classWeight(n *html.Node) float64 {
	weight := 0.0

	switch attr(n, "role") {
	case "main", "article":
		weight += 25
	case "navigation":
		weight -= 25
	}

	for _, key := range []string{"class", "id"} {
		val := attr(n, key)
		if val == "" {
			continue
		}
		if rePositive.MatchString(val) {
			weight += 25
		}
		if reNegative.MatchString(val) {
			weight -= 25
		}
	}
	return weight
}

func initialScore(n *html.Node) float64 {
	return tagScores[n.Data] + classWeight(n)
}

// linkDensity is the fraction of an element's text that sits inside
// anchor tags.
func linkDensity(n *html.Node) float64 {
	textLen := len(innerText(n))
	if textLen == 0 {
		return 0
	}
	linkLen := 0
	for _, a := range findAll(n, isTag("a")) {
		linkLen += len(innerText(a))
	}
	return float64(linkLen) / float64(textLen)
}

// scoreTree walks every paragraph worth counting and credits its
// ancestors. Each paragraph contributes a base point, a point per comma
// separated clause, and up to three points for length; the contribution
// halves at each ancestor level and stops once it drops below one. Final
// scores are discounted by link density so that link farms lose to prose.
func scoreTree(doc *html.Node) map[*html.Node]float64 {
	scores := make(map[*html.Node]float64)

	for _, p := range findAll(doc, isTag("p")) {
		text := innerText(p)
		if len(text) < 25 || !rePunctuation.MatchString(text) {
			continue
		}

		contribution := 1.0
		contribution += float64(strings.Count(text, ",") + 1)
		contribution += math.Min(math.Floor(float64(len(text))/100), 3)

		for parent := p.Parent; parent != nil; parent = parent.Parent {
			if parent.Type == html.ElementNode {
				if _, seen := scores[parent]; !seen {
					scores[parent] = initialScore(parent)
				}
				scores[parent] += contribution
			}
			contribution /= 2
			if contribution < 1 {
				break
			}
		}
	}

	for el := range scores {
		scores[el] *= 1 - linkDensity(el)
	}
	return scores
}

// topCandidate returns the highest scoring element in document order, so
// that ties resolve deterministically.
func topCandidate(doc *html.Node, scores map[*html.Node]float64) (*html.Node, float64) {
	var best *html.Node
	bestScore := math.Inf(-1)
	for _, el := range findAll(doc, isElement) {
		score, ok := scores[el]
		if !ok {
			continue
		}
		if score > bestScore {
			best, bestScore = el, score
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}
