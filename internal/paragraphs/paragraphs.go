// Package paragraphs identifies prose paragraphs in extracted article text
// and produces the canonical letters-only string used for signature hashing.
package paragraphs

import (
	"iter"
	"regexp"
	"strings"
)

var (
	reLine        = regexp.MustCompile(`\n+`)
	reIsParagraph = regexp.MustCompile(`[A-Z].*[a-z].+[.!?]`)
	reHeadings    = regexp.MustCompile(`^#+ `)                          // strip markdown headings
	reFormat      = regexp.MustCompile(` \*{1,2}([^*]+)\*{1,2} `)       // strip markdown bold and italic
	reLinks       = regexp.MustCompile(`\[([^\]]+)\]\((?i:https?)://[^)]+\)`) // strip markdown links
	reNonLetters  = regexp.MustCompile(`[^a-zA-Z]+`)
)

// IsParagraph reports whether a line looks like a real prose paragraph:
// at least 20 characters and shaped like a sentence (an upper-case start,
// a lower-case run, and sentence-ending punctuation somewhere).
func IsParagraph(para string) bool {
	if len(para) < 20 {
		return false
	}
	return reIsParagraph.MatchString(para)
}

// FromText strips markdown decoration, splits text into lines and yields
// the lines that pass IsParagraph. The sequence is lazy and restartable.
func FromText(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		cleaned := stripMarkdown(text)

		for _, para := range reLine.Split(cleaned, -1) {
			if !IsParagraph(para) {
				continue
			}
			if !yield(para) {
				return
			}
		}
	}
}

// CleanText concatenates, with no separators, the letters-only rendering of
// every paragraph in text. The result is the canonical string fed to
// signature generation: whitespace, punctuation and digits are deliberately
// discarded so that signatures are robust to formatting differences.
func CleanText(text string) string {
	var b strings.Builder
	for para := range FromText(text) {
		b.WriteString(reNonLetters.ReplaceAllString(stripMarkdown(para), ""))
	}
	return b.String()
}

func stripMarkdown(text string) string {
	text = reHeadings.ReplaceAllString(text, "")
	text = reFormat.ReplaceAllString(text, " $1 ")
	text = reLinks.ReplaceAllString(text, "$1")
	return text
}
