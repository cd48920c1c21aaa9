// Package nlp holds the language tools the pattern pipeline consumes: sentence
// segmentation, part-of-speech tagging and named-entity annotation.
package nlp

import (
	"strings"
	"unicode"
)

// Segmenter splits raw text into whitespace-separated tokens.
type Segmenter interface {
	Segment(text string) string
}

// POSTagger annotates text as space-joined "token_TAG" pairs.
type POSTagger interface {
	Annotate(text string) (string, error)
}

// EntityAnnotator annotates text with inline begin/inside/outside entity tags
// ("Berlin_B-LOC is_O ..."). Implementations need not be safe for concurrent use.
type EntityAnnotator interface {
	Annotate(text string) (string, error)
}

// AnnotatorFactory creates a fresh annotator, one per worker.
type AnnotatorFactory func() (EntityAnnotator, error)

var bracketTokens = strings.NewReplacer(
	"(", " -LRB- ", ")", " -RRB- ",
	"{", " -LQB- ", "}", " -RQB- ",
	"[", " -LSB- ", "]", " -RSB- ",
)

// WhitespaceSegmenter tokenizes already segmented text: it splits on
// whitespace and turns brackets into -LRB- style placeholder tokens.
type WhitespaceSegmenter struct{}

// Segment implements Segmenter.
func (WhitespaceSegmenter) Segment(text string) string {
	return strings.Join(strings.Fields(bracketTokens.Replace(text)), " ")
}

// SplitSentences splits text on sentence delimiters and newlines. Latin
// terminators only split when followed by a space.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		split := false
		switch r {
		// 。(3002), ！(FF01), ？(FF1F)
		case '。', '！', '？', '\n':
			split = true
		case '.', '!', '?':
			split = i+1 == len(runes) || unicode.IsSpace(runes[i+1])
		}
		if split {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
