package nlp

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token represents a single analyzed unit of text.
type Token struct {
	Surface  string // The text as it appears (e.g. "行っ")
	BaseForm string // The dictionary form (e.g. "行く")
	// PrimaryPOS stores the first (primary) part of speech if available.
	PrimaryPOS string
}

// Analyzer segments and POS-tags Japanese text with kagome. A kagome
// tokenizer is safe for concurrent use, so one Analyzer may be shared.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Analyze breaks text into tokens with base forms and parts of speech.
func (a *Analyzer) Analyze(text string) []Token {
	var result []Token
	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}
		features := token.Features()

		// IPA features: 0 POS, 1-3 sub-POS, 4-5 conjugation, 6 base form.
		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}
		result = append(result, Token{
			Surface:    token.Surface,
			BaseForm:   base,
			PrimaryPOS: primaryPOS,
		})
	}
	return result
}

// Segment implements Segmenter.
func (a *Analyzer) Segment(text string) string {
	tokens := a.Analyze(text)
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Surface
	}
	return strings.Join(parts, " ")
}

// Annotate implements POSTagger.
func (a *Analyzer) Annotate(text string) (string, error) {
	tokens := a.Analyze(text)
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		pos := t.PrimaryPOS
		if pos == "" {
			pos = "*"
		}
		parts[i] = t.Surface + "_" + pos
	}
	return strings.Join(parts, " "), nil
}
