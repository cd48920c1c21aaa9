package main

import (
	"fmt"

	"github.com/japaniel/patternminer/pkg/nlp"
)

// languageTools returns the corpus tokenizer and the matching POS tagger.
// Pre-tokenized corpora are assumed to be English.
func languageTools(name string) (nlp.Segmenter, nlp.POSTagger, error) {
	switch name {
	case "english", "":
		en := nlp.NewEnglish()
		return en, en, nil
	case "whitespace":
		return nlp.WhitespaceSegmenter{}, nlp.NewEnglish(), nil
	case "kagome":
		a, err := nlp.NewAnalyzer()
		if err != nil {
			return nil, nil, fmt.Errorf("kagome analyzer: %w", err)
		}
		return a, a, nil
	}
	return nil, nil, fmt.Errorf("unknown segmenter %q", name)
}
