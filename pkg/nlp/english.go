package nlp

import (
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"
)

// placeholders maps brackets to the tokens the aligner and the corpus use.
var placeholders = map[string]string{
	"(": "-LRB-", ")": "-RRB-",
	"{": "-LQB-", "}": "-RQB-",
	"[": "-LSB-", "]": "-RSB-",
}

var unplaceholders = strings.NewReplacer(
	"-LRB-", "(", "-RRB-", ")",
	"-LQB-", "{", "-RQB-", "}",
	"-LSB-", "[", "-RSB-", "]",
)

var spaceBrackets = strings.NewReplacer(
	"(", " ( ", ")", " ) ",
	"{", " { ", "}", " } ",
	"[", " [ ", "]", " ] ",
)

// English tokenizes and POS-tags English text with prose. Punctuation is
// split off words ("Hamburg." becomes "Hamburg .") and brackets become -LRB-
// style tokens. The zero value is ready to use and safe for concurrent use;
// the tagging model is loaded on the first Annotate call.
type English struct {
	mu    sync.Mutex
	model *prose.Model
}

// NewEnglish returns an English tokenizer and tagger.
func NewEnglish() *English { return &English{} }

// Segment implements Segmenter. Segmenting its own output is a no-op.
func (e *English) Segment(text string) string {
	doc, err := prose.NewDocument(spaceBrackets.Replace(unplaceholders.Replace(text)),
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		// Tokenization alone does not fail; keep the text usable anyway.
		return WhitespaceSegmenter{}.Segment(text)
	}
	toks := doc.Tokens()
	parts := make([]string, 0, len(toks))
	for _, tok := range toks {
		parts = append(parts, placeholder(tok.Text))
	}
	return strings.Join(parts, " ")
}

// Annotate implements POSTagger with Penn Treebank tags ("born_VBN"). It
// accepts segmented text with -LRB- style tokens.
func (e *English) Annotate(text string) (string, error) {
	doc, err := e.tag(spaceBrackets.Replace(unplaceholders.Replace(text)))
	if err != nil {
		return "", err
	}
	toks := doc.Tokens()
	parts := make([]string, 0, len(toks))
	for _, tok := range toks {
		tag := tok.Tag
		if tag == "" {
			tag = "*"
		}
		parts = append(parts, placeholder(tok.Text)+"_"+tag)
	}
	return strings.Join(parts, " "), nil
}

func (e *English) tag(text string) (*prose.Document, error) {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()

	opts := []prose.DocOpt{prose.WithSegmentation(false), prose.WithExtraction(false)}
	if model != nil {
		opts = append(opts, prose.UsingModel(model))
	}
	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		e.mu.Lock()
		if e.model == nil {
			e.model = doc.Model
		}
		e.mu.Unlock()
	}
	return doc, nil
}

func placeholder(tok string) string {
	if p, ok := placeholders[tok]; ok {
		return p
	}
	return tok
}
