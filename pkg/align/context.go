// Package align locates a pattern inside an entity-tagged sentence and finds
// the entities that surround it.
package align

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrPatternNotFound means the pattern tokens do not occur in the sentence.
	ErrPatternNotFound = errors.New("pattern not found in sentence")
	// ErrTokenMismatch means the tagged and plain sentences have a different
	// number of tokens, i.e. tagging and segmentation drifted apart.
	ErrTokenMismatch = errors.New("tagged and plain token counts differ")
)

// AlignmentError reports a sentence that could not be aligned. It wraps
// ErrPatternNotFound or ErrTokenMismatch.
type AlignmentError struct {
	Sentence string
	Pattern  string
	Err      error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("align %q in %q: %v", e.Pattern, e.Sentence, e.Err)
}

func (e *AlignmentError) Unwrap() error { return e.Err }

var brackets = strings.NewReplacer(
	"-LRB-", "(", "-RRB-", ")",
	"-LQB-", "{", "-RQB-", "}",
	"-LSB-", "[", "-RSB-", "]",
)

// ReplaceBrackets turns tokenizer bracket placeholders back into the literal
// characters, so the annotator sees the same text it would tokenize itself.
func ReplaceBrackets(s string) string { return brackets.Replace(s) }

type token struct {
	word  string
	class string // "" for outside
	begin bool
}

func parseToken(tagged string) token {
	i := strings.LastIndexByte(tagged, '_')
	if i < 0 {
		return token{word: tagged}
	}
	tag := tagged[i+1:]
	t := token{word: tagged[:i]}
	switch {
	case strings.HasPrefix(tag, "B-"):
		t.begin = true
		tag = tag[2:]
	case strings.HasPrefix(tag, "I-"):
		tag = tag[2:]
	}
	// Tolerate punctuation glued to the tag ("Sevastopol_B-LOC.").
	tag = strings.TrimRightFunc(tag, func(r rune) bool { return !unicode.IsLetter(r) })
	if tag != "O" {
		t.class = tag
	}
	return t
}

// SentenceContext holds both views of one aligned sentence.
type SentenceContext struct {
	Left  *Context
	Right *Context
}

// Aligner builds contexts, resolving semantic types through Types.
type Aligner struct {
	Types *TypeMapper
}

// Align locates pattern in plain and splits tagged around it. tagged uses the
// inline "token_TAG" form; all three arguments are whitespace tokenized.
func (a Aligner) Align(tagged, plain, pat string) (*SentenceContext, error) {
	types := a.Types
	if types == nil {
		types = DefaultTypes
	}
	taggedTokens := strings.Fields(tagged)
	plainTokens := strings.Fields(plain)
	if len(taggedTokens) != len(plainTokens) {
		return nil, &AlignmentError{Sentence: plain, Pattern: pat,
			Err: fmt.Errorf("%w: %d tagged vs %d plain", ErrTokenMismatch, len(taggedTokens), len(plainTokens))}
	}
	start, end := findSpan(plainTokens, strings.Fields(pat))
	if start < 0 {
		return nil, &AlignmentError{Sentence: plain, Pattern: pat, Err: ErrPatternNotFound}
	}
	tokens := make([]token, len(taggedTokens))
	for i, s := range taggedTokens {
		tokens[i] = parseToken(s)
	}
	return &SentenceContext{
		Left:  &Context{tokens: tokens[:start], left: true, types: types},
		Right: &Context{tokens: tokens[end:], types: types},
	}, nil
}

// Align uses the default type mapping.
func Align(tagged, plain, pat string) (*SentenceContext, error) {
	return Aligner{}.Align(tagged, plain, pat)
}

// findSpan returns the half-open token range of the first occurrence of
// needle in hay, or -1, -1.
func findSpan(hay, needle []string) (int, int) {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1, -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, n := range needle {
			if hay[i+j] != n {
				continue outer
			}
		}
		return i, i + len(needle)
	}
	return -1, -1
}

// Context is the part of a sentence on one side of a pattern.
type Context struct {
	tokens []token
	left   bool
	types  *TypeMapper
}

// Len returns the number of tokens in the view.
func (c *Context) Len() int { return len(c.tokens) }

type run struct {
	from, to int // inclusive token indexes within the view
}

// nearest returns the entity run of class closest to the pattern.
func (c *Context) nearest(class string) (run, bool) {
	var runs []run
	for i := 0; i < len(c.tokens); i++ {
		t := c.tokens[i]
		if t.class != class {
			continue
		}
		n := len(runs)
		if n > 0 && runs[n-1].to == i-1 && !t.begin {
			runs[n-1].to = i
			continue
		}
		runs = append(runs, run{from: i, to: i})
	}
	if len(runs) == 0 {
		return run{}, false
	}
	if c.left {
		return runs[len(runs)-1], true
	}
	return runs[0], true
}

// HasSuitableEntity reports whether an entity of typeURI occurs in the view.
func (c *Context) HasSuitableEntity(typeURI string) bool {
	_, ok := c.nearest(c.types.Class(typeURI))
	return ok
}

// SuitableEntityDistance returns the number of tokens between the pattern
// boundary and the nearest entity of typeURI, counting the entity token
// itself, so an adjacent entity is at distance 1. It returns -1 when the view
// holds no such entity.
func (c *Context) SuitableEntityDistance(typeURI string) int {
	r, ok := c.nearest(c.types.Class(typeURI))
	if !ok {
		return -1
	}
	if c.left {
		return len(c.tokens) - r.to
	}
	return r.from + 1
}

// SuitableEntity returns the surface text of the nearest entity of typeURI,
// or "" when there is none.
func (c *Context) SuitableEntity(typeURI string) string {
	r, ok := c.nearest(c.types.Class(typeURI))
	if !ok {
		return ""
	}
	words := make([]string, 0, r.to-r.from+1)
	for _, t := range c.tokens[r.from : r.to+1] {
		words = append(words, t.word)
	}
	return strings.Join(words, " ")
}
