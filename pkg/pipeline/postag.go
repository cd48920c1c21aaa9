package pipeline

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/japaniel/patternminer/pkg/pattern"
)

// tagPatterns stores the part-of-speech tags of every pattern's literal
// tokens, taken from the first sentence it was found in.
func (p *Pipeline) tagPatterns(ctx context.Context, mappings []*pattern.Mapping) int {
	tagged := 0
	for _, m := range mappings {
		for _, pat := range m.Patterns {
			if err := ctx.Err(); err != nil {
				return tagged
			}
			if tags := p.posTags(ctx, pat); tags != "" {
				pat.POSTags = tags
				tagged++
			}
		}
	}
	return tagged
}

func (p *Pipeline) posTags(ctx context.Context, pat *pattern.Pattern) string {
	literal := strings.Fields(pat.WithoutVariables())
	if len(literal) == 0 {
		return ""
	}
	log := p.log.WithFields(logrus.Fields{"relation": pat.Relation, "pattern": pat.Text})
	if ids := pat.Sentences(); len(ids) > 0 {
		sentence, err := p.corpus.SentenceByID(ctx, ids[0])
		if err != nil {
			log.WithError(err).Warn("Loading sentence for POS tagging failed")
		} else if tagged, err := p.tagger.Annotate(sentence); err != nil {
			log.WithError(err).Warn("POS tagging failed")
		} else if tags, ok := alignTags(tagged, literal); ok {
			return tags
		}
	}
	// Out of context as a fallback.
	tagged, err := p.tagger.Annotate(strings.Join(literal, " "))
	if err != nil {
		log.WithError(err).Warn("POS tagging failed")
		return ""
	}
	tags, _ := alignTags(tagged, literal)
	return tags
}

// alignTags maps "surface_TAG" tokens onto the literal tokens. A literal
// token the tagger split into several surfaces gets their tags joined by
// "+".
func alignTags(tagged string, literal []string) (string, bool) {
	var surfaces, tags []string
	for _, tok := range strings.Fields(tagged) {
		i := strings.LastIndexByte(tok, '_')
		if i <= 0 {
			continue
		}
		surfaces = append(surfaces, tok[:i])
		tags = append(tags, tok[i+1:])
	}
	for start := range surfaces {
		if out, ok := matchAt(surfaces, tags, start, literal); ok {
			return out, true
		}
	}
	return "", false
}

func matchAt(surfaces, tags []string, start int, literal []string) (string, bool) {
	out := make([]string, 0, len(literal))
	j := start
	for _, want := range literal {
		var acc strings.Builder
		var joined []string
		for j < len(surfaces) && acc.Len() < len(want) {
			acc.WriteString(surfaces[j])
			joined = append(joined, tags[j])
			j++
		}
		if acc.String() != want {
			return "", false
		}
		out = append(out, want+"_"+strings.Join(joined, "+"))
	}
	return strings.Join(out, " "), true
}
