package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/patternminer/pkg/config"
	"github.com/japaniel/patternminer/pkg/corpus"
	"github.com/japaniel/patternminer/pkg/nlp"
	"github.com/japaniel/patternminer/pkg/pattern"
	"github.com/japaniel/patternminer/pkg/store"
)

var (
	birthPlace = pattern.Relation{
		URI:    "http://dbpedia.org/ontology/birthPlace",
		Domain: "http://dbpedia.org/ontology/Person",
		Range:  "http://dbpedia.org/ontology/Place",
	}
	capital = pattern.Relation{
		URI:    "http://dbpedia.org/ontology/capital",
		Domain: "http://dbpedia.org/ontology/Country",
		Range:  "http://dbpedia.org/ontology/City",
	}
	seeds = []pattern.Seed{
		{Relation: birthPlace.URI, Subject: []string{"Angela Merkel"}, Object: []string{"Hamburg"}},
		{Relation: birthPlace.URI, Subject: []string{"Barack Obama"}, Object: []string{"Honolulu"}},
		{Relation: capital.URI, Subject: []string{"Germany"}, Object: []string{"Berlin"}},
		{Relation: capital.URI, Subject: []string{"France"}, Object: []string{"Paris"}},
	}
)

type wordTagger map[string]string

func (w wordTagger) Annotate(text string) (string, error) {
	var out []string
	for _, tok := range strings.Fields(text) {
		tag, ok := w[tok]
		if !ok {
			tag = "NN"
		}
		out = append(out, tok+"_"+tag)
	}
	return strings.Join(out, " "), nil
}

func setupCorpus(t *testing.T) *corpus.Store {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, corpus.InitDB(conn))
	t.Cleanup(func() { conn.Close() })
	for i, text := range []string{
		"Angela Merkel was born in Hamburg .",
		"Barack Obama was born in Honolulu .",
		"Olaf Scholz was born in Osnabrück .",
		"Berlin is the capital of Germany .",
		"Paris is the capital of France .",
		"Hamburg and Berlin are cities .",
	} {
		_, err := corpus.AddSentence(conn, 0, i, text)
		require.NoError(t, err)
	}
	return corpus.NewStore(conn)
}

func newPipeline(t *testing.T, fs afero.Fs, useSerialized bool) *Pipeline {
	t.Helper()
	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)
	cfg.WorkDir = "work"
	cfg.Search.Workers = 2
	cfg.Search.UseSerializedHits = useSerialized
	cfg.Scoring.Workers = 2
	cfg.Scoring.MaxSamples = 10

	logger, _ := test.NewNullLogger()
	gaz := nlp.NewGazetteer(map[string]string{
		"Angela Merkel": "PER", "Barack Obama": "PER", "Olaf Scholz": "PER",
		"Hamburg": "LOC", "Honolulu": "LOC", "Osnabrück": "LOC",
		"Berlin": "LOC", "Paris": "LOC", "Germany": "LOC", "France": "LOC",
	}, nil)
	p, err := New(cfg, Deps{
		Corpus:       setupCorpus(t),
		Fs:           fs,
		Tagger:       wordTagger{"was": "VBD", "born": "VBN", "in": "IN", "is": "VBZ", "the": "DT", "of": "IN"},
		NewAnnotator: func() (nlp.EntityAnnotator, error) { return gaz, nil },
		Log:          logger,
	})
	require.NoError(t, err)
	return p
}

func TestRunEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := newPipeline(t, fs, false)

	report, err := p.Run(context.Background(), []pattern.Relation{birthPlace, capital}, seeds)
	require.NoError(t, err)
	assert.False(t, report.SearchSkipped)
	require.NotNil(t, report.Search)
	assert.Equal(t, 4, report.Search.Seeds)
	assert.Equal(t, 2, report.Mappings)
	assert.Equal(t, 2, report.Patterns)
	assert.Len(t, report.Files, 2)
	for _, stage := range []string{"search", "aggregate", "filter", "postag", "score", "persist"} {
		assert.Contains(t, report.StageDurations, stage)
	}

	mappings, err := store.LoadAll(fs, "work/mappings")
	require.NoError(t, err)
	byRelation := make(map[string]*pattern.Mapping)
	for _, m := range mappings {
		byRelation[m.Relation.URI] = m
	}

	born := byRelation[birthPlace.URI].Lookup("?D? was born in ?R?")
	require.NotNil(t, born)
	assert.Equal(t, 2, born.Occurrences)
	assert.Equal(t, "was_VBD born_VBN in_IN", born.POSTags)
	// three samples, all entities adjacent
	assert.InDelta(t, 2.0, born.Typicity, 1e-9)
	assert.InDelta(t, math.Log2(3)*math.Log2(3), born.Support, 1e-9)
	assert.InDelta(t, 1.0, born.Specificity, 1e-9)
	assert.InDelta(t, born.Typicity*born.Support*2, born.Confidence, 1e-9)

	capitalOf := byRelation[capital.URI].Lookup("?R? is the capital of ?D?")
	require.NotNil(t, capitalOf)
	assert.False(t, capitalOf.DomainFirst)
	assert.InDelta(t, math.Log2(3), capitalOf.Typicity, 1e-9)
}

func TestRunReusesSerializedHits(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := newPipeline(t, fs, false).Run(context.Background(), []pattern.Relation{birthPlace, capital}, seeds)
	require.NoError(t, err)

	report, err := newPipeline(t, fs, true).Run(context.Background(), []pattern.Relation{birthPlace, capital}, nil)
	require.NoError(t, err)
	assert.True(t, report.SearchSkipped)
	assert.Nil(t, report.Search)
	assert.Equal(t, 2, report.Patterns)
}

func TestRunReplacesStaleHits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "work/hits/old-0.sr",
		[]byte("http://dbpedia.org/ontology/spouse][?D? married ?R?][a][b][1\n"), 0o644))

	report, err := newPipeline(t, fs, false).Run(context.Background(), []pattern.Relation{birthPlace, capital}, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Aggregate.Relations)
	exists, err := afero.Exists(fs, "work/hits/old-0.sr")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(&config.Config{}, Deps{})
	assert.Error(t, err)
	_, err = New(nil, Deps{})
	assert.Error(t, err)
}

type failingTagger struct{}

func (failingTagger) Annotate(string) (string, error) { return "", errors.New("tagger down") }

func TestPOSTagFailureIsNotFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := newPipeline(t, fs, false)
	p.tagger = failingTagger{}

	report, err := p.Run(context.Background(), []pattern.Relation{birthPlace, capital}, seeds)
	require.NoError(t, err)
	assert.Zero(t, report.Tagged)
	assert.Equal(t, 2, report.Patterns)
}

func TestRunTagsEnglishPatterns(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := newPipeline(t, fs, false)
	en := nlp.NewEnglish()
	p.tagger = en
	p.seg = en

	report, err := p.Run(context.Background(), []pattern.Relation{birthPlace, capital}, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tagged)

	mappings, err := store.LoadAll(fs, "work/mappings")
	require.NoError(t, err)
	for _, m := range mappings {
		for _, pat := range m.Patterns {
			assert.NotContains(t, pat.POSTags, "名詞")
			switch pat.Text {
			case "?D? was born in ?R?":
				assert.Contains(t, pat.POSTags, "born_VBN")
				assert.Contains(t, pat.POSTags, "in_IN")
			case "?R? is the capital of ?D?":
				assert.Contains(t, pat.POSTags, "the_DT")
				assert.Contains(t, pat.POSTags, "of_IN")
			}
		}
	}
}

func TestAlignTags(t *testing.T) {
	got, ok := alignTags("東京_名詞 に_助詞 行っ_動詞 た_助動詞", []string{"に", "行った"})
	require.True(t, ok)
	assert.Equal(t, "に_助詞 行った_動詞+助動詞", got)

	_, ok = alignTags("a_X b_Y", []string{"c"})
	assert.False(t, ok)
	_, ok = alignTags("", []string{"a"})
	assert.False(t, ok)
}
