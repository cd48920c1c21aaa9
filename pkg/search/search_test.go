package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/patternminer/pkg/corpus"
	"github.com/japaniel/patternminer/pkg/nlp"
	"github.com/japaniel/patternminer/pkg/pattern"
)

type fakeBackend struct {
	sentences []corpus.Sentence
	fail      map[string]bool
}

func (b *fakeBackend) SentencesWithBoth(ctx context.Context, first, second string, max int) ([]corpus.Sentence, error) {
	if b.fail[first] {
		return nil, errors.New("backend unavailable")
	}
	var out []corpus.Sentence
	for _, s := range b.sentences {
		padded := " " + s.Text + " "
		if strings.Contains(padded, " "+first+" ") && strings.Contains(padded, " "+second+" ") {
			out = append(out, s)
		}
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

var testSentences = []corpus.Sentence{
	{ID: 1, Text: "Angela Merkel was born in Hamburg ."},
	{ID: 2, Text: "Hamburg , the birthplace of Angela Merkel , is large ."},
	{ID: 3, Text: "Berlin is the capital of Germany ."},
	{ID: 4, Text: "Paris is the capital of France ."},
	{ID: 5, Text: "Barack Obama was born in Honolulu ."},
}

var testSeeds = []pattern.Seed{
	{Relation: "dbo:birthPlace", Subject: []string{"Angela Merkel", "Merkel"}, Object: []string{"Hamburg"}},
	{Relation: "dbo:capital", Subject: []string{"Germany"}, Object: []string{"Berlin"}},
	{Relation: "dbo:capital", Subject: []string{"France"}, Object: []string{"Paris"}},
	{Relation: "dbo:birthPlace", Subject: []string{"Barack Obama"}, Object: []string{"Honolulu"}},
}

func readLines(t *testing.T, fs afero.Fs, files []string) []string {
	t.Helper()
	var lines []string
	for _, f := range files {
		data, err := afero.ReadFile(fs, f)
		require.NoError(t, err)
		for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if l != "" {
				lines = append(lines, l)
			}
		}
	}
	sort.Strings(lines)
	return lines
}

func runSearch(t *testing.T, workers int, backend Backend) (afero.Fs, *Report) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger, _ := test.NewNullLogger()
	s := New(backend, fs, Config{Workers: workers, Dir: "hits", MaxPatternTokens: 5}, logger)
	report, err := s.Run(context.Background(), testSeeds)
	require.NoError(t, err)
	return fs, report
}

func TestRunWritesOneFilePerWorker(t *testing.T) {
	fs, report := runSearch(t, 2, &fakeBackend{sentences: testSentences})

	assert.Len(t, report.Files, 2)
	assert.Equal(t, 4, report.Seeds)
	assert.Zero(t, report.Failures)
	for _, f := range report.Files {
		assert.True(t, strings.HasPrefix(f, "hits/"+report.RunID))
	}

	lines := readLines(t, fs, report.Files)
	assert.Equal(t, int64(len(lines)), report.Hits)
	assert.Contains(t, lines, "dbo:birthPlace][?D? was born in ?R?][Angela Merkel][Hamburg][1")
	assert.Contains(t, lines, "dbo:birthPlace][?R? , the birthplace of ?D?][Angela Merkel][Hamburg][2")
	assert.Contains(t, lines, "dbo:birthPlace][?D? was born in ?R?][Merkel][Hamburg][1")
	assert.Contains(t, lines, "dbo:capital][?R? is the capital of ?D?][Germany][Berlin][3")

	ok, err := HasSerializedHits(fs, "hits")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunIsIndependentOfWorkerCount(t *testing.T) {
	backend := &fakeBackend{sentences: testSentences}
	fs1, r1 := runSearch(t, 1, backend)
	fs4, r4 := runSearch(t, 4, backend)

	assert.Len(t, r1.Files, 1)
	assert.Len(t, r4.Files, 4)
	assert.Equal(t, readLines(t, fs1, r1.Files), readLines(t, fs4, r4.Files))
}

func TestRunSkipsFailingSeeds(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger, hook := test.NewNullLogger()
	backend := &fakeBackend{sentences: testSentences, fail: map[string]bool{"Germany": true}}
	s := New(backend, fs, Config{Workers: 3, Dir: "hits"}, logger)

	report, err := s.Run(context.Background(), testSeeds)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Failures)
	assert.Positive(t, report.Hits)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Seed search failed, skipping" {
			warned = true
			assert.Equal(t, "dbo:capital", e.Data["relation"])
		}
	}
	assert.True(t, warned)
}

func TestRunWithoutSeeds(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger, _ := test.NewNullLogger()
	report, err := New(&fakeBackend{}, fs, Config{Workers: 4, Dir: "hits"}, logger).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, report.Files, 1)
	assert.Zero(t, report.Hits)

	ok, err := HasSerializedHits(fs, "hits")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunSegmentsLabels(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger, _ := test.NewNullLogger()
	backend := &fakeBackend{sentences: []corpus.Sentence{
		{ID: 7, Text: "The Duma -LRB- Russia -RRB- meets in Moscow ."},
	}}
	s := New(backend, fs, Config{Workers: 1, Dir: "hits", Segmenter: nlp.WhitespaceSegmenter{}}, logger)

	report, err := s.Run(context.Background(), []pattern.Seed{
		{Relation: "dbo:location", Subject: []string{"Duma (Russia)"}, Object: []string{" Moscow "}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dbo:location][?D? meets in ?R?][Duma -LRB- Russia -RRB-][Moscow][7"},
		readLines(t, fs, report.Files))
}

func TestRunDropsHitsThatCannotBeEncoded(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger, hook := test.NewNullLogger()
	backend := &fakeBackend{sentences: []corpus.Sentence{
		{ID: 1, Text: "Alpha a][b Beta ."},
		{ID: 2, Text: "Alpha x Beta ."},
		{ID: 3, Text: "Al][pha x Beta ."},
	}}
	s := New(backend, fs, Config{Workers: 1, Dir: "hits"}, logger)

	report, err := s.Run(context.Background(), []pattern.Seed{
		{Relation: "r", Subject: []string{"Alpha", "Al][pha"}, Object: []string{"Beta"}},
	})
	require.NoError(t, err)
	lines := readLines(t, fs, report.Files)
	assert.Equal(t, []string{"r][?D? x ?R?][Alpha][Beta][2"}, lines)
	assert.Equal(t, int64(1), report.Hits)
	for _, l := range lines {
		_, err := pattern.ParseHit(l, nil)
		assert.NoError(t, err)
	}

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Label contains the hit separator, skipping" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger, _ := test.NewNullLogger()
	s := New(&fakeBackend{sentences: testSentences}, afero.NewMemMapFs(), Config{Workers: 2, Dir: "hits"}, logger)

	report, err := s.Run(ctx, testSeeds)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		domain   string
		rng      string
		max      int
		want     []string
	}{
		{"domain first", "Merkel was born in Hamburg .", "Merkel", "Hamburg", 5, []string{"?D? was born in ?R?"}},
		{"range first", "Berlin is the capital of Germany .", "Germany", "Berlin", 5, []string{"?R? is the capital of ?D?"}},
		{"adjacent", "Merkel Hamburg", "Merkel", "Hamburg", 5, nil},
		{"too long", "Merkel was born long ago in Hamburg", "Merkel", "Hamburg", 3, nil},
		{"partial token", "Merkels home is Hamburg", "Merkel", "Hamburg", 5, nil},
		{"repeated", "A x B and A x B", "A", "B", 5, []string{"?D? x ?R?", "?D? x B and A x ?R?", "?R? and ?D?"}},
		{"empty label", "A x B", "", "B", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.sentence, tt.domain, tt.rng, tt.max))
		})
	}
}
