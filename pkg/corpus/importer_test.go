package corpus

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/patternminer/pkg/nlp"
)

func newTestImporter(t *testing.T) (*Importer, *Store, int64) {
	t.Helper()
	s := setupStore(t)
	sourceID, err := CreateOrGetSource(s.DB(), "text", "test", "", "", "", "")
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	im := NewImporter(s, nlp.WhitespaceSegmenter{})
	im.BatchSize = 2
	im.Logger = logger
	return im, s, sourceID
}

func TestImporterWritesSegmentedSentences(t *testing.T) {
	im, s, sourceID := newTestImporter(t)
	var last [2]int
	im.OnProgress = func(current, total int) { last = [2]int{current, total} }

	n, err := im.Import(context.Background(), sourceID, []string{
		"Berlin (Germany) is big.",
		"   ",
		"Paris is in France .",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [2]int{3, 3}, last)

	got, err := s.ExactMatchSentences(context.Background(), "-LRB- Germany -RRB-", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Berlin -LRB- Germany -RRB- is big."}, got)

	progress, err := GetSourceProgress(s.DB(), sourceID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress)
}

func TestImporterSplitsPunctuationByDefault(t *testing.T) {
	s := setupStore(t)
	sourceID, err := CreateOrGetSource(s.DB(), "text", "prose", "", "", "", "")
	require.NoError(t, err)
	im := NewImporter(s, nil)
	logger, _ := test.NewNullLogger()
	im.Logger = logger

	ctx := context.Background()
	sentences := nlp.SplitSentences("Angela Merkel was born in Hamburg. Berlin, the capital of Germany, is large.")
	n, err := im.Import(ctx, sourceID, sentences)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := s.SentencesWithBoth(ctx, "Merkel", "Hamburg", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Angela Merkel was born in Hamburg .", found[0].Text)

	found, err = s.SentencesWithBoth(ctx, "Berlin", "Germany", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Berlin , the capital of Germany , is large .", found[0].Text)
}

func TestImporterResumes(t *testing.T) {
	im, s, sourceID := newTestImporter(t)
	ctx := context.Background()
	sentences := []string{"a b .", "c d .", "e f ."}

	n, err := im.Import(ctx, sourceID, sentences)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = im.Import(ctx, sourceID, sentences)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = im.Import(ctx, sourceID, append(sentences, "g h .", "i j ."))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.CountSentences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestImporterCancelled(t *testing.T) {
	im, _, sourceID := newTestImporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := im.Import(ctx, sourceID, []string{"a b ."})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestImporterUnknownSourceStartsFromZero(t *testing.T) {
	im, _, _ := newTestImporter(t)
	logger, hook := test.NewNullLogger()
	im.Logger = logger

	// Progress lookup fails, so the import starts at index 0 and the
	// progress update touches no row.
	n, err := im.Import(context.Background(), 42, []string{"x y ."})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}
