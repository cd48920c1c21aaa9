package corpus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/japaniel/patternminer/pkg/nlp"
)

// Importer segments raw sentences and writes them to the corpus in batches,
// checkpointing per source so an interrupted import resumes where it stopped.
type Importer struct {
	Store     *Store
	Segmenter nlp.Segmenter
	BatchSize int
	Logger    logrus.FieldLogger
	// OnProgress is called periodically with the number of processed sentences and total sentences.
	OnProgress func(current, total int)
}

// NewImporter creates an Importer writing batches of 50 sentences. A nil
// segmenter tokenizes English.
func NewImporter(store *Store, seg nlp.Segmenter) *Importer {
	if seg == nil {
		seg = nlp.NewEnglish()
	}
	return &Importer{
		Store:     store,
		Segmenter: seg,
		BatchSize: 50,
		Logger:    logrus.StandardLogger(),
	}
}

// Import stores sentences for sourceID and returns how many were written in
// this call.
func (im *Importer) Import(ctx context.Context, sourceID int64, sentences []string) (int, error) {
	db := im.Store.DB()
	lastProcessed, err := GetSourceProgress(db, sourceID)
	if err != nil {
		im.Logger.WithError(err).WithField("source", sourceID).Warn("Failed to retrieve progress")
		lastProcessed = -1
	}
	startIdx := lastProcessed + 1
	if startIdx > 0 {
		im.Logger.WithField("source", sourceID).Infof("Resuming from sentence index %d", startIdx)
	}
	total := len(sentences)
	if startIdx >= total {
		return 0, nil
	}

	w := NewSentenceWriter(db, im.BatchSize, 100*time.Millisecond)
	for i := startIdx; i < total; i++ {
		if err := ctx.Err(); err != nil {
			if cerr := w.Close(); cerr != nil {
				im.Logger.WithError(cerr).Warn("Flushing after cancellation failed")
			}
			return w.Written(), err
		}
		rec := SentenceRecord{SourceID: sourceID, Position: i, Text: im.Segmenter.Segment(sentences[i])}
		if err := w.Write(rec); err != nil {
			_ = w.Close()
			return w.Written(), err
		}
		if im.OnProgress != nil && (i+1)%im.BatchSize == 0 {
			im.OnProgress(i+1, total)
		}
	}

	err = w.Close()
	if im.OnProgress != nil {
		im.OnProgress(total, total)
	}
	return w.Written(), err
}
