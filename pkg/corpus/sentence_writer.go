package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SentenceRecord is one segmented sentence queued for the corpus. A record
// with empty Text only advances the source checkpoint.
type SentenceRecord struct {
	SourceID int64
	Position int
	Text     string
}

// SentenceWriter buffers sentence records and commits them in batches, one
// transaction per batch. Each batch also moves the checkpoint of every source
// it touches to the last position it holds, so a crash never records progress
// for sentences that were not stored. A failing insert rolls back its whole
// batch, checkpoint included.
type SentenceWriter struct {
	mu          sync.Mutex
	buf         []SentenceRecord
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan []SentenceRecord
	db       *sql.DB
	written  int64
	OnError  func(error)

	// firstErr is the first asynchronous error seen by the writer.
	errMu    sync.Mutex
	firstErr error
}

// NewSentenceWriter starts a writer that commits every batchSize records
// and, if flushInterval > 0, on that interval.
func NewSentenceWriter(db *sql.DB, batchSize int, flushInterval time.Duration) *SentenceWriter {
	if batchSize <= 0 {
		batchSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &SentenceWriter{
		buf:      make([]SentenceRecord, 0, batchSize),
		cap:      batchSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []SentenceRecord, 2),
		db:       db,
	}

	w.wg.Add(1)
	go w.committer()

	if flushInterval > 0 {
		w.flushTicker = time.NewTicker(flushInterval)
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Write enqueues a record.
func (w *SentenceWriter) Write(rec SentenceRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.buf = append(w.buf, rec)
	if len(w.buf) >= w.cap {
		w.flushLocked()
	}
	return nil
}

// Written returns how many sentences committed batches inserted or matched.
func (w *SentenceWriter) Written() int { return int(atomic.LoadInt64(&w.written)) }

func (w *SentenceWriter) recordErr(err error) {
	w.errMu.Lock()
	if w.firstErr == nil {
		w.firstErr = err
	}
	w.errMu.Unlock()
	if w.OnError != nil {
		w.OnError(err)
	}
}

// flushLocked assumes w.mu is held. Blocking on a busy committer is the
// backpressure Write callers see.
func (w *SentenceWriter) flushLocked() {
	if len(w.buf) == 0 {
		return
	}
	batch := w.buf
	w.buf = make([]SentenceRecord, 0, w.cap)

	select {
	case w.commitCh <- batch:
	case <-w.ctx.Done():
		w.recordErr(fmt.Errorf("sentence writer: dropping batch of %d records after close", len(batch)))
	}
}

func (w *SentenceWriter) committer() {
	defer w.wg.Done()
	for batch := range w.commitCh {
		n, err := w.commit(batch)
		if err != nil {
			w.recordErr(err)
			continue
		}
		atomic.AddInt64(&w.written, int64(n))
	}
}

func (w *SentenceWriter) commit(batch []SentenceRecord) (int, error) {
	// Background context so a closing writer still commits what it accepted.
	ctx := context.Background()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sentence batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	written := 0
	last := make(map[int64]int)
	for _, rec := range batch {
		if rec.Text != "" {
			if _, err := AddSentence(tx, rec.SourceID, rec.Position, rec.Text); err != nil {
				return 0, fmt.Errorf("sentence %d of source %d: %w", rec.Position, rec.SourceID, err)
			}
			written++
		}
		if p, ok := last[rec.SourceID]; !ok || rec.Position > p {
			last[rec.SourceID] = rec.Position
		}
	}
	for sourceID, pos := range last {
		if sourceID == 0 {
			continue
		}
		if err := UpdateSourceProgress(tx, sourceID, pos); err != nil {
			return 0, fmt.Errorf("save progress of source %d: %w", sourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sentence batch (%d records): %w", len(batch), err)
	}
	return written, nil
}

func (w *SentenceWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
		}
	}
}

// Close stops accepting records, commits what is buffered and returns the
// first error seen by any batch.
func (w *SentenceWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.flushLocked()
	w.mu.Unlock()

	w.cancel()
	close(w.commitCh)
	w.wg.Wait()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.firstErr
}

// ErrWriterClosed is returned when writing to or closing a closed writer.
var ErrWriterClosed = &WriterError{"sentence writer closed"}

// WriterError is the typed error for SentenceWriter misuse.
type WriterError struct{ msg string }

func (e *WriterError) Error() string { return e.msg }
