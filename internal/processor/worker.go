// Package processor implements the session pipeline execution loop.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LaazAlae/alaeautomates-backend/internal/metrics"
	"github.com/LaazAlae/alaeautomates-backend/internal/progress"
	"github.com/LaazAlae/alaeautomates-backend/internal/review"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

// Config controls Worker behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	Topic       string
}

// Worker consumes queue items and executes the classify and results phases.
type Worker struct {
	queue     statements.Queue
	store     statements.SessionStore
	blobStore statements.BlobStore
	publisher statements.Publisher
	hasher    statements.Hasher
	clock     statements.Clock
	reviews   *review.Registry
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue statements.Queue,
	store statements.SessionStore,
	blobStore statements.BlobStore,
	publisher statements.Publisher,
	hasher statements.Hasher,
	clock statements.Clock,
	reviews *review.Registry,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "application/zip"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		store:     store,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		reviews:   reviews,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued work item",
			zap.String("session_id", item.SessionID),
			zap.String("phase", string(item.Phase)),
		)
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item statements.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	var err error
	switch item.Phase {
	case statements.PhaseClassify:
		err = w.runClassify(ctx, item)
	case statements.PhaseResults:
		err = w.runResults(ctx, item)
	default:
		err = fmt.Errorf("unknown phase %q", item.Phase)
	}
	if err != nil {
		w.failSession(ctx, item.SessionID, err)
	}
}

func (w *Worker) runClassify(ctx context.Context, item statements.QueueItem) error {
	if err := w.store.UpdateSessionStatus(ctx, item.SessionID, statements.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	w.emit(progress.Event{SessionID: item.SessionID, Stage: progress.StageSessionStart})

	classifier := statements.NewClassifier(item.Params.DNMCompanies)
	total := len(item.Params.Records)
	if err := w.store.UpdateSessionProgress(ctx, item.SessionID, statements.Progress{Total: total}); err != nil {
		return fmt.Errorf("init progress: %w", err)
	}

	classified := make([]statements.ClassifiedStatement, 0, total)
	for i, rec := range item.Params.Records {
		if ctx.Err() != nil {
			return fmt.Errorf("classification interrupted: %w", ctx.Err())
		}
		cls := classifier.Classify(rec)
		st := statements.ClassifiedStatement{Record: rec, Classification: cls}
		classified = append(classified, st)

		if err := w.store.RecordStatement(ctx, item.SessionID, st); err != nil {
			return fmt.Errorf("record statement: %w", err)
		}
		prog := statements.Progress{Processed: i + 1, Total: total}
		if err := w.store.UpdateSessionProgress(ctx, item.SessionID, prog); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		w.emit(progress.Event{
			SessionID:   item.SessionID,
			Stage:       progress.StageStatementDone,
			Destination: string(cls.Destination),
			Processed:   i + 1,
			Total:       total,
		})
	}

	questions := w.reviews.Register(item.SessionID, classified)
	if err := w.store.UpdateSessionQuestions(ctx, item.SessionID, questions > 0, questions); err != nil {
		return fmt.Errorf("update questions: %w", err)
	}
	if err := w.store.UpdateSessionStatus(ctx, item.SessionID, statements.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.logger.Info("classification finished",
		zap.String("session_id", item.SessionID),
		zap.Int("statements", total),
		zap.Int("questions", questions),
	)

	// Sessions with no questions flow straight into the results phase.
	if questions == 0 {
		next := item
		next.Phase = statements.PhaseResults
		if err := w.queue.Enqueue(ctx, next); err != nil {
			return fmt.Errorf("enqueue results phase: %w", err)
		}
	}
	return nil
}

func (w *Worker) runResults(ctx context.Context, item statements.QueueItem) error {
	if err := w.store.UpdateSessionStatus(ctx, item.SessionID, statements.StatusCreatingResults, ""); err != nil {
		return fmt.Errorf("mark creating results: %w", err)
	}
	w.emit(progress.Event{SessionID: item.SessionID, Stage: progress.StageResultsStart})

	resolved, err := w.reviews.Take(item.SessionID)
	if err != nil {
		return fmt.Errorf("collect reviewed statements: %w", err)
	}
	if err := w.store.ReplaceStatements(ctx, item.SessionID, resolved); err != nil {
		return fmt.Errorf("persist reviewed statements: %w", err)
	}

	stats := statements.ComputeStatistics(resolved)
	archive, err := BuildArchive(resolved, stats)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}

	hash, err := w.hasher.Hash(archive)
	if err != nil {
		return fmt.Errorf("hash archive: %w", err)
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(item.SessionID, hash), w.cfg.ContentType, archive)
	if err != nil {
		return fmt.Errorf("put archive: %w", err)
	}
	if err := w.store.UpdateSessionArchive(ctx, item.SessionID, uri); err != nil {
		return fmt.Errorf("update archive uri: %w", err)
	}

	if err := w.publishCompletion(ctx, item.SessionID, uri, stats); err != nil {
		return err
	}
	if err := w.store.UpdateSessionStatus(ctx, item.SessionID, statements.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	dur := time.Duration(0)
	if item.Submitted > 0 {
		dur = w.clock.Now().Sub(time.Unix(item.Submitted, 0))
	}
	w.emit(progress.Event{SessionID: item.SessionID, Stage: progress.StageSessionDone, Dur: dur})
	w.logger.Info("results archived",
		zap.String("session_id", item.SessionID),
		zap.String("archive_uri", uri),
		zap.Int("statements", stats.TotalStatements),
	)
	return nil
}

func (w *Worker) publishCompletion(ctx context.Context, sessionID, uri string, stats statements.Statistics) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	payload := map[string]any{
		"session_id":  sessionID,
		"archive_uri": uri,
		"statistics":  stats,
		"timestamp":   w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	return nil
}

func (w *Worker) buildBlobPath(sessionID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.zip", sessionID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.zip", prefix, sessionID, hash)
}

func (w *Worker) failSession(ctx context.Context, sessionID string, cause error) {
	w.logger.Error("session failed", zap.String("session_id", sessionID), zap.Error(cause))
	w.reviews.Drop(sessionID)
	w.emit(progress.Event{SessionID: sessionID, Stage: progress.StageSessionError, Note: cause.Error()})
	if err := w.store.UpdateSessionStatus(ctx, sessionID, statements.StatusError, cause.Error()); err != nil {
		w.logger.Error("fail status update", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = w.clock.Now()
	}
	w.emitter.Emit(evt)
}
