package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
)

type finalizer interface {
	CreateFromSession(ctx context.Context, sessionID uuid.UUID) (*models.SalesTransaction, error)
}

type outboxStore interface {
	FetchUnpublished(eventType enums.OutboxEventType, limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// Options tunes the finalizer poll loop.
type Options struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Worker drains pos_session_completed outbox rows into sales transactions.
// The outbox row is the work queue entry: published means the transaction
// exists, attempt_count tracks retries, and rows that exhaust their attempts
// are left unpublished for an operator to inspect.
type Worker struct {
	outbox       outboxStore
	finalizer    finalizer
	logg         *logger.Logger
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
}

// New builds the finalizer worker.
func New(outbox outboxStore, fin finalizer, logg *logger.Logger, opts Options) (*Worker, error) {
	if outbox == nil {
		return nil, fmt.Errorf("outbox store required")
	}
	if fin == nil {
		return nil, fmt.Errorf("finalizer service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	return &Worker{
		outbox:       outbox,
		finalizer:    fin,
		logg:         logg,
		batchSize:    opts.BatchSize,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
	}, nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logg.Info(ctx, "finalizer worker started")
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "finalizer worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logg.Error(ctx, "finalizer poll failed", err)
			}
		}
	}
}

// RunOnce processes one batch and reports how many rows were finalized.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	rows, err := w.outbox.FetchUnpublished(enums.EventSessionCompleted, w.batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch completed-session events")
	}

	processed := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if row.AttemptCount >= w.maxAttempts {
			logCtx := w.logg.WithFields(ctx, map[string]any{
				"event_id":   row.ID.String(),
				"session_id": row.AggregateID.String(),
				"attempts":   row.AttemptCount,
			})
			w.logg.Warn(logCtx, "giving up on completed-session event")
			continue
		}
		if err := w.process(ctx, row); err != nil {
			logCtx := w.logg.WithSessionID(ctx, row.AggregateID.String())
			w.logg.Error(logCtx, "finalize session", err)
			if markErr := w.outbox.MarkFailed(row.ID, err); markErr != nil {
				w.logg.Error(ctx, "mark event failed", markErr)
			}
			continue
		}
		if err := w.outbox.MarkPublished(row.ID); err != nil {
			// the transaction exists; the next poll re-runs the
			// idempotent path and retries the mark
			w.logg.Error(ctx, "mark event published", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (w *Worker) process(ctx context.Context, row models.OutboxEvent) error {
	_, err := w.finalizer.CreateFromSession(ctx, row.AggregateID)
	return err
}
