package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/athenaretail/pos-backend/pkg/logger"
)

const (
	sessionRetentionDays = 90
	outboxRetentionDays  = 30
)

type terminalSessionDeleter interface {
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type publishedEventDeleter interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
}

// SessionRetentionJobParams configure the retention cleanup.
type SessionRetentionJobParams struct {
	Logger              *logger.Logger
	Sessions            terminalSessionDeleter
	Outbox              publishedEventDeleter
	SessionRetentionDay int
	OutboxRetentionDay  int
}

// NewSessionRetentionJob builds the job that trims terminal-status sessions
// and published outbox rows past their grace windows.
func NewSessionRetentionJob(params SessionRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	sessionDays := params.SessionRetentionDay
	if sessionDays <= 0 {
		sessionDays = sessionRetentionDays
	}
	outboxDays := params.OutboxRetentionDay
	if outboxDays <= 0 {
		outboxDays = outboxRetentionDays
	}
	return &sessionRetentionJob{
		logg:        params.Logger,
		sessions:    params.Sessions,
		outbox:      params.Outbox,
		sessionDays: sessionDays,
		outboxDays:  outboxDays,
		now:         time.Now,
	}, nil
}

type sessionRetentionJob struct {
	logg        *logger.Logger
	sessions    terminalSessionDeleter
	outbox      publishedEventDeleter
	sessionDays int
	outboxDays  int
	now         func() time.Time

	processed int
}

func (j *sessionRetentionJob) Name() string { return "session-retention" }

func (j *sessionRetentionJob) ProcessedCount() int { return j.processed }

func (j *sessionRetentionJob) Run(ctx context.Context) error {
	j.processed = 0
	now := j.now().UTC()

	var errs []error
	sessionCutoff := now.Add(-time.Duration(j.sessionDays) * 24 * time.Hour)
	deletedSessions, err := j.sessions.DeleteTerminalOlderThan(ctx, sessionCutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("session retention: %w", err))
	} else {
		j.processed += int(deletedSessions)
	}

	outboxCutoff := now.Add(-time.Duration(j.outboxDays) * 24 * time.Hour)
	deletedEvents, err := j.outbox.DeletePublishedBefore(outboxCutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("outbox retention: %w", err))
	} else {
		j.processed += int(deletedEvents)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"session_cutoff":   sessionCutoff,
		"sessions_deleted": deletedSessions,
		"outbox_cutoff":    outboxCutoff,
		"events_deleted":   deletedEvents,
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return multierr.Combine(errs...)
}
