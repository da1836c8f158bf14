package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/outbox"
)

const (
	expiryBatchLimit = 200
	expiredNote      = "Expired by reaper after idle window lapsed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type expiredSessionReader interface {
	FindExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.PosSession, error)
}

type holdReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type sessionTxRepo interface {
	FindByIDLocked(ctx context.Context, id uuid.UUID) (*models.PosSession, error)
	CloseOpen(ctx context.Context, id uuid.UUID, values map[string]any) (bool, error)
}

type sessionRepoFactory func(tx *gorm.DB) sessionTxRepo

func defaultSessionRepo(tx *gorm.DB) sessionTxRepo {
	return sessions.NewRepository(tx)
}

// SessionExpiryJobParams configure the expiration reaper.
type SessionExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Reader      expiredSessionReader
	Inventory   holdReleaser
	Outbox      outboxEmitter
	RepoFactory sessionRepoFactory
}

// NewSessionExpiryJob builds the reaper that expires idle open sessions and
// returns their holds to the available pool.
func NewSessionExpiryJob(params SessionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("expired session reader required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultSessionRepo
	}
	return &sessionExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		reader:      params.Reader,
		inventory:   params.Inventory,
		outbox:      params.Outbox,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type sessionExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	reader      expiredSessionReader
	inventory   holdReleaser
	outbox      outboxEmitter
	repoFactory sessionRepoFactory
	now         func() time.Time

	processed int
}

func (j *sessionExpiryJob) Name() string { return "session-expiry" }

func (j *sessionExpiryJob) ProcessedCount() int { return j.processed }

// Run sweeps active and held sessions past their idle window. Each session
// expires in its own transaction so one bad row cannot roll back the whole
// sweep; failures are collected and the rest of the batch proceeds.
func (j *sessionExpiryJob) Run(ctx context.Context) error {
	j.processed = 0
	now := j.now().UTC()
	rows, err := j.reader.FindExpiredOpen(ctx, now, expiryBatchLimit)
	if err != nil {
		return fmt.Errorf("query expired sessions: %w", err)
	}

	var errs []error
	for _, session := range rows {
		if err := j.expireSession(ctx, session.ID); err != nil {
			logCtx := j.logg.WithSessionID(ctx, session.ID.String())
			j.logg.Error(logCtx, "expire session", err)
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		j.processed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"expired":    j.processed,
	})
	j.logg.Info(logCtx, "session expiry sweep complete")
	return multierr.Combine(errs...)
}

func (j *sessionExpiryJob) expireSession(ctx context.Context, sessionID uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		session, err := repo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return err
		}
		// re-check under the row lock: a resume or void may have won the
		// race since the sweep query ran
		if session == nil || !session.Status.IsOpen() {
			return nil
		}
		now := j.now().UTC()
		if !session.TimeExpired(now) {
			return nil
		}

		// claim the row before touching holds; the guarded flip matches
		// zero rows when a concurrent closer already released them
		claimed, err := repo.CloseOpen(ctx, session.ID, map[string]any{
			"status":      enums.SessionStatusExpired,
			"status_note": expiredNote,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		released := 0
		for productID, qty := range aggregateHolds(session.Items) {
			if err := j.inventory.Release(ctx, tx, productID, qty); err != nil {
				return err
			}
			released += qty
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSessionExpired,
			AggregateType: enums.AggregatePosSession,
			AggregateID:   session.ID,
			Version:       1,
			OccurredAt:    now,
			Data: SessionExpiredEvent{
				SessionID:    session.ID,
				StoreID:      session.StoreID,
				TerminalID:   session.TerminalID,
				ReleasedQty:  released,
				ExpiredAt:    now,
				PriorStatus:  string(session.Status),
				ItemLineRows: len(session.Items),
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}

// SessionExpiredEvent is the outbox payload emitted when the reaper closes a
// session.
type SessionExpiredEvent struct {
	SessionID    uuid.UUID `json:"sessionId"`
	StoreID      uuid.UUID `json:"storeId"`
	TerminalID   string    `json:"terminalId"`
	ReleasedQty  int       `json:"releasedQty"`
	ExpiredAt    time.Time `json:"expiredAt"`
	PriorStatus  string    `json:"priorStatus"`
	ItemLineRows int       `json:"itemLineRows"`
}

func aggregateHolds(items []models.PosCartItem) map[uuid.UUID]int {
	holds := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		holds[item.ProductID] += item.Quantity
	}
	return holds
}
