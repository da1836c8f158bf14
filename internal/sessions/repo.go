package sessions

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
)

// Repository exposes persistence operations for checkout sessions.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a session repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new session row.
func (r *Repository) Create(ctx context.Context, session *models.PosSession) (*models.PosSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = enums.SessionStatusActive
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// FindByID loads a session with its cart items. Returns (nil, nil) when the
// row does not exist so callers can apply the expired-style treatment.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PosSession, error) {
	var session models.PosSession
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// FindActiveByTerminal returns the most recent active session on a terminal.
func (r *Repository) FindActiveByTerminal(ctx context.Context, storeID uuid.UUID, terminalID string) (*models.PosSession, error) {
	var session models.PosSession
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ? AND terminal_id = ? AND status = ?", storeID, terminalID, enums.SessionStatusActive).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// FindByIDLocked loads a session with its cart items under a row lock
// (SELECT ... FOR UPDATE) so concurrent status flips serialize on the row.
// Under read committed an unlocked read can serve a snapshot a concurrent
// void already invalidated. SQLite has no row locks; its single-writer
// model gives the same guarantee and the driver drops the clause.
func (r *Repository) FindByIDLocked(ctx context.Context, id uuid.UUID) (*models.PosSession, error) {
	var session models.PosSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Updates patches the given columns on a session row.
func (r *Repository) Updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PosSession{}).
		Where("id = ?", id).
		Updates(values).Error
}

// CloseOpen flips a still-open session to a terminal status in one guarded
// statement. Reports false when no open row matched, meaning a concurrent
// closer already won and the caller must not touch the session's holds.
func (r *Repository) CloseOpen(ctx context.Context, id uuid.UUID, values map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PosSession{}).
		Where("id = ? AND status IN ?", id, []enums.SessionStatus{
			enums.SessionStatusActive,
			enums.SessionStatusHeld,
		}).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns sessions matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.PosSession, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ?", filter.StoreID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.TerminalID != nil {
		query = query.Where("terminal_id = ?", *filter.TerminalID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.PosSession
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&rows).Error
	return rows, err
}

// FindExpiredOpen returns open sessions whose idle window has lapsed.
func (r *Repository) FindExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.PosSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.PosSession
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ? AND expires_at < ?", []enums.SessionStatus{enums.SessionStatusActive, enums.SessionStatusHeld}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DeleteTerminalOlderThan removes terminal-status sessions last touched
// before the cutoff. Item rows go with them via the FK cascade; the explicit
// delete keeps sqlite test runs honest.
func (r *Repository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	statuses := []enums.SessionStatus{
		enums.SessionStatusCompleted,
		enums.SessionStatusVoid,
		enums.SessionStatusExpired,
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PosSession{}).
		Where("status IN ? AND updated_at < ?", statuses, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Delete(&models.PosCartItem{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.PosSession{})
	return res.RowsAffected, res.Error
}

// DeleteItems purges all cart item rows for a session.
func (r *Repository) DeleteItems(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.PosCartItem{}).Error
}

// NextNumber atomically claims the next per-store sequence number for the
// given counter kind. The increment and read happen in one statement so
// concurrent claims serialize on the counter row.
func (r *Repository) NextNumber(ctx context.Context, storeID uuid.UUID, kind string) (int, error) {
	var value int
	err := r.db.WithContext(ctx).
		Raw(`
			UPDATE pos_counters
			SET next_value = next_value + 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE store_id = ? AND kind = ?
			RETURNING next_value
		`, storeID, kind).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	if value > 0 {
		return value, nil
	}
	// first claim for this store/kind; a racing insert loses on the
	// composite PK and retries the update
	counter := models.PosCounter{StoreID: storeID, Kind: kind, NextValue: 1}
	if err := r.db.WithContext(ctx).Create(&counter).Error; err != nil {
		retryErr := r.db.WithContext(ctx).
			Raw(`
				UPDATE pos_counters
				SET next_value = next_value + 1,
					updated_at = CURRENT_TIMESTAMP
				WHERE store_id = ? AND kind = ?
				RETURNING next_value
			`, storeID, kind).
			Scan(&value).Error
		if retryErr != nil {
			return 0, err
		}
		return value, nil
	}
	return 1, nil
}

// FindCustomer resolves the linked customer row for session enrichment.
func (r *Repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&customer).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}
