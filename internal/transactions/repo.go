package transactions

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/pkg/db/models"
)

// Repository exposes persistence operations for finalized sales.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a transactions repository bound to the provided DB.
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

// Create inserts the transaction row with its line copies.
func (r *Repository) Create(ctx context.Context, txn *models.SalesTransaction) (*models.SalesTransaction, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	for i := range txn.Items {
		if txn.Items[i].ID == uuid.Nil {
			txn.Items[i].ID = uuid.New()
		}
		txn.Items[i].TransactionID = txn.ID
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// FindByID loads a transaction with its lines; (nil, nil) when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SalesTransaction, error) {
	var txn models.SalesTransaction
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// FindBySessionID returns the transaction already linked to a session, if
// any, for idempotent finalization.
func (r *Repository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.SalesTransaction, error) {
	var txn models.SalesTransaction
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ?", sessionID).
		First(&txn).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// Updates patches the given columns on a transaction row.
func (r *Repository) Updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SalesTransaction{}).
		Where("id = ?", id).
		Updates(values).Error
}

// FormatNumber renders the per-store sequence as a receipt number.
func FormatNumber(sequence int) string {
	return fmt.Sprintf("TXN-%06d", sequence)
}
