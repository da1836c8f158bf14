package models

import (
	"time"

	"github.com/google/uuid"
)

// PosCounter backs the per-store sequential numbering for sessions and
// transactions. NextValue is bumped with a guarded UPDATE, never read then
// written.
type PosCounter struct {
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;primaryKey"`
	Kind      string    `gorm:"column:kind;primaryKey"`
	NextValue int       `gorm:"column:next_value;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

const (
	CounterKindSession     = "pos_session"
	CounterKindTransaction = "sales_transaction"
)
