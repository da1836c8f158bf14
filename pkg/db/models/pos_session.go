package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/enums"
	"github.com/athenaretail/pos-backend/pkg/types"
)

// PosSession is one checkout flow on a terminal. Totals are working
// estimates until the session completes, at which point the caller-supplied
// final numbers are persisted and become the audit record. Rows are never
// deleted in normal operation; the retention job removes terminal-status
// rows after the grace window.
type PosSession struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	StoreID       uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	TerminalID    string              `gorm:"column:terminal_id;not null;index"`
	CashierID     uuid.UUID           `gorm:"column:cashier_id;type:uuid;not null"`
	RegisterLabel *string             `gorm:"column:register_label"`
	SessionNumber int                 `gorm:"column:session_number;not null"`
	Status        enums.SessionStatus `gorm:"column:status;not null;default:'active';index"`
	ExpiresAt     time.Time           `gorm:"column:expires_at;not null;index"`

	HeldAt      *time.Time `gorm:"column:held_at"`
	ResumedAt   *time.Time `gorm:"column:resumed_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	VoidedAt    *time.Time `gorm:"column:voided_at"`
	HoldReason  *string    `gorm:"column:hold_reason"`
	VoidReason  *string    `gorm:"column:void_reason"`
	StatusNote  *string    `gorm:"column:status_note"`

	CustomerID   *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	CustomerInfo *types.CustomerInfo `gorm:"column:customer_info;type:jsonb"`

	SubtotalCents   int `gorm:"column:subtotal_cents;not null;default:0"`
	TaxCents        int `gorm:"column:tax_cents;not null;default:0"`
	TotalCents      int `gorm:"column:total_cents;not null;default:0"`
	AmountPaidCents int `gorm:"column:amount_paid_cents;not null;default:0"`
	ChangeCents     int `gorm:"column:change_cents;not null;default:0"`

	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method"`
	TransactionID *uuid.UUID           `gorm:"column:transaction_id;type:uuid"`

	Items []PosCartItem `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TimeExpired reports whether the session is past its idle window at the
// given instant, regardless of what the stored status says.
func (s PosSession) TimeExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
