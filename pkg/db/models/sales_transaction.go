package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/enums"
	"github.com/athenaretail/pos-backend/pkg/types"
)

// SalesTransaction is the immutable record of a finalized sale. Financial
// fields never change after creation; the only permitted follow-up is the
// explicit void path, which also reverses the physical stock decrement.
type SalesTransaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	StoreID           uuid.UUID               `gorm:"column:store_id;type:uuid;not null;index"`
	TransactionNumber string                  `gorm:"column:transaction_number;not null;uniqueIndex"`
	SessionID         *uuid.UUID              `gorm:"column:session_id;type:uuid;index"`
	TerminalID        string                  `gorm:"column:terminal_id;not null"`
	CashierID         uuid.UUID               `gorm:"column:cashier_id;type:uuid;not null"`
	CustomerID        *uuid.UUID              `gorm:"column:customer_id;type:uuid"`
	CustomerInfo      *types.CustomerInfo     `gorm:"column:customer_info;type:jsonb"`
	SubtotalCents     int                     `gorm:"column:subtotal_cents;not null"`
	TaxCents          int                     `gorm:"column:tax_cents;not null"`
	TotalCents        int                     `gorm:"column:total_cents;not null"`
	AmountPaidCents   int                     `gorm:"column:amount_paid_cents;not null"`
	ChangeCents       int                     `gorm:"column:change_cents;not null;default:0"`
	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;not null"`
	Status            enums.TransactionStatus `gorm:"column:status;not null;default:'completed'"`
	VoidReason        *string                 `gorm:"column:void_reason"`
	VoidedAt          *time.Time              `gorm:"column:voided_at"`

	Items []SalesTransactionItem `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
