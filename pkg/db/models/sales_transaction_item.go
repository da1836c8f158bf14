package models

import (
	"time"

	"github.com/google/uuid"
)

// SalesTransactionItem is the line copy taken from a cart item at the moment
// of sale.
type SalesTransactionItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`

	ProductName string  `gorm:"column:product_name;not null"`
	ProductSKU  string  `gorm:"column:product_sku;not null"`
	ImageURL    *string `gorm:"column:image_url"`

	UnitPriceCents int `gorm:"column:unit_price_cents;not null"`
	Quantity       int `gorm:"column:quantity;not null"`
	LineTotalCents int `gorm:"column:line_total_cents;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
