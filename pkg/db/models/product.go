package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the minimal catalog row the POS engine reads. Catalog CRUD
// lives elsewhere; this side only consumes price and display fields.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID           uuid.UUID `gorm:"column:store_id;type:uuid;not null;index"`
	Name              string    `gorm:"column:name;not null"`
	SKU               string    `gorm:"column:sku;not null"`
	Barcode           *string   `gorm:"column:barcode"`
	ImageURL          *string   `gorm:"column:image_url"`
	UnitPriceCents    int       `gorm:"column:unit_price_cents;not null;default:0"`
	TaxRateBasisPoint int       `gorm:"column:tax_rate_basis_points;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
