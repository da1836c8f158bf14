package models

import (
	"time"

	"github.com/google/uuid"
)

// PosCartItem is one SKU line in a session's cart. Repeated scans of the
// same SKU aggregate into one row; quantity never drops to zero (that is a
// delete). Product fields are snapshotted at add time so later catalog edits
// do not rewrite a historical cart. Each row corresponds to exactly one
// outstanding hold of the same quantity on the same SKU.
type PosCartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SessionID uuid.UUID `gorm:"column:session_id;type:uuid;not null;uniqueIndex:idx_session_product,priority:1"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_session_product,priority:2"`

	ProductName string  `gorm:"column:product_name;not null"`
	ProductSKU  string  `gorm:"column:product_sku;not null"`
	Barcode     *string `gorm:"column:barcode"`
	ImageURL    *string `gorm:"column:image_url"`

	UnitPriceCents int `gorm:"column:unit_price_cents;not null"`
	Quantity       int `gorm:"column:quantity;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
