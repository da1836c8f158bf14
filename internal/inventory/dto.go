package inventory

import "github.com/google/uuid"

// HoldRequest asks for qty units of one SKU to be claimed from the
// available pool.
type HoldRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// Availability is the advisory answer to a stock probe. Only the guarded
// update in Acquire is authoritative.
type Availability struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Unavailable describes one SKU that could not satisfy a batch acquire.
type Unavailable struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Reason    string    `json:"reason"`
}
