package sessions

import (
	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	"github.com/athenaretail/pos-backend/pkg/types"
)

// CreateInput opens (or reuses) a checkout session on a terminal.
type CreateInput struct {
	StoreID       uuid.UUID
	TerminalID    string
	CashierID     uuid.UUID
	RegisterLabel *string
}

// UpdateMetadataInput carries the optional mid-session patches a terminal
// syncs while scanning: customer attachment and working totals.
type UpdateMetadataInput struct {
	CustomerID    *uuid.UUID
	CustomerInfo  *types.CustomerInfo
	SubtotalCents *int
	TaxCents      *int
	TotalCents    *int
}

// CompleteInput finalizes a session with the caller-supplied final numbers.
type CompleteInput struct {
	PaymentMethod   enums.PaymentMethod
	SubtotalCents   int
	TaxCents        int
	TotalCents      int
	AmountPaidCents int
	ChangeCents     *int
}

// ListFilter narrows the session listing.
type ListFilter struct {
	StoreID    uuid.UUID
	Status     *enums.SessionStatus
	TerminalID *string
	Limit      int
	Offset     int
}

// SessionDetail is the enriched read model: the session with its items and
// the resolved customer row when one is linked.
type SessionDetail struct {
	Session  models.PosSession `json:"session"`
	Customer *models.Customer  `json:"customer,omitempty"`
}
