package transactions

import (
	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/enums"
	"github.com/athenaretail/pos-backend/pkg/types"
)

// DirectItemInput is one SKU line of a walk-up sale.
type DirectItemInput struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// CreateDirectInput finalizes a sale without a prior session: the cashier
// rings the items and takes payment in one step.
type CreateDirectInput struct {
	StoreID         uuid.UUID           `json:"storeId"`
	TerminalID      string              `json:"terminalId"`
	CashierID       uuid.UUID           `json:"cashierId"`
	CustomerID      *uuid.UUID          `json:"customerId,omitempty"`
	CustomerInfo    *types.CustomerInfo `json:"customerInfo,omitempty"`
	Items           []DirectItemInput   `json:"items"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	AmountPaidCents int                 `json:"amountPaidCents"`
}

// Shortfall reports a SKU whose physical stock cannot cover the sale.
type Shortfall struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	OnHand    int       `json:"onHand"`
}
