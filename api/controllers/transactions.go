package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/api/responses"
	"github.com/athenaretail/pos-backend/api/validators"
	"github.com/athenaretail/pos-backend/internal/transactions"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/types"
)

type directSaleItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type directSaleRequest struct {
	StoreID         uuid.UUID               `json:"storeId" validate:"required"`
	TerminalID      string                  `json:"terminalId" validate:"required"`
	CustomerID      *uuid.UUID              `json:"customerId,omitempty"`
	CustomerInfo    *types.CustomerInfo     `json:"customerInfo,omitempty"`
	Items           []directSaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string                  `json:"paymentMethod" validate:"required"`
	AmountPaidCents int                     `json:"amountPaidCents"`
}

// TransactionCreateDirect rings a walk-up sale with no session.
func TransactionCreateDirect(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cashierID, err := cashierIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload directSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		items := make([]transactions.DirectItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, transactions.DirectItemInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}
		txn, err := svc.CreateDirect(r.Context(), transactions.CreateDirectInput{
			StoreID:         payload.StoreID,
			TerminalID:      payload.TerminalID,
			CashierID:       cashierID,
			CustomerID:      payload.CustomerID,
			CustomerInfo:    payload.CustomerInfo,
			Items:           items,
			PaymentMethod:   method,
			AmountPaidCents: payload.AmountPaidCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(*txn))
	}
}

func TransactionGet(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Get(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponse(*txn))
	}
}

// TransactionVoid reverses a finalized sale and restores physical stock.
func TransactionVoid(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cashierID, err := cashierIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transactionID, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Void(r.Context(), transactionID, cashierID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponse(*txn))
	}
}
