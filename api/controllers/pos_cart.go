package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/api/responses"
	"github.com/athenaretail/pos-backend/api/validators"
	"github.com/athenaretail/pos-backend/internal/cart"
	"github.com/athenaretail/pos-backend/pkg/logger"
)

type addItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type itemResponse struct {
	Item      cartItemResponse `json:"item"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

type removeItemResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

func CartItemList(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := pathUUID(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListItems(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]cartItemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, newCartItemResponse(item))
		}
		responses.WriteSuccess(w, out)
	}
}

// CartItemAdd scans a SKU into the session. Quantity is the desired line
// total; re-scanning the same product replaces the line's quantity.
func CartItemAdd(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cashierID, err := cashierIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AddOrUpdateItem(r.Context(), cart.AddItemInput{
			SessionID: sessionID,
			ProductID: payload.ProductID,
			Quantity:  payload.Quantity,
			CashierID: cashierID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, itemResponse{
			Item:      newCartItemResponse(result.Item),
			ExpiresAt: result.ExpiresAt,
		})
	}
}

func CartItemRemove(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cashierID, err := cashierIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RemoveItem(r.Context(), sessionID, itemID, cashierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, removeItemResponse{ExpiresAt: result.ExpiresAt})
	}
}
