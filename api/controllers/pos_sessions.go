package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/api/responses"
	"github.com/athenaretail/pos-backend/api/validators"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/types"
)

type createSessionRequest struct {
	StoreID       uuid.UUID `json:"storeId" validate:"required"`
	TerminalID    string    `json:"terminalId" validate:"required"`
	RegisterLabel *string   `json:"registerLabel,omitempty"`
}

type updateSessionRequest struct {
	CustomerID    *uuid.UUID          `json:"customerId,omitempty"`
	CustomerInfo  *types.CustomerInfo `json:"customerInfo,omitempty"`
	SubtotalCents *int                `json:"subtotalCents,omitempty"`
	TaxCents      *int                `json:"taxCents,omitempty"`
	TotalCents    *int                `json:"totalCents,omitempty"`
}

type reasonRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type completeSessionRequest struct {
	PaymentMethod   string `json:"paymentMethod" validate:"required"`
	SubtotalCents   int    `json:"subtotalCents"`
	TaxCents        int    `json:"taxCents"`
	TotalCents      int    `json:"totalCents"`
	AmountPaidCents int    `json:"amountPaidCents"`
	ChangeCents     *int   `json:"changeCents,omitempty"`
}

// SessionCreate opens a checkout session on a terminal; an existing active
// session with items on the same terminal is auto-held first.
func SessionCreate(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cashierID, err := cashierIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Create(r.Context(), sessions.CreateInput{
			StoreID:       payload.StoreID,
			TerminalID:    payload.TerminalID,
			CashierID:     cashierID,
			RegisterLabel: payload.RegisterLabel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(*session))
	}
}

func SessionList(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := queryUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := sessions.ListFilter{
			StoreID: storeID,
			Limit:   queryInt(r, "limit"),
			Offset:  queryInt(r, "offset"),
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseSessionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if terminal := r.URL.Query().Get("terminalId"); terminal != "" {
			filter.TerminalID = &terminal
		}
		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionListResponse(rows))
	}
}

// SessionActive returns the session the cashier can pick up on a terminal,
// or null when there is none.
func SessionActive(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cashierID, err := cashierIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := queryUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		terminalID := r.URL.Query().Get("terminalId")
		if terminalID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "terminalId is required"))
			return
		}
		var registerLabel *string
		if label := r.URL.Query().Get("registerLabel"); label != "" {
			registerLabel = &label
		}
		session, err := svc.GetActiveForTerminal(r.Context(), storeID, terminalID, cashierID, registerLabel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if session == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(*session))
	}
}

func SessionGet(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := pathUUID(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionDetailResponse(*detail))
	}
}

func SessionUpdate(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload updateSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.UpdateMetadata(r.Context(), sessionID, cashierID, sessions.UpdateMetadataInput{
			CustomerID:    payload.CustomerID,
			CustomerInfo:  payload.CustomerInfo,
			SubtotalCents: payload.SubtotalCents,
			TaxCents:      payload.TaxCents,
			TotalCents:    payload.TotalCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(*session))
	}
}

func SessionHold(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload reasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Hold(r.Context(), sessionID, cashierID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(*session))
	}
}

func SessionResume(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
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
		session, err := svc.Resume(r.Context(), sessionID, cashierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(*session))
	}
}

func SessionComplete(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload completeSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		session, err := svc.Complete(r.Context(), sessionID, cashierID, sessions.CompleteInput{
			PaymentMethod:   method,
			SubtotalCents:   payload.SubtotalCents,
			TaxCents:        payload.TaxCents,
			TotalCents:      payload.TotalCents,
			AmountPaidCents: payload.AmountPaidCents,
			ChangeCents:     payload.ChangeCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(*session))
	}
}

func SessionVoid(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload reasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Void(r.Context(), sessionID, cashierID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(*session))
	}
}
