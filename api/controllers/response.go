package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/types"
)

type sessionResponse struct {
	ID            uuid.UUID  `json:"id"`
	StoreID       uuid.UUID  `json:"storeId"`
	TerminalID    string     `json:"terminalId"`
	CashierID     uuid.UUID  `json:"cashierId"`
	RegisterLabel *string    `json:"registerLabel,omitempty"`
	SessionNumber int        `json:"sessionNumber"`
	Status        string     `json:"status"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	HeldAt        *time.Time `json:"heldAt,omitempty"`
	ResumedAt     *time.Time `json:"resumedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	VoidedAt      *time.Time `json:"voidedAt,omitempty"`
	HoldReason    *string    `json:"holdReason,omitempty"`
	VoidReason    *string    `json:"voidReason,omitempty"`
	StatusNote    *string    `json:"statusNote,omitempty"`

	CustomerID   *uuid.UUID          `json:"customerId,omitempty"`
	CustomerInfo *types.CustomerInfo `json:"customerInfo,omitempty"`

	SubtotalCents   int     `json:"subtotalCents"`
	TaxCents        int     `json:"taxCents"`
	TotalCents      int     `json:"totalCents"`
	AmountPaidCents int     `json:"amountPaidCents"`
	ChangeCents     int     `json:"changeCents"`
	PaymentMethod   *string `json:"paymentMethod,omitempty"`

	TransactionID *uuid.UUID `json:"transactionId,omitempty"`

	Items     []cartItemResponse `json:"items,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type cartItemResponse struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"sessionId"`
	ProductID      uuid.UUID `json:"productId"`
	ProductName    string    `json:"productName"`
	ProductSKU     string    `json:"productSku"`
	Barcode        *string   `json:"barcode,omitempty"`
	ImageURL       *string   `json:"imageUrl,omitempty"`
	UnitPriceCents int       `json:"unitPriceCents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int       `json:"lineTotalCents"`
}

type customerResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
	Phone *string   `json:"phone,omitempty"`
}

type sessionDetailResponse struct {
	Session  sessionResponse   `json:"session"`
	Customer *customerResponse `json:"customer,omitempty"`
}

type transactionResponse struct {
	ID                uuid.UUID           `json:"id"`
	StoreID           uuid.UUID           `json:"storeId"`
	TransactionNumber string              `json:"transactionNumber"`
	SessionID         *uuid.UUID          `json:"sessionId,omitempty"`
	TerminalID        string              `json:"terminalId"`
	CashierID         uuid.UUID           `json:"cashierId"`
	CustomerID        *uuid.UUID          `json:"customerId,omitempty"`
	CustomerInfo      *types.CustomerInfo `json:"customerInfo,omitempty"`
	SubtotalCents     int                 `json:"subtotalCents"`
	TaxCents          int                 `json:"taxCents"`
	TotalCents        int                 `json:"totalCents"`
	AmountPaidCents   int                 `json:"amountPaidCents"`
	ChangeCents       int                 `json:"changeCents"`
	PaymentMethod     string              `json:"paymentMethod"`
	Status            string              `json:"status"`
	VoidReason        *string             `json:"voidReason,omitempty"`
	VoidedAt          *time.Time          `json:"voidedAt,omitempty"`
	Items             []transactionItemResponse `json:"items,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
}

type transactionItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"productId"`
	ProductName    string    `json:"productName"`
	ProductSKU     string    `json:"productSku"`
	ImageURL       *string   `json:"imageUrl,omitempty"`
	UnitPriceCents int       `json:"unitPriceCents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int       `json:"lineTotalCents"`
}

func newSessionResponse(session models.PosSession) sessionResponse {
	resp := sessionResponse{
		ID:              session.ID,
		StoreID:         session.StoreID,
		TerminalID:      session.TerminalID,
		CashierID:       session.CashierID,
		RegisterLabel:   session.RegisterLabel,
		SessionNumber:   session.SessionNumber,
		Status:          session.Status.String(),
		ExpiresAt:       session.ExpiresAt,
		HeldAt:          session.HeldAt,
		ResumedAt:       session.ResumedAt,
		CompletedAt:     session.CompletedAt,
		VoidedAt:        session.VoidedAt,
		HoldReason:      session.HoldReason,
		VoidReason:      session.VoidReason,
		StatusNote:      session.StatusNote,
		CustomerID:      session.CustomerID,
		CustomerInfo:    session.CustomerInfo,
		SubtotalCents:   session.SubtotalCents,
		TaxCents:        session.TaxCents,
		TotalCents:      session.TotalCents,
		AmountPaidCents: session.AmountPaidCents,
		ChangeCents:     session.ChangeCents,
		TransactionID:   session.TransactionID,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
	}
	if session.PaymentMethod != nil {
		method := session.PaymentMethod.String()
		resp.PaymentMethod = &method
	}
	for _, item := range session.Items {
		resp.Items = append(resp.Items, newCartItemResponse(item))
	}
	return resp
}

func newSessionListResponse(rows []models.PosSession) []sessionResponse {
	out := make([]sessionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, newSessionResponse(row))
	}
	return out
}

func newCartItemResponse(item models.PosCartItem) cartItemResponse {
	return cartItemResponse{
		ID:             item.ID,
		SessionID:      item.SessionID,
		ProductID:      item.ProductID,
		ProductName:    item.ProductName,
		ProductSKU:     item.ProductSKU,
		Barcode:        item.Barcode,
		ImageURL:       item.ImageURL,
		UnitPriceCents: item.UnitPriceCents,
		Quantity:       item.Quantity,
		LineTotalCents: item.UnitPriceCents * item.Quantity,
	}
}

func newSessionDetailResponse(detail sessions.SessionDetail) sessionDetailResponse {
	resp := sessionDetailResponse{Session: newSessionResponse(detail.Session)}
	if detail.Customer != nil {
		resp.Customer = &customerResponse{
			ID:    detail.Customer.ID,
			Name:  detail.Customer.Name,
			Email: detail.Customer.Email,
			Phone: detail.Customer.Phone,
		}
	}
	return resp
}

func newTransactionResponse(txn models.SalesTransaction) transactionResponse {
	resp := transactionResponse{
		ID:                txn.ID,
		StoreID:           txn.StoreID,
		TransactionNumber: txn.TransactionNumber,
		SessionID:         txn.SessionID,
		TerminalID:        txn.TerminalID,
		CashierID:         txn.CashierID,
		CustomerID:        txn.CustomerID,
		CustomerInfo:      txn.CustomerInfo,
		SubtotalCents:     txn.SubtotalCents,
		TaxCents:          txn.TaxCents,
		TotalCents:        txn.TotalCents,
		AmountPaidCents:   txn.AmountPaidCents,
		ChangeCents:       txn.ChangeCents,
		PaymentMethod:     txn.PaymentMethod.String(),
		Status:            txn.Status.String(),
		VoidReason:        txn.VoidReason,
		VoidedAt:          txn.VoidedAt,
		CreatedAt:         txn.CreatedAt,
	}
	for _, item := range txn.Items {
		resp.Items = append(resp.Items, transactionItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			ImageURL:       item.ImageURL,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return resp
}
