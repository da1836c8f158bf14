package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
)

type stubSessionService struct {
	createInput  sessions.CreateInput
	createResult *models.PosSession
	createErr    error
	voidReason   *string
}

func (s *stubSessionService) Create(_ context.Context, input sessions.CreateInput) (*models.PosSession, error) {
	s.createInput = input
	return s.createResult, s.createErr
}

func (s *stubSessionService) UpdateMetadata(context.Context, uuid.UUID, uuid.UUID, sessions.UpdateMetadataInput) (*models.PosSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubSessionService) Hold(context.Context, uuid.UUID, uuid.UUID, *string) (*models.PosSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubSessionService) Resume(context.Context, uuid.UUID, uuid.UUID) (*models.PosSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubSessionService) Complete(context.Context, uuid.UUID, uuid.UUID, sessions.CompleteInput) (*models.PosSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubSessionService) Void(_ context.Context, _ uuid.UUID, _ uuid.UUID, reason *string) (*models.PosSession, error) {
	s.voidReason = reason
	return s.createResult, nil
}

func (s *stubSessionService) ReleaseHoldsAndPurgeItems(context.Context, uuid.UUID) error {
	return nil
}

func (s *stubSessionService) Get(context.Context, uuid.UUID) (*sessions.SessionDetail, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Session not found.")
}

func (s *stubSessionService) List(context.Context, sessions.ListFilter) ([]models.PosSession, error) {
	return nil, nil
}

func (s *stubSessionService) GetActiveForTerminal(context.Context, uuid.UUID, string, uuid.UUID, *string) (*models.PosSession, error) {
	return nil, nil
}

func testSession(storeID, cashierID uuid.UUID) *models.PosSession {
	return &models.PosSession{
		ID:            uuid.New(),
		StoreID:       storeID,
		TerminalID:    "till-1",
		CashierID:     cashierID,
		SessionNumber: 12,
		Status:        enums.SessionStatusActive,
		ExpiresAt:     time.Now().Add(20 * time.Minute),
	}
}

func TestSessionCreateReturnsCreated(t *testing.T) {
	storeID := uuid.New()
	cashierID := uuid.New()
	svc := &stubSessionService{createResult: testSession(storeID, cashierID)}
	handler := SessionCreate(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"storeId":    storeID,
		"terminalId": "till-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pos/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(cashierIDHeader, cashierID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.createInput.CashierID != cashierID {
		t.Fatalf("expected cashier from header, got %s", svc.createInput.CashierID)
	}
	var envelope struct {
		Success bool            `json:"success"`
		Data    sessionResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Success || envelope.Data.SessionNumber != 12 {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestSessionCreateRequiresCashierHeader(t *testing.T) {
	svc := &stubSessionService{}
	handler := SessionCreate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pos/sessions", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestSessionCreateRejectsMissingTerminal(t *testing.T) {
	svc := &stubSessionService{}
	handler := SessionCreate(svc, nil)

	body, _ := json.Marshal(map[string]any{"storeId": uuid.New()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pos/sessions", bytes.NewReader(body))
	req.Header.Set(cashierIDHeader, uuid.NewString())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionCompleteRejectsUnknownPaymentMethod(t *testing.T) {
	svc := &stubSessionService{}
	router := chi.NewRouter()
	router.Post("/sessions/{sessionID}/complete", SessionComplete(svc, nil))

	body := `{"paymentMethod":"barter","totalCents":100,"amountPaidCents":100}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+uuid.NewString()+"/complete", bytes.NewBufferString(body))
	req.Header.Set(cashierIDHeader, uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code, got %q", envelope.Error.Code)
	}
}
