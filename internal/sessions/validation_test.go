package sessions

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/types"
)

func openSession(status enums.SessionStatus, cashierID uuid.UUID, expiresAt time.Time) *models.PosSession {
	return &models.PosSession{
		ID:        uuid.New(),
		CashierID: cashierID,
		Status:    status,
		ExpiresAt: expiresAt,
	}
}

func TestEnsureActiveExpiryBeforeStatus(t *testing.T) {
	t.Parallel()

	cashier := uuid.New()
	now := time.Now()

	// status still says active but the window lapsed; expiry must win
	session := openSession(enums.SessionStatusActive, cashier, now.Add(-time.Millisecond))
	err := EnsureActive(session, cashier, now)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSessionExpired {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestEnsureActiveMissingSessionReadsAsExpired(t *testing.T) {
	t.Parallel()

	err := EnsureActive(nil, uuid.New(), time.Now())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSessionExpired {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestEnsureActiveWrongCashier(t *testing.T) {
	t.Parallel()

	now := time.Now()
	session := openSession(enums.SessionStatusActive, uuid.New(), now.Add(time.Hour))
	err := EnsureActive(session, uuid.New(), now)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeWrongCashier {
		t.Fatalf("expected wrong cashier, got %v", err)
	}
}

func TestEnsureActiveRejectsHeld(t *testing.T) {
	t.Parallel()

	cashier := uuid.New()
	now := time.Now()
	session := openSession(enums.SessionStatusHeld, cashier, now.Add(time.Hour))

	err := EnsureActive(session, cashier, now)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for held session, got %v", err)
	}

	if err := EnsureModifiable(session, cashier, now); err != nil {
		t.Fatalf("expected held session to be modifiable, got %v", err)
	}
}

func TestEnsureModifiableTerminalStatuses(t *testing.T) {
	t.Parallel()

	cashier := uuid.New()
	now := time.Now()
	cases := []struct {
		status enums.SessionStatus
		code   pkgerrors.Code
	}{
		{enums.SessionStatusCompleted, pkgerrors.CodeStateConflict},
		{enums.SessionStatusVoid, pkgerrors.CodeStateConflict},
		{enums.SessionStatusExpired, pkgerrors.CodeSessionExpired},
	}
	for _, tc := range cases {
		session := openSession(tc.status, cashier, now.Add(time.Hour))
		err := EnsureModifiable(session, cashier, now)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != tc.code {
			t.Fatalf("status %s: expected code %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestEnsureItemBelongs(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	if err := EnsureItemBelongs(nil, sessionID); err == nil {
		t.Fatal("expected error for missing item")
	}

	item := &models.PosCartItem{ID: uuid.New(), SessionID: uuid.New()}
	err := EnsureItemBelongs(item, sessionID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for foreign item, got %v", err)
	}

	item.SessionID = sessionID
	if err := EnsureItemBelongs(item, sessionID); err != nil {
		t.Fatalf("expected owned item to pass, got %v", err)
	}
}

func TestFieldValidators(t *testing.T) {
	t.Parallel()

	if err := ValidateQuantity(0); err == nil {
		t.Fatal("expected quantity 0 to fail")
	}
	if err := ValidateQuantity(1); err != nil {
		t.Fatalf("expected quantity 1 to pass, got %v", err)
	}
	if err := ValidatePrice(-1); err == nil {
		t.Fatal("expected negative price to fail")
	}
	if err := ValidatePayment(enums.PaymentMethodCash, 999, 1000); err == nil {
		t.Fatal("expected short payment to fail")
	}
	if err := ValidatePayment(enums.PaymentMethodCash, 1000, 1000); err != nil {
		t.Fatalf("expected exact payment to pass, got %v", err)
	}
	if err := ValidatePayment("iou", 1000, 1000); err == nil {
		t.Fatal("expected unknown payment method to fail")
	}
	if err := ValidateCustomerContact(&types.CustomerInfo{Name: "A"}); err == nil {
		t.Fatal("expected contactless customer to fail")
	}
	if err := ValidateCustomerContact(&types.CustomerInfo{Phone: "0800"}); err != nil {
		t.Fatalf("expected phone-only customer to pass, got %v", err)
	}
}
