package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/types"
)

// The predicates below are the only place expiry and ownership rules live.
// Every mutation path calls one of them, so a path can never check status
// but forget expiry. Expiry is derived from expires_at and is checked before
// the stored status: a row that still says active but is past its window is
// treated as expired even if the reaper has not swept it yet.

func expiredError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeSessionExpired, "This session has expired. Start a new one to proceed.")
}

// EnsureExists treats an absent session the same as an expired one; the
// cashier-facing remedy is identical either way.
func EnsureExists(session *models.PosSession) error {
	if session == nil {
		return expiredError()
	}
	return nil
}

// EnsureActive admits only a live, unexpired, correctly-owned active session.
func EnsureActive(session *models.PosSession, cashierID uuid.UUID, now time.Time) error {
	if err := ensureOpenFor(session, cashierID, now); err != nil {
		return err
	}
	if session.Status == enums.SessionStatusHeld {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "This session is on hold. Resume it to continue.")
	}
	return nil
}

// EnsureModifiable is the relaxed variant allowing held sessions too, used
// by remove/void paths that must work on suspended carts.
func EnsureModifiable(session *models.PosSession, cashierID uuid.UUID, now time.Time) error {
	return ensureOpenFor(session, cashierID, now)
}

func ensureOpenFor(session *models.PosSession, cashierID uuid.UUID, now time.Time) error {
	if err := EnsureExists(session); err != nil {
		return err
	}
	if session.Status.IsOpen() && session.TimeExpired(now) {
		return expiredError()
	}
	switch session.Status {
	case enums.SessionStatusExpired:
		return expiredError()
	case enums.SessionStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "This session is already completed.")
	case enums.SessionStatusVoid:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "This session was voided.")
	}
	if session.CashierID != cashierID {
		return pkgerrors.New(pkgerrors.CodeWrongCashier, "This session belongs to another cashier.")
	}
	return nil
}

// EnsureItemBelongs guards against a cart item id from one session being
// replayed against another.
func EnsureItemBelongs(item *models.PosCartItem, sessionID uuid.UUID) error {
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Cart item not found.")
	}
	if item.SessionID != sessionID {
		return pkgerrors.New(pkgerrors.CodeConflict, "Cart item does not belong to this session.")
	}
	return nil
}

// ValidateQuantity rejects non-positive quantities; zero is expressed as a
// row removal, never as a stored quantity.
func ValidateQuantity(qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be at least 1.")
	}
	return nil
}

// ValidatePrice rejects negative amounts.
func ValidatePrice(cents int) error {
	if cents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Price cannot be negative.")
	}
	return nil
}

// ValidatePayment checks the tender covers the total.
func ValidatePayment(method enums.PaymentMethod, amountPaidCents, totalCents int) error {
	if !method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "Unknown payment method %q.", method)
	}
	if amountPaidCents < totalCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "Amount paid is less than the total due.")
	}
	return nil
}

// ValidateCustomerContact requires at least one reachable field when a
// customer snapshot is attached.
func ValidateCustomerContact(info *types.CustomerInfo) error {
	if info == nil {
		return nil
	}
	if !info.HasContact() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Customer needs an email or phone number.")
	}
	return nil
}
