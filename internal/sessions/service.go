package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/internal/inventory"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/outbox"
)

// AutoHoldReason marks sessions parked because a new one opened on the same
// terminal.
const AutoHoldReason = "Auto-held when new session started"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the session state machine: active → held → active,
// active → completed|void, active|held → expired.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.PosSession, error)
	UpdateMetadata(ctx context.Context, sessionID, cashierID uuid.UUID, input UpdateMetadataInput) (*models.PosSession, error)
	Hold(ctx context.Context, sessionID, cashierID uuid.UUID, reason *string) (*models.PosSession, error)
	Resume(ctx context.Context, sessionID, cashierID uuid.UUID) (*models.PosSession, error)
	Complete(ctx context.Context, sessionID, cashierID uuid.UUID, input CompleteInput) (*models.PosSession, error)
	Void(ctx context.Context, sessionID, cashierID uuid.UUID, reason *string) (*models.PosSession, error)
	ReleaseHoldsAndPurgeItems(ctx context.Context, sessionID uuid.UUID) error
	Get(ctx context.Context, sessionID uuid.UUID) (*SessionDetail, error)
	List(ctx context.Context, filter ListFilter) ([]models.PosSession, error)
	GetActiveForTerminal(ctx context.Context, storeID uuid.UUID, terminalID string, cashierID uuid.UUID, registerLabel *string) (*models.PosSession, error)
}

type service struct {
	tx         txRunner
	repo       *Repository
	ledger     inventory.Ledger
	outbox     outboxPublisher
	logg       *logger.Logger
	idleWindow time.Duration
	now        func() time.Time
}

// NewService builds the session lifecycle manager.
func NewService(
	tx txRunner,
	repo *Repository,
	ledger inventory.Ledger,
	publisher outboxPublisher,
	logg *logger.Logger,
	idleWindow time.Duration,
	now func() time.Time,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if idleWindow <= 0 {
		idleWindow = 20 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:         tx,
		repo:       repo,
		ledger:     ledger,
		outbox:     publisher,
		logg:       logg,
		idleWindow: idleWindow,
		now:        now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PosSession, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.TerminalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terminal id required")
	}
	if input.CashierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier id required")
	}

	var result *models.PosSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		existing, err := repo.FindActiveByTerminal(ctx, input.StoreID, input.TerminalID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active session for terminal")
		}
		if existing != nil && !existing.TimeExpired(now) {
			if len(existing.Items) == 0 {
				// an empty active session carries no holds; hand it back
				result = existing
				return nil
			}
			reason := AutoHoldReason
			if err := repo.Updates(ctx, existing.ID, map[string]any{
				"status":      enums.SessionStatusHeld,
				"held_at":     now,
				"hold_reason": reason,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auto-hold previous session")
			}
			logCtx := s.logg.WithSessionID(ctx, existing.ID.String())
			s.logg.Info(logCtx, "auto-held session for new terminal session")
		}

		number, err := repo.NextNumber(ctx, input.StoreID, models.CounterKindSession)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim session number")
		}

		session := &models.PosSession{
			ID:            uuid.New(),
			StoreID:       input.StoreID,
			TerminalID:    input.TerminalID,
			CashierID:     input.CashierID,
			RegisterLabel: input.RegisterLabel,
			SessionNumber: number,
			Status:        enums.SessionStatusActive,
			ExpiresAt:     now.Add(s.idleWindow),
		}
		created, err := repo.Create(ctx, session)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateMetadata patches customer and working totals. Terminal rows are a
// silent no-op: a metadata sync racing a finalize must not surface an error
// or rewrite an audit row.
func (s *service) UpdateMetadata(ctx context.Context, sessionID, cashierID uuid.UUID, input UpdateMetadataInput) (*models.PosSession, error) {
	if err := ValidateCustomerContact(input.CustomerInfo); err != nil {
		return nil, err
	}
	for _, cents := range []*int{input.SubtotalCents, input.TaxCents, input.TotalCents} {
		if cents == nil {
			continue
		}
		if err := ValidatePrice(*cents); err != nil {
			return nil, err
		}
	}

	var result *models.PosSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		if session != nil && (session.Status == enums.SessionStatusCompleted || session.Status == enums.SessionStatusVoid) {
			result = session
			return nil
		}
		if err := EnsureModifiable(session, cashierID, s.now()); err != nil {
			return err
		}

		updates := map[string]any{}
		if input.CustomerID != nil {
			updates["customer_id"] = *input.CustomerID
			session.CustomerID = input.CustomerID
		}
		if input.CustomerInfo != nil {
			updates["customer_info"] = input.CustomerInfo
			session.CustomerInfo = input.CustomerInfo
		}
		if input.SubtotalCents != nil {
			updates["subtotal_cents"] = *input.SubtotalCents
			session.SubtotalCents = *input.SubtotalCents
		}
		if input.TaxCents != nil {
			updates["tax_cents"] = *input.TaxCents
			session.TaxCents = *input.TaxCents
		}
		if input.TotalCents != nil {
			updates["total_cents"] = *input.TotalCents
			session.TotalCents = *input.TotalCents
		}
		if len(updates) > 0 {
			if err := repo.Updates(ctx, session.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update session metadata")
			}
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Hold suspends the session without extending its idle window: an abandoned
// held cart still expires naturally, so stock cannot be pinned forever.
func (s *service) Hold(ctx context.Context, sessionID, cashierID uuid.UUID, reason *string) (*models.PosSession, error) {
	var result *models.PosSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		now := s.now()
		if err := EnsureModifiable(session, cashierID, now); err != nil {
			return err
		}
		updates := map[string]any{
			"status":  enums.SessionStatusHeld,
			"held_at": now,
		}
		if reason != nil {
			updates["hold_reason"] = *reason
			session.HoldReason = reason
		}
		if err := repo.Updates(ctx, session.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold session")
		}
		session.Status = enums.SessionStatusHeld
		heldAt := now
		session.HeldAt = &heldAt
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resume reactivates a held session and resets its idle window. Holds are
// already in place from add time, so stock is not re-validated here.
func (s *service) Resume(ctx context.Context, sessionID, cashierID uuid.UUID) (*models.PosSession, error) {
	var result *models.PosSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		now := s.now()
		if err := EnsureModifiable(session, cashierID, now); err != nil {
			return err
		}
		expiresAt := now.Add(s.idleWindow)
		if err := repo.Updates(ctx, session.ID, map[string]any{
			"status":     enums.SessionStatusActive,
			"resumed_at": now,
			"expires_at": expiresAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume session")
		}
		session.Status = enums.SessionStatusActive
		resumedAt := now
		session.ResumedAt = &resumedAt
		session.ExpiresAt = expiresAt
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete closes the sale on the session row and queues finalization. The
// caller-supplied totals become the audit record; the sales transaction is
// created later by the finalizer worker, so this returns before the
// transaction id exists.
func (s *service) Complete(ctx context.Context, sessionID, cashierID uuid.UUID, input CompleteInput) (*models.PosSession, error) {
	for _, cents := range []int{input.SubtotalCents, input.TaxCents, input.TotalCents} {
		if err := ValidatePrice(cents); err != nil {
			return nil, err
		}
	}
	if err := ValidatePayment(input.PaymentMethod, input.AmountPaidCents, input.TotalCents); err != nil {
		return nil, err
	}

	var result *models.PosSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		now := s.now()
		if err := EnsureActive(session, cashierID, now); err != nil {
			return err
		}

		change := input.AmountPaidCents - input.TotalCents
		if input.ChangeCents != nil {
			change = *input.ChangeCents
		}

		if err := repo.Updates(ctx, session.ID, map[string]any{
			"status":            enums.SessionStatusCompleted,
			"completed_at":      now,
			"subtotal_cents":    input.SubtotalCents,
			"tax_cents":         input.TaxCents,
			"total_cents":       input.TotalCents,
			"amount_paid_cents": input.AmountPaidCents,
			"change_cents":      change,
			"payment_method":    input.PaymentMethod,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete session")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSessionCompleted,
			AggregateType: enums.AggregatePosSession,
			AggregateID:   session.ID,
			Actor: &outbox.ActorRef{
				CashierID: cashierID,
				StoreID:   &session.StoreID,
				Terminal:  session.TerminalID,
			},
			Data: map[string]any{
				"sessionId":       session.ID.String(),
				"storeId":         session.StoreID.String(),
				"paymentMethod":   input.PaymentMethod.String(),
				"amountPaidCents": input.AmountPaidCents,
				"changeCents":     change,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit session completed event")
		}

		completedAt := now
		session.Status = enums.SessionStatusCompleted
		session.CompletedAt = &completedAt
		session.SubtotalCents = input.SubtotalCents
		session.TaxCents = input.TaxCents
		session.TotalCents = input.TotalCents
		session.AmountPaidCents = input.AmountPaidCents
		session.ChangeCents = change
		method := input.PaymentMethod
		session.PaymentMethod = &method
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Void is a corrective action, so it skips the active-only check: active,
// held, and even time-expired open sessions can be voided. The session row
// is read under a lock and the hold release commits in the same transaction
// as the status flip, so a voided session never strands stock and the reaper
// can never double-release against a stale open snapshot. Item rows stay
// for the audit trail.
func (s *service) Void(ctx context.Context, sessionID, cashierID uuid.UUID, reason *string) (*models.PosSession, error) {
	var result *models.PosSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		if err := EnsureExists(session); err != nil {
			return err
		}
		switch session.Status {
		case enums.SessionStatusVoid:
			result = session
			return nil
		case enums.SessionStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "This session is already completed. Void the transaction instead.")
		case enums.SessionStatusExpired:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "This session already expired; its holds were released.")
		}

		now := s.now()
		for productID, qty := range aggregateHolds(session.Items) {
			if err := s.ledger.Release(ctx, tx, productID, qty); err != nil {
				return err
			}
		}

		updates := map[string]any{
			"status":    enums.SessionStatusVoid,
			"voided_at": now,
		}
		if reason != nil {
			updates["void_reason"] = *reason
			session.VoidReason = reason
		}
		if err := repo.Updates(ctx, session.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void session")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSessionVoided,
			AggregateType: enums.AggregatePosSession,
			AggregateID:   session.ID,
			Actor:         &outbox.ActorRef{CashierID: cashierID, StoreID: &session.StoreID, Terminal: session.TerminalID},
			Data: map[string]any{
				"sessionId": session.ID.String(),
				"storeId":   session.StoreID.String(),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit session voided event")
		}

		voidedAt := now
		session.Status = enums.SessionStatusVoid
		session.VoidedAt = &voidedAt
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReleaseHoldsAndPurgeItems is the operator escape hatch: unlike Void it
// deletes the item rows, for sessions whose audit value is not needed.
func (s *service) ReleaseHoldsAndPurgeItems(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Session not found.")
	}

	if session.Status.IsOpen() {
		requests := make([]inventory.HoldRequest, 0, len(session.Items))
		for productID, qty := range aggregateHolds(session.Items) {
			requests = append(requests, inventory.HoldRequest{ProductID: productID, Qty: qty})
		}
		if err := s.ledger.ReleaseBatch(ctx, requests); err != nil {
			logCtx := s.logg.WithSessionID(ctx, session.ID.String())
			s.logg.Error(logCtx, "partial hold release during purge", err)
		}
	}
	if err := s.repo.DeleteItems(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge session items")
	}
	return nil
}

func (s *service) Get(ctx context.Context, sessionID uuid.UUID) (*SessionDetail, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Session not found.")
	}
	detail := &SessionDetail{Session: *session}
	if session.CustomerID != nil {
		customer, err := s.repo.FindCustomer(ctx, *session.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
		}
		detail.Customer = customer
	}
	return detail, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.PosSession, error) {
	if filter.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sessions")
	}
	return rows, nil
}

// GetActiveForTerminal returns the live session for the terminal, or nil
// when there is none the cashier can pick up. When a register label is
// given the session must carry the same label.
func (s *service) GetActiveForTerminal(ctx context.Context, storeID uuid.UUID, terminalID string, cashierID uuid.UUID, registerLabel *string) (*models.PosSession, error) {
	session, err := s.repo.FindActiveByTerminal(ctx, storeID, terminalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active session")
	}
	if session == nil || session.TimeExpired(s.now()) {
		return nil, nil
	}
	if session.CashierID != cashierID {
		return nil, nil
	}
	if registerLabel != nil {
		if session.RegisterLabel == nil || *session.RegisterLabel != *registerLabel {
			return nil, nil
		}
	}
	return session, nil
}

func aggregateHolds(items []models.PosCartItem) map[uuid.UUID]int {
	holds := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		holds[item.ProductID] += item.Quantity
	}
	return holds
}
