package transactions

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/internal/inventory"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/money"
	"github.com/athenaretail/pos-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns completed sessions (and walk-up sales) into immutable
// sales transactions. This is the only code path that decrements physical
// on-hand stock; the session side only ever moves the available pool.
type Service interface {
	CreateFromSession(ctx context.Context, sessionID uuid.UUID) (*models.SalesTransaction, error)
	CreateDirect(ctx context.Context, input CreateDirectInput) (*models.SalesTransaction, error)
	Void(ctx context.Context, transactionID, cashierID uuid.UUID, reason *string) (*models.SalesTransaction, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SalesTransaction, error)
}

type service struct {
	tx       txRunner
	repo     *Repository
	sessions *sessions.Repository
	ledger   inventory.Ledger
	outbox   outboxPublisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the sales finalizer.
func NewService(
	tx txRunner,
	repo *Repository,
	sessionRepo *sessions.Repository,
	ledger inventory.Ledger,
	publisher outboxPublisher,
	logg *logger.Logger,
	now func() time.Time,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if sessionRepo == nil {
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
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       tx,
		repo:     repo,
		sessions: sessionRepo,
		ledger:   ledger,
		outbox:   publisher,
		logg:     logg,
		now:      now,
	}, nil
}

// CreateFromSession materializes the sale recorded on a completed session.
// It is idempotent: if the session already links a transaction (or one
// already references the session), that transaction is returned untouched,
// so the finalizer worker can safely retry.
//
// Holds were taken against the available pool when items were scanned, so
// only on_hand_qty moves here. Physical stock is re-validated per SKU first
// because on-hand can drift below the held quantity through shrinkage
// adjustments made after the scan.
func (s *service) CreateFromSession(ctx context.Context, sessionID uuid.UUID) (*models.SalesTransaction, error) {
	var result *models.SalesTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sessionRepo := s.sessions.WithTx(tx)

		session, err := sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		if session == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Session not found.")
		}

		if session.TransactionID != nil {
			existing, err := repo.FindByID(ctx, *session.TransactionID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load linked transaction")
			}
			if existing != nil {
				result = existing
				return nil
			}
		}
		// the backlink write is the last step of a previous attempt; an
		// existing transaction row wins even if that write was lost
		existing, err := repo.FindBySessionID(ctx, session.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing transaction")
		}
		if existing != nil {
			if err := sessionRepo.Updates(ctx, session.ID, map[string]any{"transaction_id": existing.ID}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "relink transaction")
			}
			result = existing
			return nil
		}

		if session.Status != enums.SessionStatusCompleted {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Session is %s; only completed sessions can be finalized.", session.Status)
		}
		if session.PaymentMethod == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Session has no payment method recorded.")
		}
		if len(session.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "Session has no items to finalize.")
		}

		required := make(map[uuid.UUID]int, len(session.Items))
		for _, item := range session.Items {
			required[item.ProductID] += item.Quantity
		}
		if err := validateOnHand(ctx, tx, required); err != nil {
			return err
		}

		number, err := sessionRepo.NextNumber(ctx, session.StoreID, models.CounterKindTransaction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim transaction number")
		}

		txn := &models.SalesTransaction{
			StoreID:           session.StoreID,
			TransactionNumber: FormatNumber(number),
			SessionID:         &session.ID,
			TerminalID:        session.TerminalID,
			CashierID:         session.CashierID,
			CustomerID:        session.CustomerID,
			CustomerInfo:      session.CustomerInfo,
			SubtotalCents:     session.SubtotalCents,
			TaxCents:          session.TaxCents,
			TotalCents:        session.TotalCents,
			AmountPaidCents:   session.AmountPaidCents,
			ChangeCents:       session.ChangeCents,
			PaymentMethod:     *session.PaymentMethod,
			Status:            enums.TransactionStatusCompleted,
			Items:             lineCopies(session.Items),
		}
		created, err := repo.Create(ctx, txn)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}

		for productID, qty := range required {
			if err := s.ledger.DecrementOnHand(ctx, tx, productID, qty); err != nil {
				return err
			}
		}

		if err := sessionRepo.Updates(ctx, session.ID, map[string]any{"transaction_id": created.ID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link transaction to session")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTransactionCreated,
			AggregateType: enums.AggregateSalesTransaction,
			AggregateID:   created.ID,
			Actor: &outbox.ActorRef{
				CashierID: session.CashierID,
				StoreID:   &session.StoreID,
				Terminal:  session.TerminalID,
			},
			Data: map[string]any{
				"transactionId":     created.ID.String(),
				"transactionNumber": created.TransactionNumber,
				"sessionId":         session.ID.String(),
				"storeId":           session.StoreID.String(),
				"totalCents":        created.TotalCents,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transaction created event")
		}

		logCtx := s.logg.WithSessionID(ctx, session.ID.String())
		s.logg.Info(logCtx, "session finalized into transaction "+created.TransactionNumber)
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateDirect rings a walk-up sale with no prior session. The hold and the
// physical decrement happen back to back in one transaction, so both
// counters drop together.
func (s *service) CreateDirect(ctx context.Context, input CreateDirectInput) (*models.SalesTransaction, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.TerminalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terminal id required")
	}
	if input.CashierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "At least one item is required.")
	}
	for _, item := range input.Items {
		if err := sessions.ValidateQuantity(item.Quantity); err != nil {
			return nil, err
		}
	}
	if err := sessions.ValidateCustomerContact(input.CustomerInfo); err != nil {
		return nil, err
	}

	var result *models.SalesTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sessionRepo := s.sessions.WithTx(tx)

		var (
			subtotal int
			taxTotal int
			lines    []models.SalesTransactionItem
			requests []inventory.HoldRequest
		)
		for _, item := range input.Items {
			var product models.Product
			err := tx.WithContext(ctx).Where("id = ?", item.ProductID).First(&product).Error
			if err != nil {
				if stdErrors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "Product %s not found.", item.ProductID)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			lineTotal := product.UnitPriceCents * item.Quantity
			subtotal += lineTotal
			taxTotal += money.TaxCents(lineTotal, product.TaxRateBasisPoint)
			lines = append(lines, models.SalesTransactionItem{
				ProductID:      product.ID,
				ProductName:    product.Name,
				ProductSKU:     product.SKU,
				ImageURL:       product.ImageURL,
				UnitPriceCents: product.UnitPriceCents,
				Quantity:       item.Quantity,
				LineTotalCents: lineTotal,
			})
			requests = append(requests, inventory.HoldRequest{ProductID: product.ID, Qty: item.Quantity})
		}
		total := subtotal + taxTotal
		if err := sessions.ValidatePayment(input.PaymentMethod, input.AmountPaidCents, total); err != nil {
			return err
		}

		if _, err := s.ledger.AcquireBatch(ctx, tx, requests); err != nil {
			return err
		}
		for _, req := range requests {
			if err := s.ledger.DecrementOnHand(ctx, tx, req.ProductID, req.Qty); err != nil {
				return err
			}
		}

		number, err := sessionRepo.NextNumber(ctx, input.StoreID, models.CounterKindTransaction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim transaction number")
		}

		txn := &models.SalesTransaction{
			StoreID:           input.StoreID,
			TransactionNumber: FormatNumber(number),
			TerminalID:        input.TerminalID,
			CashierID:         input.CashierID,
			CustomerID:        input.CustomerID,
			CustomerInfo:      input.CustomerInfo,
			SubtotalCents:     subtotal,
			TaxCents:          taxTotal,
			TotalCents:        total,
			AmountPaidCents:   input.AmountPaidCents,
			ChangeCents:       money.ChangeCents(input.AmountPaidCents, total),
			PaymentMethod:     input.PaymentMethod,
			Status:            enums.TransactionStatusCompleted,
			Items:             lines,
		}
		created, err := repo.Create(ctx, txn)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTransactionCreated,
			AggregateType: enums.AggregateSalesTransaction,
			AggregateID:   created.ID,
			Actor: &outbox.ActorRef{
				CashierID: input.CashierID,
				StoreID:   &input.StoreID,
				Terminal:  input.TerminalID,
			},
			Data: map[string]any{
				"transactionId":     created.ID.String(),
				"transactionNumber": created.TransactionNumber,
				"storeId":           input.StoreID.String(),
				"totalCents":        created.TotalCents,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transaction created event")
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Void reverses a finalized sale: physical stock returns to the shelf and
// the row is marked voided. Financial fields stay as sold; the void is an
// annotation, not an edit. Voiding twice is a no-op.
func (s *service) Void(ctx context.Context, transactionID, cashierID uuid.UUID, reason *string) (*models.SalesTransaction, error) {
	var result *models.SalesTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindByID(ctx, transactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if txn == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Transaction not found.")
		}
		if txn.Status == enums.TransactionStatusVoided {
			result = txn
			return nil
		}

		for _, line := range txn.Items {
			if err := s.ledger.IncrementOnHand(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		now := s.now()
		updates := map[string]any{
			"status":    enums.TransactionStatusVoided,
			"voided_at": now,
		}
		if reason != nil {
			updates["void_reason"] = *reason
			txn.VoidReason = reason
		}
		if err := repo.Updates(ctx, txn.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void transaction")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTransactionVoided,
			AggregateType: enums.AggregateSalesTransaction,
			AggregateID:   txn.ID,
			Actor: &outbox.ActorRef{
				CashierID: cashierID,
				StoreID:   &txn.StoreID,
				Terminal:  txn.TerminalID,
			},
			Data: map[string]any{
				"transactionId":     txn.ID.String(),
				"transactionNumber": txn.TransactionNumber,
				"storeId":           txn.StoreID.String(),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transaction voided event")
		}

		voidedAt := now
		txn.Status = enums.TransactionStatusVoided
		txn.VoidedAt = &voidedAt
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.SalesTransaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Transaction not found.")
	}
	return txn, nil
}

// validateOnHand checks physical stock for every SKU before any decrement so
// the caller gets the full shortfall list instead of a partial burn.
func validateOnHand(ctx context.Context, tx *gorm.DB, required map[uuid.UUID]int) error {
	var shortfalls []Shortfall
	for productID, qty := range required {
		var stock models.SkuStock
		err := tx.WithContext(ctx).First(&stock, "product_id = ?", productID).Error
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				shortfalls = append(shortfalls, Shortfall{ProductID: productID, Requested: qty, OnHand: 0})
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
		}
		if stock.OnHandQty < qty {
			shortfalls = append(shortfalls, Shortfall{ProductID: productID, Requested: qty, OnHand: stock.OnHandQty})
		}
	}
	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "physical stock cannot cover the sale").
			WithDetails(shortfalls)
	}
	return nil
}

func lineCopies(items []models.PosCartItem) []models.SalesTransactionItem {
	lines := make([]models.SalesTransactionItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.SalesTransactionItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			ImageURL:       item.ImageURL,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.UnitPriceCents * item.Quantity,
		})
	}
	return lines
}
