package inventory

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/outbox"
)

const releaseBatchConcurrency = 4

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Ledger owns every write to available_qty and on_hand_qty. Holds are not
// rows of their own: an outstanding hold is implied by the cart line that
// acquired it, and the counters are mutated with guarded updates so two
// terminals can never claim the same unit.
type Ledger interface {
	ValidateAvailability(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (Availability, error)
	Acquire(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, oldQty, newQty int) error
	AcquireBatch(ctx context.Context, tx *gorm.DB, requests []HoldRequest) ([]Unavailable, error)
	ReleaseBatch(ctx context.Context, requests []HoldRequest) error
	DecrementOnHand(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	IncrementOnHand(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type ledger struct {
	db     *gorm.DB
	logg   *logger.Logger
	outbox outboxPublisher
}

// NewLedger builds the inventory ledger.
func NewLedger(db *gorm.DB, logg *logger.Logger, publisher outboxPublisher) (Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledger{db: db, logg: logg, outbox: publisher}, nil
}

// ValidateAvailability checks the pool without mutating it. The answer is
// advisory: only the guarded update in Acquire is authoritative.
func (l *ledger) ValidateAvailability(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (Availability, error) {
	if qty <= 0 {
		return Availability{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	stock, err := l.loadStock(ctx, tx, productID)
	if err != nil {
		return Availability{ProductID: productID, Requested: qty}, err
	}
	report := Availability{ProductID: productID, Requested: qty, Available: stock.AvailableQty}
	return report, classifyShortfall(stock, qty)
}

// Acquire claims qty units from the available pool. The decrement and the
// floor check happen in one statement so concurrent acquires serialize on
// the row instead of racing a read.
func (l *ledger) Acquire(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory acquire")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE sku_stocks
		SET available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "acquire inventory hold")
	}
	if res.RowsAffected == 0 {
		stock, err := l.loadStock(ctx, tx, productID)
		if err != nil {
			return err
		}
		return classifyShortfall(stock, qty)
	}
	return nil
}

// Release returns qty units to the available pool. A missing stock row is
// tolerated: the hold it covered is simply gone, which happens when a SKU
// is retired while a cart still references it. The event trail keeps the
// discrepancy visible.
func (l *ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE sku_stocks
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory hold")
	}
	if res.RowsAffected == 0 {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"qty":        qty,
		})
		l.logg.Warn(logCtx, "released hold for missing stock row")
		if l.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventHoldReleaseDangling,
				AggregateType: enums.AggregateSkuStock,
				AggregateID:   productID,
				Data: map[string]any{
					"productId": productID.String(),
					"qty":       qty,
				},
				Version: 1,
			}
			if err := l.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	}

	var stock models.SkuStock
	if err := tx.WithContext(ctx).First(&stock, "product_id = ?", productID).Error; err == nil {
		if stock.AvailableQty > stock.OnHandQty {
			logCtx := l.logg.WithFields(ctx, map[string]any{
				"product_id": productID.String(),
				"available":  stock.AvailableQty,
				"on_hand":    stock.OnHandQty,
			})
			l.logg.Warn(logCtx, "available exceeds on-hand after release")
		}
	}
	return nil
}

// Adjust reconciles a cart line quantity change as one net movement: growing
// the line claims the difference, shrinking it returns the difference.
func (l *ledger) Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, oldQty, newQty int) error {
	delta := newQty - oldQty
	switch {
	case delta == 0:
		return nil
	case delta > 0:
		return l.Acquire(ctx, tx, productID, delta)
	default:
		return l.Release(ctx, tx, productID, -delta)
	}
}

// AcquireBatch claims every request or none. All SKUs are validated first
// so the caller gets the full shortfall list instead of the first failure.
func (l *ledger) AcquireBatch(ctx context.Context, tx *gorm.DB, requests []HoldRequest) ([]Unavailable, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory acquire")
	}
	var shortfalls []Unavailable
	for _, req := range requests {
		if _, err := l.ValidateAvailability(ctx, tx, req.ProductID, req.Qty); err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				return nil, err
			}
			switch typed.Code() {
			case pkgerrors.CodeNotFound, pkgerrors.CodeZeroStock, pkgerrors.CodeInsufficientStock:
				shortfalls = append(shortfalls, unavailableFromError(req, typed))
			default:
				return nil, err
			}
		}
	}
	if len(shortfalls) > 0 {
		return shortfalls, pkgerrors.New(pkgerrors.CodeInsufficientStock, "one or more items cannot be fulfilled").
			WithDetails(shortfalls)
	}
	for _, req := range requests {
		if err := l.Acquire(ctx, tx, req.ProductID, req.Qty); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// ReleaseBatch returns holds best-effort outside any caller transaction.
// Each release commits on its own so one bad SKU does not pin the rest.
func (l *ledger) ReleaseBatch(ctx context.Context, requests []HoldRequest) error {
	if len(requests) == 0 {
		return nil
	}
	var (
		mu   sync.Mutex
		errs []error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(releaseBatchConcurrency)
	for _, req := range requests {
		req := req
		group.Go(func() error {
			err := l.db.WithContext(groupCtx).Transaction(func(tx *gorm.DB) error {
				return l.Release(groupCtx, tx, req.ProductID, req.Qty)
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return stdErrors.Join(errs...)
}

// DecrementOnHand burns physical stock at finalization time. Unlike
// Acquire this may legitimately fail after validation, so callers run it
// inside the finalizing transaction.
func (l *ledger) DecrementOnHand(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for on-hand decrement")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE sku_stocks
		SET on_hand_qty = on_hand_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND on_hand_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement on-hand stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "on-hand stock below %d for product %s", qty, productID)
	}
	return nil
}

// IncrementOnHand restores physical stock when a finalized sale is voided.
func (l *ledger) IncrementOnHand(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for on-hand increment")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE sku_stocks
		SET on_hand_qty = on_hand_qty + ?,
			available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment on-hand stock")
	}
	if res.RowsAffected == 0 {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"qty":        qty,
		})
		l.logg.Warn(logCtx, "on-hand restore for missing stock row")
	}
	return nil
}

func (l *ledger) loadStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.SkuStock, error) {
	conn := tx
	if conn == nil {
		conn = l.db
	}
	var stock models.SkuStock
	if err := conn.WithContext(ctx).First(&stock, "product_id = ?", productID).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock record for product %s", productID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	return &stock, nil
}

func classifyShortfall(stock *models.SkuStock, qty int) error {
	switch {
	case stock.AvailableQty <= 0:
		return pkgerrors.New(pkgerrors.CodeZeroStock, "item is out of stock").
			WithDetails(Unavailable{ProductID: stock.ProductID, Requested: qty, Available: 0, Reason: "zero_stock"})
	case stock.AvailableQty < qty:
		return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "only %d available", stock.AvailableQty).
			WithDetails(Unavailable{ProductID: stock.ProductID, Requested: qty, Available: stock.AvailableQty, Reason: "insufficient_stock"})
	default:
		return nil
	}
}

func unavailableFromError(req HoldRequest, err *pkgerrors.Error) Unavailable {
	if detail, ok := err.Details().(Unavailable); ok {
		return detail
	}
	reason := "insufficient_stock"
	switch err.Code() {
	case pkgerrors.CodeNotFound:
		reason = "unknown_product"
	case pkgerrors.CodeZeroStock:
		reason = "zero_stock"
	}
	return Unavailable{ProductID: req.ProductID, Requested: req.Qty, Reason: reason}
}
