package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/internal/inventory"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	"github.com/athenaretail/pos-backend/pkg/enums"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	now     time.Time
	storeID uuid.UUID
	cashier uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:txn_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.SkuStock{},
		&models.Product{},
		&models.PosSession{},
		&models.PosCartItem{},
		&models.SalesTransaction{},
		&models.SalesTransactionItem{},
		&models.PosCounter{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	// sqlite cannot interleave write transactions; force them to queue
	sqlDB.SetMaxOpenConns(1)

	logg := logger.New(logger.Options{ServiceName: "transactions-test"})
	ledger, err := inventory.NewLedger(db, logg, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	publisher := outbox.NewService(outbox.NewRepository(db), logg)

	fx := &fixture{
		db:      db,
		now:     time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		storeID: uuid.New(),
		cashier: uuid.New(),
	}
	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		sessions.NewRepository(db),
		ledger,
		publisher,
		logg,
		func() time.Time { return fx.now },
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fx.svc = svc
	return fx
}

func (f *fixture) seedProduct(t *testing.T, sku string, priceCents, taxBP, onHand, available int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:                uuid.New(),
		StoreID:           f.storeID,
		Name:              "Item " + sku,
		SKU:               sku,
		UnitPriceCents:    priceCents,
		TaxRateBasisPoint: taxBP,
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	stock := models.SkuStock{
		ProductID:    product.ID,
		StoreID:      f.storeID,
		OnHandQty:    onHand,
		AvailableQty: available,
	}
	if err := f.db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return product.ID
}

// seedCompletedSession builds a session that already went through the
// complete flow: status completed, totals recorded, holds in place from
// scan time (the seeded available counts must already reflect them).
func (f *fixture) seedCompletedSession(t *testing.T, lines map[uuid.UUID]int, totalCents int) *models.PosSession {
	t.Helper()
	method := enums.PaymentMethodCash
	completedAt := f.now.Add(-time.Minute)
	session := models.PosSession{
		ID:              uuid.New(),
		StoreID:         f.storeID,
		TerminalID:      "till-1",
		CashierID:       f.cashier,
		SessionNumber:   1,
		Status:          enums.SessionStatusCompleted,
		ExpiresAt:       f.now.Add(20 * time.Minute),
		CompletedAt:     &completedAt,
		SubtotalCents:   totalCents,
		TotalCents:      totalCents,
		AmountPaidCents: totalCents,
		PaymentMethod:   &method,
	}
	if err := f.db.Create(&session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	for productID, qty := range lines {
		var product models.Product
		if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
			t.Fatalf("load product: %v", err)
		}
		item := models.PosCartItem{
			ID:             uuid.New(),
			SessionID:      session.ID,
			StoreID:        f.storeID,
			ProductID:      productID,
			ProductName:    product.Name,
			ProductSKU:     product.SKU,
			UnitPriceCents: product.UnitPriceCents,
			Quantity:       qty,
		}
		if err := f.db.Create(&item).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
	}
	return &session
}

func (f *fixture) stockFor(t *testing.T, productID uuid.UUID) models.SkuStock {
	t.Helper()
	var stock models.SkuStock
	if err := f.db.First(&stock, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return stock
}

func (f *fixture) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return count
}

func TestCreateFromSessionBurnsOnHandOnly(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	// hold of 3 already reflected: on_hand 10, available 7
	product := fx.seedProduct(t, "WATER-500", 250, 0, 10, 7)
	session := fx.seedCompletedSession(t, map[uuid.UUID]int{product: 3}, 750)

	txn, err := fx.svc.CreateFromSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("create from session: %v", err)
	}

	stock := fx.stockFor(t, product)
	if stock.OnHandQty != 7 {
		t.Fatalf("expected on_hand=7, got %d", stock.OnHandQty)
	}
	if stock.AvailableQty != 7 {
		t.Fatalf("expected available untouched at 7, got %d", stock.AvailableQty)
	}

	if txn.TransactionNumber != "TXN-000001" {
		t.Fatalf("unexpected number %s", txn.TransactionNumber)
	}
	if txn.TerminalID != "till-1" || txn.TotalCents != 750 {
		t.Fatalf("unexpected transaction: %+v", txn)
	}

	var linked models.PosSession
	if err := fx.db.First(&linked, "id = ?", session.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if linked.TransactionID == nil || *linked.TransactionID != txn.ID {
		t.Fatalf("expected session linked to transaction, got %v", linked.TransactionID)
	}
	if got := fx.outboxCount(t, enums.EventTransactionCreated); got != 1 {
		t.Fatalf("expected one transaction_created event, got %d", got)
	}
}

func TestCreateFromSessionCopiesLines(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	water := fx.seedProduct(t, "WATER-500", 250, 0, 10, 8)
	chips := fx.seedProduct(t, "CHIPS-100", 175, 0, 5, 4)
	session := fx.seedCompletedSession(t, map[uuid.UUID]int{water: 2, chips: 1}, 675)

	txn, err := fx.svc.CreateFromSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("create from session: %v", err)
	}
	if len(txn.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(txn.Items))
	}
	bysku := map[string]models.SalesTransactionItem{}
	for _, line := range txn.Items {
		bysku[line.ProductSKU] = line
	}
	w := bysku["WATER-500"]
	if w.Quantity != 2 || w.UnitPriceCents != 250 || w.LineTotalCents != 500 {
		t.Fatalf("unexpected water line: %+v", w)
	}
	c := bysku["CHIPS-100"]
	if c.Quantity != 1 || c.UnitPriceCents != 175 || c.LineTotalCents != 175 {
		t.Fatalf("unexpected chips line: %+v", c)
	}
}

func TestCreateFromSessionIsIdempotent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	product := fx.seedProduct(t, "WATER-500", 250, 0, 10, 7)
	session := fx.seedCompletedSession(t, map[uuid.UUID]int{product: 3}, 750)
	ctx := context.Background()

	first, err := fx.svc.CreateFromSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	second, err := fx.svc.CreateFromSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same transaction, got %s and %s", first.ID, second.ID)
	}

	// no double burn, no second event
	if stock := fx.stockFor(t, product); stock.OnHandQty != 7 {
		t.Fatalf("expected on_hand=7 after retry, got %d", stock.OnHandQty)
	}
	if got := fx.outboxCount(t, enums.EventTransactionCreated); got != 1 {
		t.Fatalf("expected one event after retry, got %d", got)
	}
}

func TestCreateFromSessionRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.seedCompletedSession(t, nil, 0)

	_, err := fx.svc.CreateFromSession(context.Background(), session.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestCreateFromSessionRejectsOpenSession(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := models.PosSession{
		ID:            uuid.New(),
		StoreID:       fx.storeID,
		TerminalID:    "till-1",
		CashierID:     fx.cashier,
		SessionNumber: 1,
		Status:        enums.SessionStatusActive,
		ExpiresAt:     fx.now.Add(20 * time.Minute),
	}
	if err := fx.db.Create(&session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	_, err := fx.svc.CreateFromSession(context.Background(), session.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreateFromSessionFailsWhenOnHandShort(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	// shrinkage after scan: hold of 3 exists but only 2 physically remain
	product := fx.seedProduct(t, "WATER-500", 250, 0, 2, 0)
	session := fx.seedCompletedSession(t, map[uuid.UUID]int{product: 3}, 750)

	_, err := fx.svc.CreateFromSession(context.Background(), session.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// nothing committed: no transaction, no link, stock unchanged
	var count int64
	if err := fx.db.Model(&models.SalesTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no transaction rows, got %d", count)
	}
	if stock := fx.stockFor(t, product); stock.OnHandQty != 2 {
		t.Fatalf("expected on_hand unchanged at 2, got %d", stock.OnHandQty)
	}
}

func TestCreateDirectBurnsBothCounters(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	product := fx.seedProduct(t, "SODA-330", 200, 1000, 10, 10)

	txn, err := fx.svc.CreateDirect(context.Background(), CreateDirectInput{
		StoreID:         fx.storeID,
		TerminalID:      "till-2",
		CashierID:       fx.cashier,
		Items:           []DirectItemInput{{ProductID: product, Quantity: 2}},
		PaymentMethod:   enums.PaymentMethodCash,
		AmountPaidCents: 500,
	})
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	// 2 × 200 = 400 subtotal, 10% tax = 40
	if txn.SubtotalCents != 400 || txn.TaxCents != 40 || txn.TotalCents != 440 {
		t.Fatalf("unexpected totals: %+v", txn)
	}
	if txn.ChangeCents != 60 {
		t.Fatalf("expected change 60, got %d", txn.ChangeCents)
	}
	if txn.SessionID != nil {
		t.Fatalf("direct sale must not reference a session")
	}

	stock := fx.stockFor(t, product)
	if stock.OnHandQty != 8 || stock.AvailableQty != 8 {
		t.Fatalf("expected both counters at 8, got on_hand=%d available=%d", stock.OnHandQty, stock.AvailableQty)
	}
}

func TestCreateDirectRejectsUncoveredPayment(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	product := fx.seedProduct(t, "SODA-330", 200, 0, 10, 10)

	_, err := fx.svc.CreateDirect(context.Background(), CreateDirectInput{
		StoreID:         fx.storeID,
		TerminalID:      "till-2",
		CashierID:       fx.cashier,
		Items:           []DirectItemInput{{ProductID: product, Quantity: 2}},
		PaymentMethod:   enums.PaymentMethodCash,
		AmountPaidCents: 300,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if stock := fx.stockFor(t, product); stock.AvailableQty != 10 {
		t.Fatalf("expected available unchanged at 10, got %d", stock.AvailableQty)
	}
}

func TestVoidRestoresPhysicalStock(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	product := fx.seedProduct(t, "WATER-500", 250, 0, 10, 7)
	session := fx.seedCompletedSession(t, map[uuid.UUID]int{product: 3}, 750)
	ctx := context.Background()

	txn, err := fx.svc.CreateFromSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	reason := "Customer returned the sale"
	voided, err := fx.svc.Void(ctx, txn.ID, fx.cashier, &reason)
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.Status != enums.TransactionStatusVoided || voided.VoidedAt == nil {
		t.Fatalf("unexpected voided row: %+v", voided)
	}

	stock := fx.stockFor(t, product)
	if stock.OnHandQty != 10 || stock.AvailableQty != 10 {
		t.Fatalf("expected both counters restored to 10, got on_hand=%d available=%d", stock.OnHandQty, stock.AvailableQty)
	}

	// voiding again must not restore twice
	if _, err := fx.svc.Void(ctx, txn.ID, fx.cashier, nil); err != nil {
		t.Fatalf("second void: %v", err)
	}
	stock = fx.stockFor(t, product)
	if stock.OnHandQty != 10 {
		t.Fatalf("expected on_hand still 10 after double void, got %d", stock.OnHandQty)
	}
	if got := fx.outboxCount(t, enums.EventTransactionVoided); got != 1 {
		t.Fatalf("expected one voided event, got %d", got)
	}
}
