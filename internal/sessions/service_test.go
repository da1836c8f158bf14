package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/internal/inventory"
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
	ledger  inventory.Ledger
	now     time.Time
	storeID uuid.UUID
	cashier uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:sessions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.SkuStock{},
		&models.Product{},
		&models.Customer{},
		&models.PosSession{},
		&models.PosCartItem{},
		&models.PosCounter{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	logg := logger.New(logger.Options{ServiceName: "sessions-test"})
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)
	ledger, err := inventory.NewLedger(db, logg, outboxSvc)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	fx := &fixture{
		db:      db,
		ledger:  ledger,
		now:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		storeID: uuid.New(),
		cashier: uuid.New(),
	}
	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		ledger,
		outboxSvc,
		logg,
		20*time.Minute,
		func() time.Time { return fx.now },
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fx.svc = svc
	return fx
}

func (f *fixture) createSession(t *testing.T) *models.PosSession {
	t.Helper()
	session, err := f.svc.Create(context.Background(), CreateInput{
		StoreID:    f.storeID,
		TerminalID: "till-1",
		CashierID:  f.cashier,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func (f *fixture) addItem(t *testing.T, sessionID, productID uuid.UUID, qty int) {
	t.Helper()
	ctx := context.Background()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.ledger.Acquire(ctx, tx, productID, qty); err != nil {
			return err
		}
		item := models.PosCartItem{
			ID:             uuid.New(),
			SessionID:      sessionID,
			StoreID:        f.storeID,
			ProductID:      productID,
			ProductName:    "Test Item",
			ProductSKU:     "SKU-1",
			UnitPriceCents: 500,
			Quantity:       qty,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
}

func (f *fixture) seedStock(t *testing.T, onHand, available int) uuid.UUID {
	t.Helper()
	productID := uuid.New()
	stock := models.SkuStock{
		ProductID:    productID,
		StoreID:      f.storeID,
		OnHandQty:    onHand,
		AvailableQty: available,
	}
	if err := f.db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return productID
}

func (f *fixture) stockFor(t *testing.T, productID uuid.UUID) models.SkuStock {
	t.Helper()
	var stock models.SkuStock
	if err := f.db.First(&stock, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return stock
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	first := fx.createSession(t)
	if first.SessionNumber != 1 {
		t.Fatalf("expected session number 1, got %d", first.SessionNumber)
	}
	if first.Status != enums.SessionStatusActive {
		t.Fatalf("expected active status, got %s", first.Status)
	}
	if !first.ExpiresAt.Equal(fx.now.Add(20 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", first.ExpiresAt)
	}
}

func TestCreateReusesEmptyActiveSession(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	first := fx.createSession(t)
	second := fx.createSession(t)
	if second.ID != first.ID {
		t.Fatalf("expected empty active session to be reused, got %s vs %s", second.ID, first.ID)
	}
}

func TestCreateAutoHoldsSessionWithItems(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	first := fx.createSession(t)
	product := fx.seedStock(t, 10, 10)
	fx.addItem(t, first.ID, product, 1)

	second := fx.createSession(t)
	if second.ID == first.ID {
		t.Fatal("expected a fresh session")
	}
	if second.SessionNumber != 2 {
		t.Fatalf("expected session number 2, got %d", second.SessionNumber)
	}

	var held models.PosSession
	if err := fx.db.First(&held, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("reload first session: %v", err)
	}
	if held.Status != enums.SessionStatusHeld {
		t.Fatalf("expected first session held, got %s", held.Status)
	}
	if held.HoldReason == nil || *held.HoldReason != AutoHoldReason {
		t.Fatalf("expected auto-hold reason, got %v", held.HoldReason)
	}
	if held.HeldAt == nil {
		t.Fatal("expected held_at stamped")
	}
}

func TestHoldKeepsExpiry(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	originalExpiry := session.ExpiresAt

	fx.now = fx.now.Add(5 * time.Minute)
	held, err := fx.svc.Hold(context.Background(), session.ID, fx.cashier, nil)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Status != enums.SessionStatusHeld {
		t.Fatalf("expected held, got %s", held.Status)
	}

	var row models.PosSession
	if err := fx.db.First(&row, "id = ?", session.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !row.ExpiresAt.Equal(originalExpiry) {
		t.Fatalf("hold must not move expiry: %v vs %v", row.ExpiresAt, originalExpiry)
	}
}

func TestResumeResetsExpiry(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	if _, err := fx.svc.Hold(context.Background(), session.ID, fx.cashier, nil); err != nil {
		t.Fatalf("hold: %v", err)
	}

	fx.now = fx.now.Add(10 * time.Minute)
	resumed, err := fx.svc.Resume(context.Background(), session.ID, fx.cashier)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != enums.SessionStatusActive {
		t.Fatalf("expected active, got %s", resumed.Status)
	}
	if !resumed.ExpiresAt.Equal(fx.now.Add(20 * time.Minute)) {
		t.Fatalf("expected expiry reset, got %v", resumed.ExpiresAt)
	}
	if resumed.ResumedAt == nil {
		t.Fatal("expected resumed_at stamped")
	}
}

func TestResumeFailsOnceExpired(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	if _, err := fx.svc.Hold(context.Background(), session.ID, fx.cashier, nil); err != nil {
		t.Fatalf("hold: %v", err)
	}

	fx.now = session.ExpiresAt.Add(time.Second)
	_, err := fx.svc.Resume(context.Background(), session.ID, fx.cashier)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSessionExpired {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestUpdateMetadataSilentNoopOnCompleted(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	if err := fx.db.Model(&models.PosSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{"status": enums.SessionStatusCompleted}).Error; err != nil {
		t.Fatalf("force complete: %v", err)
	}

	subtotal := 12345
	updated, err := fx.svc.UpdateMetadata(context.Background(), session.ID, fx.cashier, UpdateMetadataInput{
		SubtotalCents: &subtotal,
	})
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if updated.SubtotalCents == subtotal {
		t.Fatal("expected completed session totals untouched")
	}

	var row models.PosSession
	if err := fx.db.First(&row, "id = ?", session.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.SubtotalCents != 0 {
		t.Fatalf("expected stored subtotal 0, got %d", row.SubtotalCents)
	}
}

func TestCompleteEmitsOutboxEvent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	product := fx.seedStock(t, 5, 5)
	fx.addItem(t, session.ID, product, 2)

	completed, err := fx.svc.Complete(context.Background(), session.ID, fx.cashier, CompleteInput{
		PaymentMethod:   enums.PaymentMethodCash,
		SubtotalCents:   1000,
		TaxCents:        75,
		TotalCents:      1075,
		AmountPaidCents: 1100,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != enums.SessionStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.ChangeCents != 25 {
		t.Fatalf("expected change 25, got %d", completed.ChangeCents)
	}
	if completed.TransactionID != nil {
		t.Fatal("transaction id must not exist yet; the finalizer assigns it")
	}

	var events []models.OutboxEvent
	if err := fx.db.Where("event_type = ?", enums.EventSessionCompleted).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one completion event, got %d", len(events))
	}
	if events[0].AggregateID != session.ID {
		t.Fatalf("event aggregate mismatch: %s", events[0].AggregateID)
	}
}

func TestCompleteRequiresCoveringPayment(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)

	_, err := fx.svc.Complete(context.Background(), session.ID, fx.cashier, CompleteInput{
		PaymentMethod:   enums.PaymentMethodCard,
		TotalCents:      1000,
		AmountPaidCents: 900,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVoidReleasesHoldsKeepsItems(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	productA := fx.seedStock(t, 5, 5)
	productB := fx.seedStock(t, 3, 3)
	fx.addItem(t, session.ID, productA, 2)
	fx.addItem(t, session.ID, productB, 1)

	if got := fx.stockFor(t, productA).AvailableQty; got != 3 {
		t.Fatalf("expected A available=3 after holds, got %d", got)
	}

	reason := "customer walked out"
	voided, err := fx.svc.Void(context.Background(), session.ID, fx.cashier, &reason)
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.Status != enums.SessionStatusVoid {
		t.Fatalf("expected void, got %s", voided.Status)
	}

	if got := fx.stockFor(t, productA).AvailableQty; got != 5 {
		t.Fatalf("expected A restored to 5, got %d", got)
	}
	if got := fx.stockFor(t, productB).AvailableQty; got != 3 {
		t.Fatalf("expected B restored to 3, got %d", got)
	}

	var itemCount int64
	if err := fx.db.Model(&models.PosCartItem{}).
		Where("session_id = ?", session.ID).
		Count(&itemCount).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != 2 {
		t.Fatalf("expected item rows preserved, got %d", itemCount)
	}
}

func TestVoidTwiceIsNoop(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	product := fx.seedStock(t, 5, 5)
	fx.addItem(t, session.ID, product, 2)

	if _, err := fx.svc.Void(context.Background(), session.ID, fx.cashier, nil); err != nil {
		t.Fatalf("first void: %v", err)
	}
	if _, err := fx.svc.Void(context.Background(), session.ID, fx.cashier, nil); err != nil {
		t.Fatalf("second void should be a no-op, got %v", err)
	}
	if got := fx.stockFor(t, product).AvailableQty; got != 5 {
		t.Fatalf("double void must not double release: available=%d", got)
	}
}

func TestVoidRefusesClosedSessions(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	product := fx.seedStock(t, 5, 5)
	fx.addItem(t, session.ID, product, 2)

	// an expired session's holds were already released by the reaper;
	// voiding it would release them a second time
	if err := fx.db.Model(&models.PosSession{}).
		Where("id = ?", session.ID).
		Update("status", enums.SessionStatusExpired).Error; err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	_, err := fx.svc.Void(context.Background(), session.ID, fx.cashier, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for expired session, got %v", err)
	}

	// a completed session's holds were consumed by the sale; reversing it
	// is the transaction void's job
	if err := fx.db.Model(&models.PosSession{}).
		Where("id = ?", session.ID).
		Update("status", enums.SessionStatusCompleted).Error; err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	_, err = fx.svc.Void(context.Background(), session.ID, fx.cashier, nil)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for completed session, got %v", err)
	}

	if got := fx.stockFor(t, product).AvailableQty; got != 3 {
		t.Fatalf("expected holds untouched at available=3, got %d", got)
	}
}

func TestReleaseHoldsAndPurgeItems(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	product := fx.seedStock(t, 5, 5)
	fx.addItem(t, session.ID, product, 2)

	if err := fx.svc.ReleaseHoldsAndPurgeItems(context.Background(), session.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got := fx.stockFor(t, product).AvailableQty; got != 5 {
		t.Fatalf("expected available restored to 5, got %d", got)
	}
	var itemCount int64
	if err := fx.db.Model(&models.PosCartItem{}).
		Where("session_id = ?", session.ID).
		Count(&itemCount).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != 0 {
		t.Fatalf("expected items purged, got %d", itemCount)
	}
}

func TestGetEnrichesCustomer(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)

	email := "pat@example.com"
	customer := models.Customer{ID: uuid.New(), StoreID: fx.storeID, Name: "Pat", Email: &email}
	if err := fx.db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if _, err := fx.svc.UpdateMetadata(context.Background(), session.ID, fx.cashier, UpdateMetadataInput{
		CustomerID: &customer.ID,
	}); err != nil {
		t.Fatalf("attach customer: %v", err)
	}

	detail, err := fx.svc.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Customer == nil || detail.Customer.ID != customer.ID {
		t.Fatalf("expected resolved customer, got %+v", detail.Customer)
	}
}

func TestGetActiveForTerminalFiltersExpiredAndForeign(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	session := fx.createSession(t)
	ctx := context.Background()

	got, err := fx.svc.GetActiveForTerminal(ctx, fx.storeID, "till-1", fx.cashier, nil)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got == nil || got.ID != session.ID {
		t.Fatalf("expected live session back, got %+v", got)
	}

	if got, err := fx.svc.GetActiveForTerminal(ctx, fx.storeID, "till-1", uuid.New(), nil); err != nil || got != nil {
		t.Fatalf("expected nil for another cashier, got %+v err=%v", got, err)
	}

	fx.now = session.ExpiresAt.Add(time.Second)
	if got, err := fx.svc.GetActiveForTerminal(ctx, fx.storeID, "till-1", fx.cashier, nil); err != nil || got != nil {
		t.Fatalf("expected nil once expired, got %+v err=%v", got, err)
	}
}

func TestGetActiveForTerminalFiltersByRegister(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	label := "front-1"
	session, err := fx.svc.Create(context.Background(), CreateInput{
		StoreID:       fx.storeID,
		TerminalID:    "till-1",
		CashierID:     fx.cashier,
		RegisterLabel: &label,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	ctx := context.Background()

	got, err := fx.svc.GetActiveForTerminal(ctx, fx.storeID, "till-1", fx.cashier, &label)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got == nil || got.ID != session.ID {
		t.Fatalf("expected session for matching register, got %+v", got)
	}

	other := "back-2"
	if got, err := fx.svc.GetActiveForTerminal(ctx, fx.storeID, "till-1", fx.cashier, &other); err != nil || got != nil {
		t.Fatalf("expected nil for another register, got %+v err=%v", got, err)
	}
}
