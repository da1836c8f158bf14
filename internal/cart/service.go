package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/athenaretail/pos-backend/internal/inventory"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/pkg/db/models"
	pkgerrors "github.com/athenaretail/pos-backend/pkg/errors"
	"github.com/athenaretail/pos-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddItemInput adds (or re-scans) a SKU into a session cart. Quantity is the
// desired line total, not an increment: scanning qty 2 then qty 5 leaves one
// line of 5 with a net hold delta of +3.
type AddItemInput struct {
	SessionID uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	CashierID uuid.UUID
}

// ItemResult reports the affected line and the session's refreshed expiry.
type ItemResult struct {
	Item      models.PosCartItem `json:"item"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// RemoveResult reports the refreshed expiry after a line removal.
type RemoveResult struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service owns the cart lines of a session and keeps each line paired with
// its inventory hold: every quantity change moves the hold by the same
// amount in the same transaction.
type Service interface {
	ListItems(ctx context.Context, sessionID uuid.UUID) ([]models.PosCartItem, error)
	AddOrUpdateItem(ctx context.Context, input AddItemInput) (*ItemResult, error)
	RemoveItem(ctx context.Context, sessionID, itemID, cashierID uuid.UUID) (*RemoveResult, error)
}

type service struct {
	tx         txRunner
	repo       *Repository
	sessions   *sessions.Repository
	ledger     inventory.Ledger
	logg       *logger.Logger
	idleWindow time.Duration
	now        func() time.Time
}

// NewService builds the cart item store.
func NewService(
	tx txRunner,
	repo *Repository,
	sessionRepo *sessions.Repository,
	ledger inventory.Ledger,
	logg *logger.Logger,
	idleWindow time.Duration,
	now func() time.Time,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
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
		sessions:   sessionRepo,
		ledger:     ledger,
		logg:       logg,
		idleWindow: idleWindow,
		now:        now,
	}, nil
}

func (s *service) ListItems(ctx context.Context, sessionID uuid.UUID) ([]models.PosCartItem, error) {
	rows, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return rows, nil
}

func (s *service) AddOrUpdateItem(ctx context.Context, input AddItemInput) (*ItemResult, error) {
	if err := sessions.ValidateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	var result *ItemResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sessionRepo := s.sessions.WithTx(tx)
		now := s.now()

		session, err := sessionRepo.FindByIDLocked(ctx, input.SessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		if err := sessions.EnsureActive(session, input.CashierID, now); err != nil {
			return err
		}

		existing, err := repo.FindBySessionAndProduct(ctx, input.SessionID, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		var line *models.PosCartItem
		if existing != nil {
			if err := s.ledger.Adjust(ctx, tx, input.ProductID, existing.Quantity, input.Quantity); err != nil {
				return err
			}
			if err := repo.UpdateQuantity(ctx, existing.ID, input.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			existing.Quantity = input.Quantity
			line = existing
		} else {
			product, err := repo.FindProduct(ctx, input.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if product == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found.")
			}
			if err := s.ledger.Acquire(ctx, tx, input.ProductID, input.Quantity); err != nil {
				return err
			}
			line, err = repo.Create(ctx, &models.PosCartItem{
				SessionID:      input.SessionID,
				StoreID:        session.StoreID,
				ProductID:      product.ID,
				ProductName:    product.Name,
				ProductSKU:     product.SKU,
				Barcode:        product.Barcode,
				ImageURL:       product.ImageURL,
				UnitPriceCents: product.UnitPriceCents,
				Quantity:       input.Quantity,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
		}

		expiresAt := now.Add(s.idleWindow)
		if err := sessionRepo.Updates(ctx, session.ID, map[string]any{"expires_at": expiresAt}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh session expiry")
		}

		result = &ItemResult{Item: *line, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem uses the relaxed modifiable check so a held cart can still be
// cleaned up.
func (s *service) RemoveItem(ctx context.Context, sessionID, itemID, cashierID uuid.UUID) (*RemoveResult, error) {
	var result *RemoveResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sessionRepo := s.sessions.WithTx(tx)
		now := s.now()

		session, err := sessionRepo.FindByIDLocked(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
		if err := sessions.EnsureModifiable(session, cashierID, now); err != nil {
			return err
		}

		item, err := repo.FindByID(ctx, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if err := sessions.EnsureItemBelongs(item, sessionID); err != nil {
			return err
		}

		if err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		if err := repo.Delete(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}

		expiresAt := now.Add(s.idleWindow)
		if err := sessionRepo.Updates(ctx, session.ID, map[string]any{"expires_at": expiresAt}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh session expiry")
		}

		result = &RemoveResult{ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
