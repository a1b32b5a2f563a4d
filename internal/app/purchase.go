package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guidehub/internal/events"
	"guidehub/internal/util"
	"guidehub/pkg/domain"
)

// ConfirmPurchase records a completed purchase for (user, guide).
// The ledger's unique index makes this idempotent: a repeat call returns the
// existing row unchanged, even under concurrent requests.
func (a *App) ConfirmPurchase(ctx context.Context, user domain.User, guideID, paymentID string) (domain.Purchase, bool, error) {
	guide, ok, err := a.store.GetGuide(guideID)
	if err != nil {
		return domain.Purchase{}, false, fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return domain.Purchase{}, false, ErrGuideNotFound
	}

	purchase := domain.Purchase{
		ID:        util.NewID(),
		UserID:    user.ID,
		GuideID:   guide.ID,
		Amount:    guide.Price,
		PaymentID: paymentID,
		Status:    domain.PurchaseCompleted,
		CreatedAt: time.Now().UTC(),
	}
	saved, created, err := a.store.AddPurchase(purchase)
	if err != nil {
		return domain.Purchase{}, false, fmt.Errorf("record purchase: %w", err)
	}
	if created && a.events != nil {
		event := events.PurchaseCompleted{
			PurchaseID: saved.ID,
			UserID:     saved.UserID,
			GuideID:    saved.GuideID,
			PaymentID:  saved.PaymentID,
			Amount:     saved.Amount,
			Currency:   "INR",
			OccurredAt: saved.CreatedAt,
		}
		// The purchase is already durable; a publish failure is logged, not returned.
		if err := a.events.PublishPurchaseCompleted(ctx, event); err != nil {
			slog.Warn("publish purchase event", "purchaseId", saved.ID, "error", err)
		}
	}
	return saved, created, nil
}

// HasPurchased reports whether the user holds a completed purchase for the guide.
func (a *App) HasPurchased(userID, guideID string) (bool, error) {
	_, ok, err := a.store.GetCompletedPurchase(userID, guideID)
	if err != nil {
		return false, fmt.Errorf("fetch purchase: %w", err)
	}
	return ok, nil
}

// ListMyPurchases returns the caller's ledger rows.
func (a *App) ListMyPurchases(userID string) ([]domain.Purchase, error) {
	return a.store.ListPurchasesByUser(userID)
}
