package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"guidehub/internal/razorpay"
	"guidehub/internal/util"
	"guidehub/pkg/domain"
)

// OrderResult is returned to the checkout client after order creation.
type OrderResult struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
	GuideID  string `json:"guideId"`
}

// VerifyRequest carries the checkout callback fields.
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	GuideID   string `json:"guideId"`
}

// CreateOrder registers a gateway order for the guide at its current price.
// The gateway amount is in paise: price x 100.
func (a *App) CreateOrder(ctx context.Context, user domain.User, guideID string) (OrderResult, error) {
	guide, ok, err := a.store.GetGuide(guideID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return OrderResult{}, ErrGuideNotFound
	}

	// Razorpay caps receipts at 40 chars; a bare UUID fits.
	amount := guide.Price * 100
	receipt := uuid.NewString()
	order, err := a.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   amount,
		Currency: "INR",
		Receipt:  receipt,
		Notes: map[string]string{
			"guideId": guide.ID,
			"userId":  user.ID,
		},
	})
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:        util.NewID(),
		OrderID:   order.ID,
		Amount:    amount,
		Currency:  order.Currency,
		Status:    domain.PaymentCreated,
		UserID:    user.ID,
		GuideID:   guide.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SavePayment(payment); err != nil {
		return OrderResult{}, fmt.Errorf("save payment: %w", err)
	}

	return OrderResult{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: order.Currency,
		KeyID:    a.gateway.KeyID(),
		GuideID:  guide.ID,
	}, nil
}

// VerifyPayment checks the checkout signature in constant time and moves the
// payment to paid. A mismatch marks the order failed and changes nothing else.
func (a *App) VerifyPayment(ctx context.Context, user domain.User, req VerifyRequest) (domain.Payment, error) {
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		return domain.Payment{}, ErrValidation
	}
	payment, ok, err := a.store.GetPaymentByOrderID(req.OrderID)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("fetch payment: %w", err)
	}
	if !ok || payment.UserID != user.ID {
		return domain.Payment{}, ErrOrderNotFound
	}

	if !razorpay.VerifySignature(a.keySecret, req.OrderID, req.PaymentID, req.Signature) {
		if err := a.store.MarkPaymentFailed(req.OrderID); err != nil {
			return domain.Payment{}, fmt.Errorf("mark payment failed: %w", err)
		}
		return domain.Payment{}, ErrVerificationFailed
	}

	if err := a.store.MarkPaymentPaid(req.OrderID, req.PaymentID, req.Signature); err != nil {
		return domain.Payment{}, fmt.Errorf("mark payment paid: %w", err)
	}
	payment, _, err = a.store.GetPaymentByOrderID(req.OrderID)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("fetch payment: %w", err)
	}
	return payment, nil
}
