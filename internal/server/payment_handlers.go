package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"guidehub/internal/app"
	"guidehub/pkg/domain"
)

type buyRequest struct {
	GuideID   string `json:"guideId"`
	PaymentID string `json:"paymentId"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	guideID := strings.TrimPrefix(r.URL.Path, "/api/payment/create-order/")
	if guideID == "" || strings.Contains(guideID, "/") {
		http.NotFound(w, r)
		return
	}
	if !s.allowRate(w, r, s.paymentLimiter, "too many payment requests, try again later") {
		s.audit(r, "payment.order", "rate_limited", "user_id", user.ID)
		return
	}
	order, err := s.app.CreateOrder(r.Context(), user, guideID)
	if err != nil {
		s.audit(r, "payment.order", "fail", "user_id", user.ID, "guide_id", guideID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "payment.order", "success", "user_id", user.ID, "guide_id", guideID, "order_id", order.OrderID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"orderId":  order.OrderID,
		"amount":   order.Amount,
		"keyId":    order.KeyID,
		"currency": order.Currency,
		"guideId":  order.GuideID,
	})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.paymentLimiter, "too many payment requests, try again later") {
		s.audit(r, "payment.verify", "rate_limited", "user_id", user.ID)
		return
	}
	var req app.VerifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payment, err := s.app.VerifyPayment(r.Context(), user, req)
	if err != nil {
		s.audit(r, "payment.verify", "fail", "user_id", user.ID, "order_id", req.OrderID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "payment.verify", "success", "user_id", user.ID, "order_id", payment.OrderID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payment": payment,
	})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req buyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.GuideID) == "" {
		writeError(w, http.StatusBadRequest, "guideId is required")
		return
	}
	purchase, created, err := s.app.ConfirmPurchase(r.Context(), user, req.GuideID, req.PaymentID)
	if err != nil {
		s.audit(r, "purchase.buy", "fail", "user_id", user.ID, "guide_id", req.GuideID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "purchase.buy", "success", "user_id", user.ID, "guide_id", req.GuideID, "created", created)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"success":  true,
		"purchase": purchase,
	})
}

func (s *Server) handleMyPurchases(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	purchases, err := s.app.ListMyPurchases(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": purchases,
		"count": len(purchases),
	})
}
