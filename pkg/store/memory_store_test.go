package store

import (
	"testing"
	"time"

	"guidehub/pkg/domain"
)

func TestMemoryStorePurchaseIdempotency(t *testing.T) {
	m := NewMemoryStore()
	first := domain.Purchase{
		ID:        "pur-1",
		UserID:    "user-1",
		GuideID:   "guide-1",
		Amount:    299,
		Status:    domain.PurchaseCompleted,
		CreatedAt: time.Now().UTC(),
	}
	saved, created, err := m.AddPurchase(first)
	if err != nil || !created {
		t.Fatalf("first add: created=%v err=%v", created, err)
	}
	if saved.ID != "pur-1" {
		t.Fatalf("unexpected purchase id %q", saved.ID)
	}

	dup := first
	dup.ID = "pur-2"
	saved, created, err = m.AddPurchase(dup)
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if created {
		t.Fatalf("duplicate (user, guide) should not create a second record")
	}
	if saved.ID != "pur-1" {
		t.Fatalf("duplicate add should return existing record, got %q", saved.ID)
	}

	list, err := m.ListPurchasesByUser("user-1")
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(list))
	}

	ids, err := m.ListPurchaserIDs("guide-1")
	if err != nil {
		t.Fatalf("list purchasers: %v", err)
	}
	if len(ids) != 1 || ids[0] != "user-1" {
		t.Fatalf("unexpected purchaser ids %v", ids)
	}
}

func TestMemoryStoreCompletedPurchaseLookup(t *testing.T) {
	m := NewMemoryStore()
	if _, ok, err := m.GetCompletedPurchase("user-1", "guide-1"); err != nil || ok {
		t.Fatalf("expected no purchase, ok=%v err=%v", ok, err)
	}
	if _, _, err := m.AddPurchase(domain.Purchase{
		ID:      "pur-1",
		UserID:  "user-1",
		GuideID: "guide-1",
		Status:  domain.PurchaseCompleted,
	}); err != nil {
		t.Fatalf("add purchase: %v", err)
	}
	p, ok, err := m.GetCompletedPurchase("user-1", "guide-1")
	if err != nil || !ok {
		t.Fatalf("expected completed purchase, ok=%v err=%v", ok, err)
	}
	if p.GuideID != "guide-1" {
		t.Fatalf("unexpected purchase %+v", p)
	}
	if _, ok, _ := m.GetCompletedPurchase("user-2", "guide-1"); ok {
		t.Fatalf("other user should not have a purchase")
	}
}

func TestMemoryStorePaymentTransitions(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SavePayment(domain.Payment{
		ID:      "pay-rec-1",
		OrderID: "order_1",
		Status:  domain.PaymentCreated,
		UserID:  "user-1",
		GuideID: "guide-1",
	}); err != nil {
		t.Fatalf("save payment: %v", err)
	}

	if err := m.MarkPaymentPaid("order_1", "pay_abc", "sig"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	p, ok, err := m.GetPaymentByOrderID("order_1")
	if err != nil || !ok {
		t.Fatalf("get payment: ok=%v err=%v", ok, err)
	}
	if p.Status != domain.PaymentPaid || p.PaymentID != "pay_abc" {
		t.Fatalf("unexpected payment after paid: %+v", p)
	}

	// paid is terminal; a later failure report must not downgrade it
	if err := m.MarkPaymentFailed("order_1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	p, _, _ = m.GetPaymentByOrderID("order_1")
	if p.Status != domain.PaymentPaid {
		t.Fatalf("paid status should be terminal, got %s", p.Status)
	}
}

func TestMemoryStoreGuideStatusAndDelete(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveGuide(domain.Guide{ID: "guide-1", Title: "Algebra", Status: domain.GuideDraft}); err != nil {
		t.Fatalf("save guide: %v", err)
	}
	if err := m.SetGuideStatus("guide-1", domain.GuideReady, 42); err != nil {
		t.Fatalf("set status: %v", err)
	}
	g, ok, err := m.GetGuide("guide-1")
	if err != nil || !ok {
		t.Fatalf("get guide: ok=%v err=%v", ok, err)
	}
	if g.Status != domain.GuideReady || g.Pages != 42 {
		t.Fatalf("unexpected guide %+v", g)
	}
	if err := m.DeleteGuide("guide-1"); err != nil {
		t.Fatalf("delete guide: %v", err)
	}
	if _, ok, _ := m.GetGuide("guide-1"); ok {
		t.Fatalf("guide should be gone after delete")
	}
}

func TestMemoryStoreDuplicateEmail(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveUser(domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	ok, err := m.HasUserEmail("a@example.com")
	if err != nil || !ok {
		t.Fatalf("expected email to exist, ok=%v err=%v", ok, err)
	}
	ok, err = m.HasUserEmail("b@example.com")
	if err != nil || ok {
		t.Fatalf("expected email to be free, ok=%v err=%v", ok, err)
	}
}
