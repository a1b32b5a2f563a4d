package razorpay

import "testing"

func TestSignPaymentDeterministic(t *testing.T) {
	sig1 := SignPayment("secret", "order_abc", "pay_xyz")
	sig2 := SignPayment("secret", "order_abc", "pay_xyz")
	if sig1 == "" {
		t.Fatalf("expected non-empty signature")
	}
	if sig1 != sig2 {
		t.Fatalf("expected deterministic signature, got %q and %q", sig1, sig2)
	}
	if len(sig1) != 64 {
		t.Fatalf("expected hex-encoded sha256 signature, got length %d", len(sig1))
	}
}

func TestVerifySignature(t *testing.T) {
	sig := SignPayment("secret", "order_abc", "pay_xyz")
	if !VerifySignature("secret", "order_abc", "pay_xyz", sig) {
		t.Fatalf("expected valid signature to verify")
	}
	if VerifySignature("secret", "order_abc", "pay_other", sig) {
		t.Fatalf("expected different payment id to fail verification")
	}
	if VerifySignature("other-secret", "order_abc", "pay_xyz", sig) {
		t.Fatalf("expected different key secret to fail verification")
	}
	if VerifySignature("secret", "order_abc", "pay_xyz", sig[:len(sig)-1]+"g") {
		t.Fatalf("expected tampered signature to fail verification")
	}
	if VerifySignature("secret", "order_abc", "pay_xyz", "") {
		t.Fatalf("expected empty signature to fail verification")
	}
}
