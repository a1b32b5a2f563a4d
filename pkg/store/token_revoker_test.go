package store

import (
	"testing"
	"time"
)

func TestMemoryTokenRevoker(t *testing.T) {
	r := NewMemoryTokenRevoker()
	revoked, err := r.IsRevoked("jti-1")
	if err != nil || revoked {
		t.Fatalf("fresh token should not be revoked, revoked=%v err=%v", revoked, err)
	}
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = r.IsRevoked("jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, revoked=%v err=%v", revoked, err)
	}
}

func TestMemoryTokenRevokerExpiry(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-1", -time.Second); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-1")
	if err != nil || revoked {
		t.Fatalf("expired entry should not count as revoked, revoked=%v err=%v", revoked, err)
	}
}
