package store

import (
	"testing"
	"time"
)

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute, JWTOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || uid != "user-1" {
		t.Fatalf("unexpected resolution: ok=%v uid=%q", ok, uid)
	}
}

func TestJWTSessionStoreRejectsForeignSignature(t *testing.T) {
	issuer, err := NewJWTSessionStore("secret-a", time.Minute, JWTOptions{})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewJWTSessionStore("secret-b", time.Minute, JWTOptions{})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := issuer.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := verifier.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expected soft miss for foreign signature: ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreTreatsGarbageAsSoftMiss(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute, JWTOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, token := range []string{"", "   ", "not.a.jwt"} {
		if _, ok, err := s.GetUserIDByToken(token); err != nil || ok {
			t.Fatalf("token %q: expected soft miss, got ok=%v err=%v", token, ok, err)
		}
	}
}

func TestJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("  ", time.Minute, JWTOptions{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
