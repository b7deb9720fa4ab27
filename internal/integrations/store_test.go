package integrations

import (
	"testing"
	"time"
)

func TestIsAuthorizedFalseWhenFileMissing(t *testing.T) {
	s := New(t.TempDir())
	ok, err := s.IsAuthorized("discord", "user-1")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Fatal("expected not authorized when no file exists")
	}
}

func TestUpsertPendingTracksFirstAndLastSeen(t *testing.T) {
	s := New(t.TempDir())
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	if _, err := s.UpsertPending("telegram", "u1", first, "hello"); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	count, err := s.UpsertPending("telegram", "u1", second, "hello again")
	if err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	entries, err := s.PendingEntries()
	if err != nil {
		t.Fatalf("pending entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if !e.FirstSeenAt.Equal(first) {
		t.Fatalf("FirstSeenAt = %v, want %v", e.FirstSeenAt, first)
	}
	if !e.LastSeenAt.Equal(second) {
		t.Fatalf("LastSeenAt = %v, want %v", e.LastSeenAt, second)
	}
	if e.LastText != "hello again" {
		t.Fatalf("LastText = %q, want %q", e.LastText, "hello again")
	}
}

func TestAddAuthorizedRemovesMatchingPending(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.UpsertPending("slack", "u2", time.Now(), "hi"); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}
	if err := s.AddAuthorized("slack", "u2"); err != nil {
		t.Fatalf("add authorized: %v", err)
	}

	ok, err := s.IsAuthorized("slack", "u2")
	if err != nil {
		t.Fatalf("is authorized: %v", err)
	}
	if !ok {
		t.Fatal("expected u2 to be authorized")
	}

	entries, err := s.PendingEntries()
	if err != nil {
		t.Fatalf("pending entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0 (pending removed)", len(entries))
	}
}

func TestAddAuthorizedIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	if err := s.AddAuthorized("whatsapp", "u3"); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if err := s.AddAuthorized("whatsapp", "u3"); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	ok, err := s.IsAuthorized("whatsapp", "u3")
	if err != nil || !ok {
		t.Fatalf("IsAuthorized = %v, %v", ok, err)
	}
}

func TestIsDisabledCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if err := writeJSON(s.path(disabledFile), disabledData{Version: 1, Platforms: []string{"Matrix"}}); err != nil {
		t.Fatalf("seed disabled file: %v", err)
	}

	disabled, err := s.IsDisabled("matrix")
	if err != nil {
		t.Fatalf("is disabled: %v", err)
	}
	if !disabled {
		t.Fatal("expected matrix to be disabled regardless of case")
	}

	disabled, err = s.IsDisabled("discord")
	if err != nil {
		t.Fatalf("is disabled: %v", err)
	}
	if disabled {
		t.Fatal("expected discord to not be disabled")
	}
}

func TestPairingCoderMintAndVerify(t *testing.T) {
	c := NewPairingCoder([]byte("test-secret"))
	code, err := c.Mint("discord", "u9")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	platform, from, err := c.Verify(code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if platform != "discord" || from != "u9" {
		t.Fatalf("platform=%q from=%q, want discord/u9", platform, from)
	}
}

func TestPairingCoderVerifyRejectsWrongSecret(t *testing.T) {
	a := NewPairingCoder([]byte("secret-a"))
	b := NewPairingCoder([]byte("secret-b"))

	code, err := a.Mint("discord", "u9")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := b.Verify(code); err == nil {
		t.Fatal("expected verification with a different secret to fail")
	}
}

func TestOfferPairingCodeRespectsThreshold(t *testing.T) {
	c := NewPairingCoder([]byte("test-secret"))

	_, offered, err := c.OfferPairingCode(PendingEntry{Platform: "discord", From: "u9", MessageCount: PendingThreshold - 1})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if offered {
		t.Fatal("should not offer a code below the threshold")
	}

	code, offered, err := c.OfferPairingCode(PendingEntry{Platform: "discord", From: "u9", MessageCount: PendingThreshold})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if !offered || code == "" {
		t.Fatal("should offer a code at the threshold")
	}
}
