package notify

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestRecordingLinkRoundTrip(t *testing.T) {
	s := NewLinkSigner([]byte("secret"), "https://calls.example.com/", time.Hour)

	link, err := s.RecordingLink("conv-1")
	if err != nil {
		t.Fatalf("RecordingLink() error: %v", err)
	}
	if !strings.HasPrefix(link, "https://calls.example.com/recordings/conv-1?token=") {
		t.Fatalf("link = %q, want playback URL", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parsing link: %v", err)
	}
	id, err := s.Verify(u.Query().Get("token"))
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if id != "conv-1" {
		t.Errorf("Verify() = %q, want conv-1", id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewLinkSigner([]byte("secret-a"), "https://x", time.Hour)
	verifier := NewLinkSigner([]byte("secret-b"), "https://x", time.Hour)

	link, err := issuer.RecordingLink("conv-1")
	if err != nil {
		t.Fatalf("RecordingLink() error: %v", err)
	}
	u, _ := url.Parse(link)

	if _, err := verifier.Verify(u.Query().Get("token")); err == nil {
		t.Fatal("Verify() accepted a token signed with a different secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewLinkSigner([]byte("secret"), "https://x", time.Minute)

	issued := time.Now()
	s.nowFunc = func() time.Time { return issued }

	link, err := s.RecordingLink("conv-1")
	if err != nil {
		t.Fatalf("RecordingLink() error: %v", err)
	}
	u, _ := url.Parse(link)
	token := u.Query().Get("token")

	// Still valid just before expiry.
	s.nowFunc = func() time.Time { return issued.Add(30 * time.Second) }
	if _, err := s.Verify(token); err != nil {
		t.Fatalf("Verify() before expiry error: %v", err)
	}

	// Rejected after expiry.
	s.nowFunc = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := s.Verify(token); err == nil {
		t.Fatal("Verify() accepted an expired token")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := NewLinkSigner([]byte("secret"), "https://x", time.Hour)
	if _, err := s.Verify("not-a-token"); err == nil {
		t.Fatal("Verify() accepted garbage")
	}
}

func TestConfigured(t *testing.T) {
	if !NewLinkSigner([]byte("k"), "https://x", 0).Configured() {
		t.Error("signer with secret and base URL should be configured")
	}
	if NewLinkSigner(nil, "https://x", 0).Configured() {
		t.Error("signer without secret should not be configured")
	}
	if NewLinkSigner([]byte("k"), "", 0).Configured() {
		t.Error("signer without base URL should not be configured")
	}
}
