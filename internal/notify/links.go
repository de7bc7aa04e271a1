package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LinkSigner issues and verifies short-lived signed URLs for recording
// playback, so owner alert texts can link to audio without exposing the
// data directory.
type LinkSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	nowFunc func() time.Time // injectable for testing
}

// NewLinkSigner creates a LinkSigner. A zero ttl defaults to 24 hours.
func NewLinkSigner(secret []byte, baseURL string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LinkSigner{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Configured returns true if the signer has a secret and base URL.
func (s *LinkSigner) Configured() bool {
	return len(s.secret) > 0 && s.baseURL != ""
}

// RecordingLink returns a signed playback URL for the conversation's
// recording.
func (s *LinkSigner) RecordingLink(conversationID string) (string, error) {
	now := s.nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:   conversationID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing playback link: %w", err)
	}

	return fmt.Sprintf("%s/recordings/%s?token=%s", s.baseURL, conversationID, token), nil
}

// Verify checks a playback token and returns the conversation id it grants.
func (s *LinkSigner) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFunc))
	if err != nil {
		return "", fmt.Errorf("parsing playback token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid playback token")
	}
	return claims.Subject, nil
}
