package ivr

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/ringdesk/ringdesk/internal/telephony"
)

// SignatureHeader carries the provider's HMAC-SHA256 of the raw request
// body, hex encoded.
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBody caps how much of a webhook body is buffered for
// verification and parsing.
const maxWebhookBody = 1 << 20

// verifySignature checks the webhook signature when a secret is configured.
// Mismatches are logged and the request proceeds: rejecting would make a
// provider-side signing change drop live calls, which is worse than
// accepting an unsigned post to an unguessable URL.
func (s *Server) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.webhookSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			s.logger.Warn("failed to read webhook body for verification", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, []byte(s.webhookSecret))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		got := r.Header.Get(SignatureHeader)

		if !hmac.Equal([]byte(want), []byte(got)) {
			s.logger.Warn("webhook signature mismatch",
				"path", r.URL.Path,
				"signed", got != "",
			)
		}

		next.ServeHTTP(w, r)
	})
}

// webhookRecoverer is the webhook-specific panic boundary. Unlike the API
// recoverer it must not answer with a 500: the provider would play an error
// tone to the caller or retry indefinitely, so the fallback is a polite
// terminal document.
func (s *Server) webhookRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in webhook handler",
					"panic", rec,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeDocument(w, telephony.SayAndHangup("We're sorry, something went wrong. Please call again later."))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
