// Package ivr is the HTTP surface for telephony webhook callbacks and the
// small operational API around them. Every webhook handler shares the same
// contract: resolve the tenant, decide the next call leg, and always answer
// the provider with a valid document or a 2xx, even on internal failure.
package ivr

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ringdesk/ringdesk/internal/api/middleware"
	"github.com/ringdesk/ringdesk/internal/conversation"
	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/menus"
	"github.com/ringdesk/ringdesk/internal/metrics"
	"github.com/ringdesk/ringdesk/internal/notify"
	"github.com/ringdesk/ringdesk/internal/tenant"
)

// Deps bundles the collaborators the server needs.
type Deps struct {
	Resolver *tenant.Resolver
	Menus    menus.Strategy // primary, storage-backed
	Legacy   menus.Strategy // fixed fallback when the primary fails
	Engine   *notify.Engine
	Syncer   *conversation.Syncer
	Claims   database.ClaimLedger
	Tokens   database.PushTokenRepository
	Links    *notify.LinkSigner
	BaseURL  *BaseURLResolver
	Metrics  *metrics.Metrics

	// WebhookSecret enables signature verification on webhook posts when
	// set. Mismatches are logged, not rejected, so a provider-side signing
	// change never takes down call handling.
	WebhookSecret string

	Logger *slog.Logger
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux

	resolver *tenant.Resolver
	menus    menus.Strategy
	legacy   menus.Strategy
	engine   *notify.Engine
	syncer   *conversation.Syncer
	claims   database.ClaimLedger
	tokens   database.PushTokenRepository
	links    *notify.LinkSigner
	baseURL  *BaseURLResolver
	metrics  *metrics.Metrics

	webhookSecret string
	logger        *slog.Logger
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(d Deps) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		resolver:      d.Resolver,
		menus:         d.Menus,
		legacy:        d.Legacy,
		engine:        d.Engine,
		syncer:        d.Syncer,
		claims:        d.Claims,
		tokens:        d.Tokens,
		links:         d.Links,
		baseURL:       d.BaseURL,
		metrics:       d.Metrics,
		webhookSecret: d.WebhookSecret,
		logger:        d.Logger.With("component", "ivr_server"),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	// Telephony provider webhooks. These carry their own panic boundary:
	// the provider must always receive a playable document, never a 500.
	r.Route("/webhooks/voice", func(r chi.Router) {
		r.Use(s.verifySignature)
		r.Use(s.webhookRecoverer)
		r.Post("/ivr-selection", s.handleIVRSelection)
		r.Post("/no-input", s.handleNoInput)
		r.Post("/dial-status", s.handleDialStatus)
		r.Post("/voicemail-complete", s.handleVoicemailComplete)
		r.Post("/recording-status", s.handleRecordingStatus)
		r.Post("/voicemail-transcribed", s.handleVoicemailTranscribed)
	})

	// Operational API.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/claims", s.handleListClaims)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Post("/push-tokens", s.handleRegisterPushToken)
		r.Delete("/push-tokens/{token}", s.handleDeletePushToken)
	})

	// Signed-link recording playback.
	r.Get("/recordings/{id}", s.handleRecordingPlayback)

	slog.Info("ivr routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
