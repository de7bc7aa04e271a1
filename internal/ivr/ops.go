package ivr

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// handleListClaims returns the claim ledger for one call, or the most
// recent claims when no call id is given. Read-only audit surface.
func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if callID := r.URL.Query().Get("call_id"); callID != "" {
		claims, err := s.claims.ListByCall(ctx, callID)
		if err != nil {
			s.logger.Error("listing claims by call failed", "call_id", callID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list claims")
			return
		}
		writeJSON(w, http.StatusOK, claims)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	claims, err := s.claims.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("listing recent claims failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// handleGetConversation returns one conversation thread entry.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.syncer.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("loading conversation failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type pushTokenRequest struct {
	TenantID string `json:"tenant_id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
	DeviceID string `json:"device_id"`
}

// handleRegisterPushToken registers or refreshes an owner-device push token.
func (s *Server) handleRegisterPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" || req.Token == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id, token and device_id are required")
		return
	}
	if req.Platform == "" {
		req.Platform = "fcm"
	}

	token := &models.PushToken{
		TenantID: req.TenantID,
		Token:    req.Token,
		Platform: req.Platform,
		DeviceID: req.DeviceID,
	}
	if err := s.tokens.Upsert(r.Context(), token); err != nil {
		s.logger.Error("push token upsert failed", "tenant_id", req.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register push token")
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// handleDeletePushToken removes a push token, e.g. on app sign-out.
func (s *Server) handleDeletePushToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := s.tokens.DeleteByToken(r.Context(), token); err != nil {
		s.logger.Error("push token delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete push token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRecordingPlayback serves mirrored recording audio behind a signed
// link token.
func (s *Server) handleRecordingPlayback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.links == nil || !s.links.Configured() {
		writeError(w, http.StatusNotFound, "playback links not enabled")
		return
	}

	grantedID, err := s.links.Verify(r.URL.Query().Get("token"))
	if err != nil || grantedID != id {
		writeError(w, http.StatusForbidden, "invalid or expired link")
		return
	}

	c, err := s.syncer.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("loading conversation for playback failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load recording")
		return
	}
	if c == nil || c.RecordingPath == "" {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if _, err := os.Stat(c.RecordingPath); err != nil {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, c.RecordingPath)
}
