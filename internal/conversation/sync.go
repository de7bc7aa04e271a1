// Package conversation syncs voicemail data into customer conversation
// threads. The thread model predates per-call tracking, so upserts reconcile
// on the caller/line pair rather than the call id and must be idempotent:
// the recording callback creates the entry with placeholder text and the
// transcription callback updates that same entry.
package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/models"
)

// PlaceholderTranscription marks a voicemail whose transcription has not
// arrived yet.
const PlaceholderTranscription = "(transcription pending)"

// UpsertParams describes one voicemail sync request.
type UpsertParams struct {
	TenantID      string
	CallerPhone   string
	LinePhone     string
	PhoneLineID   int64
	Transcription string // empty means not yet transcribed
	RecordingURL  string
	DurationSecs  int
}

// Syncer performs idempotent voicemail upserts into the conversation store.
type Syncer struct {
	repo   database.ConversationRepository
	logger *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(repo database.ConversationRepository, logger *slog.Logger) *Syncer {
	return &Syncer{
		repo:   repo,
		logger: logger.With("component", "conversation_sync"),
	}
}

// Upsert creates or updates the conversation entry for the caller/line pair
// and returns its id. A later call with real transcription text overwrites
// the placeholder on the same entry instead of creating a duplicate.
func (s *Syncer) Upsert(ctx context.Context, p UpsertParams) (string, error) {
	existing, err := s.repo.FindLatestByParties(ctx, p.CallerPhone, p.LinePhone, p.PhoneLineID)
	if err != nil {
		return "", fmt.Errorf("finding conversation: %w", err)
	}

	if existing == nil {
		c := &models.Conversation{
			ID:            uuid.NewString(),
			TenantID:      p.TenantID,
			CallerPhone:   p.CallerPhone,
			LinePhone:     p.LinePhone,
			PhoneLineID:   p.PhoneLineID,
			Transcription: p.Transcription,
			RecordingURL:  p.RecordingURL,
			DurationSecs:  p.DurationSecs,
		}
		if c.Transcription == "" {
			c.Transcription = PlaceholderTranscription
		}
		if err := s.repo.Create(ctx, c); err != nil {
			return "", fmt.Errorf("creating conversation: %w", err)
		}
		s.logger.Info("conversation created",
			"conversation_id", c.ID,
			"tenant_id", p.TenantID,
			"caller", p.CallerPhone,
		)
		return c.ID, nil
	}

	// Later facts win; absent ones leave the stored values alone.
	if p.Transcription != "" {
		existing.Transcription = p.Transcription
	}
	if p.RecordingURL != "" {
		existing.RecordingURL = p.RecordingURL
	}
	if p.DurationSecs > 0 {
		existing.DurationSecs = p.DurationSecs
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return "", fmt.Errorf("updating conversation: %w", err)
	}
	s.logger.Info("conversation updated",
		"conversation_id", existing.ID,
		"tenant_id", p.TenantID,
		"caller", p.CallerPhone,
	)
	return existing.ID, nil
}

// SetRecordingPath stores the local mirror path for a conversation's
// recording audio.
func (s *Syncer) SetRecordingPath(ctx context.Context, conversationID, path string) error {
	c, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if c == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	c.RecordingPath = path
	if err := s.repo.Update(ctx, c); err != nil {
		return fmt.Errorf("storing recording path: %w", err)
	}
	return nil
}

// Get returns a conversation by id, or nil if not found.
func (s *Syncer) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return s.repo.GetByID(ctx, id)
}
