package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// conversationRepo implements ConversationRepository.
type conversationRepo struct {
	db *DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *DB) ConversationRepository {
	return &conversationRepo{db: db}
}

const conversationColumns = `id, tenant_id, caller_phone, line_phone, phone_line_id,
	 transcription, recording_url, recording_path, duration_secs, created_at, updated_at`

// Create inserts a new conversation entry.
func (r *conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tenant_id, caller_phone, line_phone,
		 phone_line_id, transcription, recording_url, recording_path,
		 duration_secs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		c.ID, c.TenantID, c.CallerPhone, c.LinePhone, c.PhoneLineID,
		c.Transcription, c.RecordingURL, c.RecordingPath, c.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetByID returns a conversation by ID, or nil if not found.
func (r *conversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id,
	))
}

// FindLatestByParties returns the most recently updated conversation for the
// caller/line pair, or nil if none exists. The conversation model predates
// per-call tracking, so the parties are the reconciliation key.
func (r *conversationRepo) FindLatestByParties(ctx context.Context, callerPhone, linePhone string, phoneLineID int64) (*models.Conversation, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE caller_phone = ? AND line_phone = ? AND phone_line_id = ?
		 ORDER BY updated_at DESC, created_at DESC LIMIT 1`,
		callerPhone, linePhone, phoneLineID,
	))
}

// Update modifies an existing conversation entry.
func (r *conversationRepo) Update(ctx context.Context, c *models.Conversation) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET transcription = ?, recording_url = ?,
		 recording_path = ?, duration_secs = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		c.Transcription, c.RecordingURL, c.RecordingPath, c.DurationSecs, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) scanOne(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.TenantID, &c.CallerPhone, &c.LinePhone, &c.PhoneLineID,
		&c.Transcription, &c.RecordingURL, &c.RecordingPath, &c.DurationSecs,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &c, nil
}
