package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// phoneLineRepo implements PhoneLineRepository.
type phoneLineRepo struct {
	db *DB
}

// NewPhoneLineRepository creates a new PhoneLineRepository.
func NewPhoneLineRepository(db *DB) PhoneLineRepository {
	return &phoneLineRepo{db: db}
}

const phoneLineColumns = `id, number, tenant_id, label, forward_number,
	 voicemail_greeting, enabled, created_at, updated_at`

// Create inserts a new phone line.
func (r *phoneLineRepo) Create(ctx context.Context, line *models.PhoneLine) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO phone_lines (number, tenant_id, label, forward_number,
		 voicemail_greeting, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		line.Number, line.TenantID, line.Label, line.ForwardNumber,
		line.VoicemailGreeting, line.Enabled,
	)
	if err != nil {
		return fmt.Errorf("inserting phone line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	line.ID = id
	return nil
}

// GetByID returns a phone line by ID, or nil if not found.
func (r *phoneLineRepo) GetByID(ctx context.Context, id int64) (*models.PhoneLine, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+phoneLineColumns+` FROM phone_lines WHERE id = ?`, id,
	))
}

// GetByNumber returns the enabled phone line for a canonical number, or nil
// if no line owns it.
func (r *phoneLineRepo) GetByNumber(ctx context.Context, number string) (*models.PhoneLine, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+phoneLineColumns+` FROM phone_lines WHERE number = ? AND enabled = 1`, number,
	))
}

// ListByTenant returns all phone lines for a tenant ordered by number.
func (r *phoneLineRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.PhoneLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+phoneLineColumns+` FROM phone_lines WHERE tenant_id = ? ORDER BY number`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying phone lines: %w", err)
	}
	defer rows.Close()

	var lines []models.PhoneLine
	for rows.Next() {
		var l models.PhoneLine
		if err := rows.Scan(&l.ID, &l.Number, &l.TenantID, &l.Label, &l.ForwardNumber,
			&l.VoicemailGreeting, &l.Enabled, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning phone line row: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Update modifies an existing phone line.
func (r *phoneLineRepo) Update(ctx context.Context, line *models.PhoneLine) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE phone_lines SET number = ?, tenant_id = ?, label = ?,
		 forward_number = ?, voicemail_greeting = ?, enabled = ?,
		 updated_at = datetime('now')
		 WHERE id = ?`,
		line.Number, line.TenantID, line.Label, line.ForwardNumber,
		line.VoicemailGreeting, line.Enabled, line.ID,
	)
	if err != nil {
		return fmt.Errorf("updating phone line: %w", err)
	}
	return nil
}

func (r *phoneLineRepo) scanOne(row *sql.Row) (*models.PhoneLine, error) {
	var l models.PhoneLine
	err := row.Scan(&l.ID, &l.Number, &l.TenantID, &l.Label, &l.ForwardNumber,
		&l.VoicemailGreeting, &l.Enabled, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning phone line: %w", err)
	}
	return &l, nil
}
