package database

import (
	"context"
	"fmt"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// pushTokenRepo implements PushTokenRepository.
type pushTokenRepo struct {
	db *DB
}

// NewPushTokenRepository creates a new PushTokenRepository.
func NewPushTokenRepository(db *DB) PushTokenRepository {
	return &pushTokenRepo{db: db}
}

// Upsert inserts or updates a push token for a given tenant and device.
// If a token already exists for the same (tenant_id, device_id), it is updated.
func (r *pushTokenRepo) Upsert(ctx context.Context, token *models.PushToken) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO push_tokens (tenant_id, token, platform, device_id, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(tenant_id, device_id) DO UPDATE SET
		   token = excluded.token,
		   platform = excluded.platform,
		   updated_at = datetime('now')`,
		token.TenantID, token.Token, token.Platform, token.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("upserting push token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	token.ID = id
	return nil
}

// ListByTenant returns all push tokens for a tenant.
func (r *pushTokenRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.PushToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, token, platform, device_id, created_at, updated_at
		 FROM push_tokens WHERE tenant_id = ? ORDER BY updated_at DESC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying push tokens by tenant: %w", err)
	}
	defer rows.Close()

	var tokens []models.PushToken
	for rows.Next() {
		var t models.PushToken
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Token, &t.Platform,
			&t.DeviceID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning push token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteByToken removes a push token by its token value. Used to invalidate
// tokens that FCM reports as no longer registered.
func (r *pushTokenRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM push_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("deleting push token by value: %w", err)
	}
	return nil
}
