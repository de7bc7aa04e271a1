package database

import (
	"context"
	"fmt"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// claimLedger implements ClaimLedger on SQLite.
type claimLedger struct {
	db *DB
}

// NewClaimLedger creates a new SQLite-backed ClaimLedger.
func NewClaimLedger(db *DB) ClaimLedger {
	return &claimLedger{db: db}
}

// Claim atomically inserts the claim row and reports whether this caller won
// it. INSERT OR IGNORE against the (call_id, scope) unique constraint is the
// whole mechanism: the constraint decides the race, not application locking,
// so redelivered webhooks and concurrent handlers cannot both win.
func (r *claimLedger) Claim(ctx context.Context, claim *models.NotificationClaim) (bool, error) {
	claim.Scope = models.ClaimScope(claim.SMSType)

	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notification_claims
		 (call_id, tenant_id, sms_type, scope, recipient_phone, claimed_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))`,
		claim.CallID, claim.TenantID, claim.SMSType, claim.Scope, claim.RecipientPhone,
	)
	if err != nil {
		return false, fmt.Errorf("inserting notification claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking claim insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		claim.ID = id
	}
	return true, nil
}

// ListByCall returns all claims recorded for a call.
func (r *claimLedger) ListByCall(ctx context.Context, callID string) ([]models.NotificationClaim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, tenant_id, sms_type, scope, recipient_phone, claimed_at
		 FROM notification_claims WHERE call_id = ? ORDER BY claimed_at`, callID)
	if err != nil {
		return nil, fmt.Errorf("querying claims by call: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

// ListRecent returns the most recent claims for the ops audit endpoint.
func (r *claimLedger) ListRecent(ctx context.Context, limit int) ([]models.NotificationClaim, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, tenant_id, sms_type, scope, recipient_phone, claimed_at
		 FROM notification_claims ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent claims: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanClaims(rows rowScanner) ([]models.NotificationClaim, error) {
	var claims []models.NotificationClaim
	for rows.Next() {
		var c models.NotificationClaim
		if err := rows.Scan(&c.ID, &c.CallID, &c.TenantID, &c.SMSType, &c.Scope,
			&c.RecipientPhone, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scanning claim row: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
