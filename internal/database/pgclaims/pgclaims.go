// Package pgclaims implements the notification claim ledger on PostgreSQL.
// It is the store to use when several server instances handle callbacks for
// the same call: the unique constraint arbitrates the claim race globally.
package pgclaims

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements database.ClaimLedger using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection and runs pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("postgresql claim ledger opened")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending SQL migration files in order.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		slog.Info("applied migration", "version", version)
	}

	return nil
}

// Claim atomically inserts the claim row via ON CONFLICT DO NOTHING and
// reports whether this caller won it.
func (s *Store) Claim(ctx context.Context, claim *models.NotificationClaim) (bool, error) {
	claim.Scope = models.ClaimScope(claim.SMSType)

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notification_claims
		 (call_id, tenant_id, sms_type, scope, recipient_phone)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (call_id, scope) DO NOTHING
		 RETURNING id`,
		claim.CallID, claim.TenantID, claim.SMSType, claim.Scope, claim.RecipientPhone,
	).Scan(&claim.ID)

	if err == sql.ErrNoRows {
		// Conflict: another caller already holds the claim.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting notification claim: %w", err)
	}
	return true, nil
}

// ListByCall returns all claims recorded for a call.
func (s *Store) ListByCall(ctx context.Context, callID string) ([]models.NotificationClaim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, call_id, tenant_id, sms_type, scope, recipient_phone, claimed_at
		 FROM notification_claims WHERE call_id = $1 ORDER BY claimed_at`, callID)
	if err != nil {
		return nil, fmt.Errorf("querying claims by call: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

// ListRecent returns the most recent claims for the ops audit endpoint.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.NotificationClaim, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, call_id, tenant_id, sms_type, scope, recipient_phone, claimed_at
		 FROM notification_claims ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent claims: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

func scanClaims(rows *sql.Rows) ([]models.NotificationClaim, error) {
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

// Ensure Store satisfies the ClaimLedger interface.
var _ database.ClaimLedger = (*Store)(nil)
