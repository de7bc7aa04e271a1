package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// tenantRepo implements TenantRepository.
type tenantRepo struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) TenantRepository {
	return &tenantRepo{db: db}
}

// Create inserts a new tenant.
func (r *tenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, owner_phone, sms_sender_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'), datetime('now'))`,
		t.ID, t.Name, t.OwnerPhone, t.SMSSenderID,
	)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

// GetByID returns a tenant by ID, or nil if not found.
func (r *tenantRepo) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_phone, sms_sender_id, created_at, updated_at
		 FROM tenants WHERE id = ?`, id,
	))
}

// List returns all tenants ordered by name.
func (r *tenantRepo) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, owner_phone, sms_sender_id, created_at, updated_at
		 FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.OwnerPhone, &t.SMSSenderID,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Update modifies an existing tenant.
func (r *tenantRepo) Update(ctx context.Context, t *models.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, owner_phone = ?, sms_sender_id = ?,
		 updated_at = datetime('now')
		 WHERE id = ?`,
		t.Name, t.OwnerPhone, t.SMSSenderID, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}
	return nil
}

func (r *tenantRepo) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.OwnerPhone, &t.SMSSenderID,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	return &t, nil
}
