package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// menuRepo implements MenuRepository.
type menuRepo struct {
	db *DB
}

// NewMenuRepository creates a new MenuRepository.
func NewMenuRepository(db *DB) MenuRepository {
	return &menuRepo{db: db}
}

// Create inserts a new menu.
func (r *menuRepo) Create(ctx context.Context, menu *models.Menu) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO menus (tenant_id, name, active, items, created_at, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'), datetime('now'))`,
		menu.TenantID, menu.Name, menu.Active, menu.Items,
	)
	if err != nil {
		return fmt.Errorf("inserting menu: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	menu.ID = id
	return nil
}

// GetByID returns a menu by ID, or nil if not found.
func (r *menuRepo) GetByID(ctx context.Context, id int64) (*models.Menu, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, active, items, created_at, updated_at
		 FROM menus WHERE id = ?`, id,
	))
}

// GetActiveByTenant returns the tenant's active menu, or nil if none exists.
func (r *menuRepo) GetActiveByTenant(ctx context.Context, tenantID string) (*models.Menu, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, active, items, created_at, updated_at
		 FROM menus WHERE tenant_id = ? AND active = 1`, tenantID,
	))
}

// ListByTenant returns all menus for a tenant ordered by name.
func (r *menuRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.Menu, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, active, items, created_at, updated_at
		 FROM menus WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying menus: %w", err)
	}
	defer rows.Close()

	var menus []models.Menu
	for rows.Next() {
		var m models.Menu
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Active, &m.Items,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning menu row: %w", err)
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// Update modifies an existing menu.
func (r *menuRepo) Update(ctx context.Context, menu *models.Menu) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE menus SET tenant_id = ?, name = ?, active = ?, items = ?,
		 updated_at = datetime('now')
		 WHERE id = ?`,
		menu.TenantID, menu.Name, menu.Active, menu.Items, menu.ID,
	)
	if err != nil {
		return fmt.Errorf("updating menu: %w", err)
	}
	return nil
}

func (r *menuRepo) scanOne(row *sql.Row) (*models.Menu, error) {
	var m models.Menu
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Active, &m.Items,
		&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning menu: %w", err)
	}
	return &m, nil
}
