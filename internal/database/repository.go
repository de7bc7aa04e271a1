package database

import (
	"context"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// SystemConfigRepository manages key-value system configuration.
type SystemConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) ([]models.SystemConfig, error)
}

// TenantRepository manages tenant accounts.
type TenantRepository interface {
	Create(ctx context.Context, t *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
}

// PhoneLineRepository manages provider-number-to-tenant mappings.
type PhoneLineRepository interface {
	Create(ctx context.Context, line *models.PhoneLine) error
	GetByID(ctx context.Context, id int64) (*models.PhoneLine, error)
	GetByNumber(ctx context.Context, number string) (*models.PhoneLine, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.PhoneLine, error)
	Update(ctx context.Context, line *models.PhoneLine) error
}

// MenuRepository manages voice menu configurations.
type MenuRepository interface {
	Create(ctx context.Context, menu *models.Menu) error
	GetByID(ctx context.Context, id int64) (*models.Menu, error)
	GetActiveByTenant(ctx context.Context, tenantID string) (*models.Menu, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.Menu, error)
	Update(ctx context.Context, menu *models.Menu) error
}

// ClaimLedger is the atomic claim-before-send primitive. Claim attempts to
// insert the claim row; it reports true only for the single caller that won
// the row for the claim's (call_id, scope) pair. Implementations must be
// safe across concurrent callers in separate processes.
type ClaimLedger interface {
	Claim(ctx context.Context, claim *models.NotificationClaim) (bool, error)
	ListByCall(ctx context.Context, callID string) ([]models.NotificationClaim, error)
	ListRecent(ctx context.Context, limit int) ([]models.NotificationClaim, error)
}

// ConversationRepository manages customer conversation thread entries.
type ConversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	// FindLatestByParties returns the most recently updated conversation for
	// the caller/line pair, or nil if none exists.
	FindLatestByParties(ctx context.Context, callerPhone, linePhone string, phoneLineID int64) (*models.Conversation, error)
	Update(ctx context.Context, c *models.Conversation) error
}

// PushTokenRepository manages owner-device push tokens.
type PushTokenRepository interface {
	Upsert(ctx context.Context, token *models.PushToken) error
	ListByTenant(ctx context.Context, tenantID string) ([]models.PushToken, error)
	DeleteByToken(ctx context.Context, token string) error
}
