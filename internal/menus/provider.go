// Package menus supplies a tenant's voice menu definition. The primary
// strategy reads the configured menu from storage, bootstrapping a sensible
// default on first read; a legacy fixed-mapping strategy covers storage
// failures so the IVR is never unable to answer a call.
package menus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/models"
)

// Menu item action types.
const (
	ActionServicesInfo   = "services_info"
	ActionForwardToHuman = "forward_to_human"
	ActionVoicemail      = "voicemail"
	ActionSMSInfo        = "sms_info"
	ActionEasterEgg      = "easter_egg"
)

// Item is one digit-to-action binding within a menu.
type Item struct {
	Digit   string `json:"digit"`
	Label   string `json:"label"`
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
}

// Definition is a parsed, ordered voice menu for one tenant.
type Definition struct {
	ID       int64
	TenantID string
	Name     string
	Items    []Item
}

// FindItemByDigit returns the menu item bound to the pressed digit.
func FindItemByDigit(def *Definition, digit string) (Item, bool) {
	if def == nil {
		return Item{}, false
	}
	for _, item := range def.Items {
		if item.Digit == digit {
			return item, true
		}
	}
	return Item{}, false
}

// Strategy supplies a menu definition for a tenant.
type Strategy interface {
	Menu(ctx context.Context, tenantID string) (*Definition, error)
}

// Provider is the primary, storage-backed menu strategy.
type Provider struct {
	menus  database.MenuRepository
	logger *slog.Logger
}

// NewProvider creates a storage-backed menu Provider.
func NewProvider(menus database.MenuRepository, logger *slog.Logger) *Provider {
	return &Provider{
		menus:  menus,
		logger: logger.With("component", "menus"),
	}
}

// Menu returns the tenant's active menu. When none exists it creates and
// persists the default menu rather than erroring: missing configuration must
// never leave a call unanswered.
func (p *Provider) Menu(ctx context.Context, tenantID string) (*Definition, error) {
	row, err := p.menus.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading active menu: %w", err)
	}

	if row == nil {
		return p.bootstrap(ctx, tenantID)
	}

	def, err := parse(row)
	if err != nil {
		return nil, fmt.Errorf("parsing menu %d: %w", row.ID, err)
	}
	return def, nil
}

// bootstrap persists and returns the default menu for a tenant with no
// active menu.
func (p *Provider) bootstrap(ctx context.Context, tenantID string) (*Definition, error) {
	items := DefaultItems()
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshalling default menu: %w", err)
	}

	row := &models.Menu{
		TenantID: tenantID,
		Name:     "Default",
		Active:   true,
		Items:    string(raw),
	}
	if err := p.menus.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persisting default menu: %w", err)
	}

	p.logger.Info("bootstrapped default menu", "tenant_id", tenantID, "menu_id", row.ID)

	return &Definition{
		ID:       row.ID,
		TenantID: tenantID,
		Name:     row.Name,
		Items:    items,
	}, nil
}

// parse decodes a stored menu row, rejecting duplicate digits.
func parse(row *models.Menu) (*Definition, error) {
	var items []Item
	if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
		return nil, fmt.Errorf("decoding menu items: %w", err)
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.Digit] {
			return nil, fmt.Errorf("duplicate digit %q in menu", item.Digit)
		}
		seen[item.Digit] = true
	}

	return &Definition{
		ID:       row.ID,
		TenantID: row.TenantID,
		Name:     row.Name,
		Items:    items,
	}, nil
}

// DefaultItems returns the menu bootstrapped for tenants without one.
func DefaultItems() []Item {
	return []Item{
		{Digit: "1", Label: "Hours and services", Action: ActionServicesInfo},
		{Digit: "2", Label: "Talk to someone", Action: ActionForwardToHuman},
		{Digit: "3", Label: "Leave a voicemail", Action: ActionVoicemail},
	}
}
