// Package tenant resolves dialed numbers to their owning tenant and phone
// line. Resolution never hard-fails: malformed numbers and missing lines
// degrade to the root tenant so a call is always answerable.
package tenant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/models"
)

// DefaultTenantID is the tenant that absorbs unresolvable calls.
const DefaultTenantID = "root"

// NormalizeNumber converts a raw phone number to canonical +E.164 form.
// It reports false when the input cannot plausibly be a phone number.
//
// Rules, applied to the digits-only form:
//   - 10 digits: assume NANP, prepend +1
//   - 11 digits starting with 1: prepend +
//   - otherwise keep a leading + if the input had one, or add one when the
//     number is at least 10 digits long
func NormalizeNumber(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "+1" + d, true
	case len(d) == 11 && d[0] == '1':
		return "+" + d, true
	case len(d) > 0 && strings.HasPrefix(trimmed, "+"):
		return "+" + d, true
	case len(d) >= 10:
		return "+" + d, true
	}
	return "", false
}

// Resolution is the outcome of resolving a dialed number. Tenant is always
// non-nil; Line is nil when no phone line owns the number.
type Resolution struct {
	Tenant *models.Tenant
	Line   *models.PhoneLine
	// Number is the canonical form of the dialed number, or the raw input
	// when normalization failed.
	Number string
}

// Resolver maps dialed numbers to tenants.
type Resolver struct {
	tenants         database.TenantRepository
	lines           database.PhoneLineRepository
	defaultTenantID string
	logger          *slog.Logger
}

// NewResolver creates a Resolver. defaultTenantID falls back to
// DefaultTenantID when empty.
func NewResolver(tenants database.TenantRepository, lines database.PhoneLineRepository, defaultTenantID string, logger *slog.Logger) *Resolver {
	if defaultTenantID == "" {
		defaultTenantID = DefaultTenantID
	}
	return &Resolver{
		tenants:         tenants,
		lines:           lines,
		defaultTenantID: defaultTenantID,
		logger:          logger.With("component", "tenant_resolver"),
	}
}

// Resolve looks up the tenant owning the dialed number. Store errors and
// missing rows degrade to the default tenant; the call flow must never
// hard-fail on lookup.
func (r *Resolver) Resolve(ctx context.Context, calledNumber string) Resolution {
	canonical, ok := NormalizeNumber(calledNumber)
	if !ok {
		r.logger.Warn("could not normalize dialed number, using default tenant",
			"called_number", calledNumber,
		)
		return Resolution{Tenant: r.defaultTenant(ctx), Number: calledNumber}
	}

	line, err := r.lines.GetByNumber(ctx, canonical)
	if err != nil {
		r.logger.Error("phone line lookup failed, using default tenant",
			"number", canonical,
			"error", err,
		)
		return Resolution{Tenant: r.defaultTenant(ctx), Number: canonical}
	}
	if line == nil {
		r.logger.Warn("no phone line for dialed number, using default tenant",
			"number", canonical,
		)
		return Resolution{Tenant: r.defaultTenant(ctx), Number: canonical}
	}

	t, err := r.tenants.GetByID(ctx, line.TenantID)
	if err != nil || t == nil {
		r.logger.Error("tenant lookup failed for phone line, using default tenant",
			"number", canonical,
			"tenant_id", line.TenantID,
			"error", err,
		)
		return Resolution{Tenant: r.defaultTenant(ctx), Line: line, Number: canonical}
	}

	return Resolution{Tenant: t, Line: line, Number: canonical}
}

// defaultTenant loads the default tenant row, synthesizing one if even that
// lookup fails.
func (r *Resolver) defaultTenant(ctx context.Context) *models.Tenant {
	t, err := r.tenants.GetByID(ctx, r.defaultTenantID)
	if err == nil && t != nil {
		return t
	}
	if err != nil {
		r.logger.Error("default tenant lookup failed", "tenant_id", r.defaultTenantID, "error", err)
	}
	return &models.Tenant{ID: r.defaultTenantID, Name: "Root"}
}
