package menus

import "context"

// LegacyStrategy is the fixed digit mapping used before menus became
// configurable. It is selected only when the primary strategy fails, so a
// storage outage degrades the menu rather than dropping the call.
type LegacyStrategy struct{}

// NewLegacyStrategy creates the fallback menu strategy.
func NewLegacyStrategy() *LegacyStrategy {
	return &LegacyStrategy{}
}

// Menu returns the fixed legacy menu. It never fails.
func (s *LegacyStrategy) Menu(_ context.Context, tenantID string) (*Definition, error) {
	return &Definition{
		TenantID: tenantID,
		Name:     "Legacy",
		Items: []Item{
			{Digit: "1", Label: "Hours and services", Action: ActionServicesInfo},
			{Digit: "2", Label: "Talk to someone", Action: ActionForwardToHuman},
			{Digit: "3", Label: "Leave a voicemail", Action: ActionVoicemail},
			{Digit: "7", Label: "A little surprise", Action: ActionEasterEgg},
		},
	}, nil
}

// Ensure both strategies satisfy the Strategy interface.
var (
	_ Strategy = (*Provider)(nil)
	_ Strategy = (*LegacyStrategy)(nil)
)
