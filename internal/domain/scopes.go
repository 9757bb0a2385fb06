package domain

import "strings"

// BaseScopes are required for core functionality and form the fixed scope
// set requested during OAuth authorization.
var BaseScopes = []string{
	"read_products",
	"write_products",
	"read_orders",
	"read_discounts",
	"write_discounts",
}

// PremiumScopes are additionally requested for premium features.
var PremiumScopes = []string{
	"read_customers",
	"read_marketing_events",
	"write_marketing_events",
}

// PlanScopes maps billing plans to their full scope requirements.
var PlanScopes = map[string][]string{
	"basic":      BaseScopes,
	"pro":        append(append([]string{}, BaseScopes...), "read_analytics", "read_customers"),
	"enterprise": append(append([]string{}, BaseScopes...), PremiumScopes...),
}

// ValidateScopes reports whether every required scope is granted.
func ValidateScopes(granted, required []string) bool {
	return len(MissingScopes(granted, required)) == 0
}

// MissingScopes returns the required scopes absent from the granted set.
func MissingScopes(granted, required []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// ScopesForPlan returns the scope set for a plan, falling back to basic.
func ScopesForPlan(plan string) []string {
	if scopes, ok := PlanScopes[strings.ToLower(plan)]; ok {
		return scopes
	}
	return PlanScopes["basic"]
}
