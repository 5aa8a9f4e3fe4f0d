package plans

import (
	"errors"
	"strings"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"
	PlanPro     = "pro"
)

// PromptLimitUnlimited is the sentinel quota for plans without a prompt cap.
const PromptLimitUnlimited = -1

// ErrUnknownPriceRef is returned together with the free fallback when a Stripe
// price reference maps to no known plan, so callers can log the fallback
// instead of silently under-billing.
var ErrUnknownPriceRef = errors.New("unknown stripe price reference")

// Plan is one entry of the static catalog. The catalog order defines the
// upgrade hierarchy: free < premium < pro.
type Plan struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"display_name"`
	Description     string  `json:"description"`
	StripePriceID   string  `json:"stripe_price_id,omitempty"`
	PriceAmount     float64 `json:"price_amount"`
	Currency        string  `json:"currency"`
	BillingInterval string  `json:"billing_interval"`
	PromptLimit     int     `json:"prompt_limit"`
	CustomPrompts   bool    `json:"custom_prompts"`
	PrioritySupport bool    `json:"priority_support"`
}

var catalog = []Plan{
	{
		ID:              PlanFree,
		DisplayName:     "Free",
		Description:     "Basic access with limited prompts",
		PriceAmount:     0,
		Currency:        "USD",
		BillingInterval: "monthly",
		PromptLimit:     10,
	},
	{
		ID:              PlanPremium,
		DisplayName:     "Premium",
		Description:     "Enhanced features with more prompts",
		StripePriceID:   "price_premium_monthly",
		PriceAmount:     9.99,
		Currency:        "USD",
		BillingInterval: "monthly",
		PromptLimit:     100,
		CustomPrompts:   true,
	},
	{
		ID:              PlanPro,
		DisplayName:     "Pro",
		Description:     "Unlimited access with priority support",
		StripePriceID:   "price_pro_monthly",
		PriceAmount:     19.99,
		Currency:        "USD",
		BillingInterval: "monthly",
		PromptLimit:     PromptLimitUnlimited,
		CustomPrompts:   true,
		PrioritySupport: true,
	},
}

// List returns the full catalog in upgrade order.
func List() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// ByID returns the plan for id, falling back to the free plan for unknown ids.
func ByID(id string) Plan {
	normalized := Normalize(id)
	for _, p := range catalog {
		if p.ID == normalized {
			return p
		}
	}
	return catalog[0]
}

// Normalize maps arbitrary plan spellings onto a catalog id, defaulting to free.
func Normalize(id string) string {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case PlanPremium:
		return PlanPremium
	case PlanPro:
		return PlanPro
	default:
		return PlanFree
	}
}

// Rank returns the position of a plan in the upgrade hierarchy.
func Rank(id string) int {
	switch Normalize(id) {
	case PlanPro:
		return 2
	case PlanPremium:
		return 1
	default:
		return 0
	}
}

// ResolveByPriceRef maps a Stripe price reference to a plan id by exact match
// against the catalog. An empty ref resolves to free (locally created
// subscriptions are never bound to billing); an unrecognized ref resolves to
// free with ErrUnknownPriceRef so the caller can surface the fallback.
func ResolveByPriceRef(priceRef string) (string, error) {
	ref := strings.ToLower(strings.TrimSpace(priceRef))
	if ref == "" {
		return PlanFree, nil
	}
	for _, p := range catalog {
		if p.StripePriceID != "" && p.StripePriceID == ref {
			return p.ID, nil
		}
	}
	return PlanFree, ErrUnknownPriceRef
}
