package plans

import (
	"errors"
	"testing"
)

func TestListOrder(t *testing.T) {
	got := List()
	if len(got) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(got))
	}
	want := []string{PlanFree, PlanPremium, PlanPro}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("plan %d = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].StripePriceID != "" {
		t.Fatalf("free plan must not carry a stripe price id")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "free", want: PlanFree},
		{in: "premium", want: PlanPremium},
		{in: "PRO", want: PlanPro},
		{in: " pro ", want: PlanPro},
		{in: "invalid", want: PlanFree},
		{in: "", want: PlanFree},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	if Rank(PlanFree) >= Rank(PlanPremium) {
		t.Fatalf("expected premium to outrank free")
	}
	if Rank(PlanPremium) >= Rank(PlanPro) {
		t.Fatalf("expected pro to outrank premium")
	}
}

func TestResolveByPriceRef(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "", want: PlanFree},
		{in: "price_premium_monthly", want: PlanPremium},
		{in: "price_pro_monthly", want: PlanPro},
		{in: " PRICE_PRO_MONTHLY ", want: PlanPro},
		{in: "price_totally_bogus", want: PlanFree, wantErr: ErrUnknownPriceRef},
		// Refs that merely contain a plan name must not resolve to a paid tier.
		{in: "price_1Nxyz_premium_abc", want: PlanFree, wantErr: ErrUnknownPriceRef},
		{in: "price_prod_basic", want: PlanFree, wantErr: ErrUnknownPriceRef},
		{in: "price_promotion_2024", want: PlanFree, wantErr: ErrUnknownPriceRef},
	}

	for _, tt := range tests {
		got, err := ResolveByPriceRef(tt.in)
		if got != tt.want {
			t.Fatalf("ResolveByPriceRef(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("ResolveByPriceRef(%q) err = %v, want %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestByIDFallback(t *testing.T) {
	if got := ByID("nope"); got.ID != PlanFree {
		t.Fatalf("ByID fallback = %q, want free", got.ID)
	}
	if got := ByID("pro"); got.PromptLimit != PromptLimitUnlimited {
		t.Fatalf("expected pro plan to be unlimited, got limit %d", got.PromptLimit)
	}
}
