package billing

import (
	"testing"

	"github.com/carverdev/projhub/internal/domain/models"
)

func TestPlanAmountCents(t *testing.T) {
	cases := []struct {
		plan models.PlanID
		want int64
	}{
		{models.PlanBasic, 1500},
		{models.PlanPro, 2000},
		{models.PlanBusiness, 3000},
		{models.PlanID("unknown"), 1500},
	}
	for _, tc := range cases {
		if got := PlanAmountCents(tc.plan); got != tc.want {
			t.Errorf("PlanAmountCents(%q) = %d, want %d", tc.plan, got, tc.want)
		}
	}
}

func TestNewStripeGateway_RequiresAllPrices(t *testing.T) {
	prices := map[models.PlanID]string{
		models.PlanBasic: "price_basic",
		models.PlanPro:   "price_pro",
		// business missing
	}
	if _, err := NewStripeGateway("sk_test_x", prices, nil); err == nil {
		t.Error("expected error when a plan price is missing")
	}
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	if _, err := NewStripeGateway("", nil, nil); err == nil {
		t.Error("expected error for empty secret key")
	}
}
