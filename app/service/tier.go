package service

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

var (
	premiumPrice     = decimal.RequireFromString("29.90")
	premiumPlusPrice = decimal.RequireFromString("49.90")
)

// TierForAmount picks the highest tier whose price the amount covers.
// Amounts below the cheapest plan still map to premium.
func TierForAmount(amount decimal.Decimal) entity.SubscriptionTier {
	if amount.GreaterThanOrEqual(premiumPlusPrice) {
		return entity.SubscriptionPremiumPlus
	}
	return entity.SubscriptionPremium
}

func PlanPrice(plan string) (entity.SubscriptionTier, decimal.Decimal, bool) {
	switch entity.SubscriptionTier(strings.ToLower(strings.TrimSpace(plan))) {
	case entity.SubscriptionPremium:
		return entity.SubscriptionPremium, premiumPrice, true
	case entity.SubscriptionPremiumPlus:
		return entity.SubscriptionPremiumPlus, premiumPlusPrice, true
	default:
		return "", decimal.Zero, false
	}
}

func planTitle(tier entity.SubscriptionTier) string {
	if tier == entity.SubscriptionPremiumPlus {
		return "Wellness Premium Plus"
	}
	return "Wellness Premium"
}
