// Package loyalty holds the pure rules of the salon loyalty program:
// visit tiers, hair-service stamp rewards and client identifiers.
package loyalty

type Tier string

const (
	TierBronce Tier = "Bronce"
	TierPlata  Tier = "Plata"
	TierGold   Tier = "Gold"
)

const (
	PlataVisits = 5
	GoldVisits  = 10
)

// TierFor derives the tier from the total visit count.
func TierFor(visits int) Tier {
	switch {
	case visits >= GoldVisits:
		return TierGold
	case visits >= PlataVisits:
		return TierPlata
	default:
		return TierBronce
	}
}

// NextRewardThreshold is the visit count shown as the next goal.
func NextRewardThreshold(visits int) int {
	switch {
	case visits < PlataVisits:
		return PlataVisits
	case visits < GoldVisits:
		return GoldVisits
	default:
		return 15
	}
}

func (t Tier) String() string { return string(t) }
