package loyalty

// Account is the loyalty state of one client. Transitions return a new
// value; persisting it is the caller's job.
type Account struct {
	Visits            int
	HairServiceCount  int
	DiscountAvailable bool
	FreeCutAvailable  bool
}

func (a Account) Tier() Tier { return TierFor(a.Visits) }

func (a Account) WithVisit() Account {
	a.Visits++
	return a
}

// WithHairService counts one hair service and raises the reward flags it unlocks.
// Flags already up stay up.
func (a Account) WithHairService() (Account, Unlocks) {
	a.HairServiceCount++
	u := ServiceUnlocks(a.HairServiceCount)
	if u.Discount {
		a.DiscountAvailable = true
	}
	if u.FreeCut {
		a.FreeCutAvailable = true
	}
	return a, u
}

// RedeemDiscount clears the discount flag. ok is false when there was nothing to redeem.
func (a Account) RedeemDiscount() (next Account, ok bool) {
	if !a.DiscountAvailable {
		return a, false
	}
	a.DiscountAvailable = false
	return a, true
}

// RedeemFreeCut clears the free-cut flag. ok is false when there was nothing to redeem.
func (a Account) RedeemFreeCut() (next Account, ok bool) {
	if !a.FreeCutAvailable {
		return a, false
	}
	a.FreeCutAvailable = false
	return a, true
}
