package loyalty

const (
	// DiscountEvery hair services unlock a one-shot discount.
	DiscountEvery = 5
	// FreeCutEvery hair services unlock a one-shot free cut.
	FreeCutEvery = 10
	// CardSize is the number of stamps on one physical card.
	CardSize = FreeCutEvery
)

// Unlocks reports which one-shot rewards a hair service registration fired.
type Unlocks struct {
	Discount bool `json:"discount"`
	FreeCut  bool `json:"free_cut"`
}

// Any reports whether at least one reward was unlocked.
func (u Unlocks) Any() bool { return u.Discount || u.FreeCut }

// ServiceUnlocks applies the unlock rules to the count reached after an increment.
func ServiceUnlocks(newCount int) Unlocks {
	if newCount <= 0 {
		return Unlocks{}
	}
	return Unlocks{
		Discount: newCount%DiscountEvery == 0,
		FreeCut:  newCount%FreeCutEvery == 0,
	}
}

type Stamp struct {
	Position int    `json:"position"`
	Filled   bool   `json:"filled"`
	Reward   string `json:"reward,omitempty"`
}

// Card is the stamp-card view of a client's hair-service progress.
type Card struct {
	Stamps              []Stamp `json:"stamps"`
	Filled              int     `json:"filled"`
	CompletedCards      int     `json:"completed_cards"`
	RemainingToDiscount int     `json:"remaining_to_discount"`
	RemainingToFreeCut  int     `json:"remaining_to_free_cut"`
}

const (
	RewardDiscount = "discount"
	RewardFreeCut  = "free_cut"
)

// StampCard renders count onto a 10-stamp card. A positive multiple of 10
// shows a full card rather than an empty one.
func StampCard(count int) Card {
	if count < 0 {
		count = 0
	}

	filled := count % CardSize
	completed := count / CardSize
	if count > 0 && filled == 0 {
		filled = CardSize
		completed--
	}

	stamps := make([]Stamp, CardSize)
	for i := range stamps {
		pos := i + 1
		stamps[i] = Stamp{Position: pos, Filled: pos <= filled}
		switch pos {
		case DiscountEvery:
			stamps[i].Reward = RewardDiscount
		case FreeCutEvery:
			stamps[i].Reward = RewardFreeCut
		}
	}

	return Card{
		Stamps:              stamps,
		Filled:              filled,
		CompletedCards:      completed,
		RemainingToDiscount: remainingTo(count, DiscountEvery),
		RemainingToFreeCut:  remainingTo(count, FreeCutEvery),
	}
}

func remainingTo(count, every int) int {
	return every - count%every
}
