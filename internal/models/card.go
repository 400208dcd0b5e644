package models

import "salon/internal/loyalty"

// ClientCard is the read view of a client with every derived loyalty value.
type ClientCard struct {
	Client        *Client      `json:"client"`
	Tier          loyalty.Tier `json:"tier"`
	NextThreshold int          `json:"next_reward_threshold"`
	Stamps        loyalty.Card `json:"stamp_card"`
}

// NewClientCard derives the card from the stored counters.
func NewClientCard(c *Client) *ClientCard {
	return &ClientCard{
		Client:        c,
		Tier:          loyalty.TierFor(c.Visits),
		NextThreshold: loyalty.NextRewardThreshold(c.Visits),
		Stamps:        loyalty.StampCard(c.HairServiceCount),
	}
}

// Account projects the loyalty counters of the client.
func (c *Client) Account() loyalty.Account {
	return loyalty.Account{
		Visits:            c.Visits,
		HairServiceCount:  c.HairServiceCount,
		DiscountAvailable: c.DiscountAvailable,
		FreeCutAvailable:  c.FreeCutAvailable,
	}
}
