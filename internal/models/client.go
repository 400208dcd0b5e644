package models

import "time"

// Client is a loyalty member. Tier is derived from Visits and never stored.
type Client struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Email             string     `json:"email,omitempty"`
	RUT               string     `json:"rut,omitempty"`
	Token             string     `json:"token"`
	Visits            int        `json:"visits"`
	HairServiceCount  int        `json:"hair_service_count"`
	DiscountAvailable bool       `json:"discount_5th_visit_available"`
	FreeCutAvailable  bool       `json:"free_cut_available"`
	LastVisit         *time.Time `json:"last_visit,omitempty"`
	TermsAcceptedAt   time.Time  `json:"terms_accepted_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ClientPatch names a subset of client columns. It is used both as the
// guard of a conditional update (every set field must match) and as the
// set of fields to write.
type ClientPatch struct {
	Name              *string
	Email             *string
	Visits            *int
	HairServiceCount  *int
	DiscountAvailable *bool
	FreeCutAvailable  *bool
	LastVisit         *time.Time
}

// IsEmpty reports whether no field is set.
func (p ClientPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Visits == nil && p.HairServiceCount == nil &&
		p.DiscountAvailable == nil && p.FreeCutAvailable == nil && p.LastVisit == nil
}

func Int(v int) *int { return &v }

func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }

func Time(v time.Time) *time.Time { return &v }
