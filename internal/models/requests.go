package models

import (
	"time"

	"salon/internal/loyalty"
)

type RegisterClientRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	RUT           string `json:"rut,omitempty"`
	Email         string `json:"email,omitempty"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// CardLookup finds a client by phone or by membership token.
type CardLookup struct {
	Phone string `json:"phone,omitempty"`
	Token string `json:"token,omitempty"`
}

type HairServiceRequest struct {
	ServiceName   string `json:"service"`
	Price         int64  `json:"price"`
	PaymentMethod string `json:"payment_method"`
}

type HairServiceResult struct {
	Card    *ClientCard     `json:"card"`
	Unlocks loyalty.Unlocks `json:"unlocks"`
}

// WalkInRequest asks for the next free slot today.
type WalkInRequest struct {
	ServiceName     string `json:"service"`
	DurationMinutes int    `json:"duration_minutes"`
	ClientID        *int64 `json:"client_id,omitempty"`
	ClientName      string `json:"client_name"`
	ClientPhone     string `json:"client_phone,omitempty"`
	HomeService     bool   `json:"home_service"`
}

type WalkInResult struct {
	Booking *Booking    `json:"booking"`
	Card    *ClientCard `json:"card,omitempty"`
}

type CheckoutLine struct {
	ProductID   *int64 `json:"product_id,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price,omitempty"`
}

type CheckoutRequest struct {
	ClientID      *int64         `json:"client_id,omitempty"`
	PaymentMethod string         `json:"payment_method"`
	Lines         []CheckoutLine `json:"lines"`
	Staff         string         `json:"-"`
}

// SalesSummary aggregates transactions and activity over a period.
type SalesSummary struct {
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	Revenue         int64            `json:"revenue"`
	Cost            int64            `json:"cost"`
	GrossProfit     int64            `json:"gross_profit"`
	Transactions    int              `json:"transactions"`
	ByCategory      map[string]int64 `json:"by_category"`
	ByPaymentMethod map[string]int64 `json:"by_payment_method"`
	Bookings        int              `json:"bookings"`
	NewClients      int              `json:"new_clients"`
}
