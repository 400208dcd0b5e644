package models

import "time"

// Transaction is an immutable sale or service line. Amounts are in CLP.
type Transaction struct {
	ID            int64     `json:"id"`
	ClientID      *int64    `json:"client_id,omitempty"`
	ProductID     *int64    `json:"product_id,omitempty"`
	Kind          string    `json:"kind"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Quantity      int       `json:"quantity"`
	UnitPrice     int64     `json:"unit_price"`
	UnitCost      int64     `json:"unit_cost"`
	Total         int64     `json:"total"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}
