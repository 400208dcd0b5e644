package models

import "time"

type Product struct {
	ID                int64     `json:"id" yaml:"-"`
	SKU               string    `json:"sku" yaml:"sku"`
	Name              string    `json:"name" yaml:"name"`
	Category          string    `json:"category" yaml:"category"`
	Quantity          int       `json:"quantity" yaml:"quantity"`
	Cost              int64     `json:"cost" yaml:"cost"`
	Price             int64     `json:"price" yaml:"price"`
	LowStockThreshold int       `json:"low_stock_threshold" yaml:"low_stock_threshold"`
	Active            bool      `json:"active" yaml:"active"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// IsLowStock reports whether stock reached the alert threshold.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.LowStockThreshold
}

// StockMovement is an append-only inventory log entry.
type StockMovement struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Staff     string    `json:"staff,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VisitLog is the audit trail of loyalty events.
type VisitLog struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}
