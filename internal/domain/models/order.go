package models

import "time"

// OrderItem is one line of an order.
type OrderItem struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Served   bool    `json:"served"`
}

// Order is the slice of an order record the printing engine needs.
type Order struct {
	ID           string      `json:"id"`
	Channel      string      `json:"channel,omitempty"`
	Table        string      `json:"table,omitempty"`
	PriceVariant string      `json:"priceVariant,omitempty"`
	Status       string      `json:"status,omitempty"`
	PaymentMode  string      `json:"paymentMode,omitempty"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Total returns the sum of price*quantity over all items.
func (o *Order) Total() float64 {
	var t float64
	for _, it := range o.Items {
		t += it.Price * float64(it.Quantity)
	}
	return t
}
