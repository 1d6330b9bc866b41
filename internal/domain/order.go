package domain

import "time"

// Order represents a restaurant order entity. Orders are created by the
// ordering collaborator in status new and from then on mutated exclusively
// through the transition coordinator. They are never deleted, only parked
// in a terminal status.
type Order struct {
	ID        string
	TenantID  string
	Items     []OrderItem
	Status    Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem represents a line item in an order. Station is the kitchen
// station routing hint the displays group tickets by.
type OrderItem struct {
	ID       int     `json:"id"`
	OrderID  string  `json:"order_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Station  string  `json:"station"`
	Notes    *string `json:"notes,omitempty"`
}

// CloneItems returns a copy of the item list safe to embed into an
// immutable transition event.
func (o *Order) CloneItems() []OrderItem {
	if len(o.Items) == 0 {
		return nil
	}
	items := make([]OrderItem, len(o.Items))
	copy(items, o.Items)
	return items
}
