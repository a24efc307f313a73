package domain

// OrderStatus is the kitchen workflow state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
)

// next maps each status to its single allowed successor.
var next = map[OrderStatus]OrderStatus{
	OrderStatusPending:   OrderStatusPreparing,
	OrderStatusPreparing: OrderStatusReady,
	OrderStatusReady:     OrderStatusCompleted,
}

// CanTransitionTo reports whether target is the immediate successor of s.
// The workflow is strictly linear: no skips, no backward moves.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return next[s] == target
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted
}

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus validates a raw status value.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted:
		return OrderStatus(raw), nil
	}
	return "", ErrUnknownStatus
}

// Order is created at checkout from a cart snapshot. Dishes are denormalized
// copies taken at creation time; only the status field changes afterwards.
type Order struct {
	ID         string      `json:"id" bson:"id"`
	OrderName  string      `json:"orderName" bson:"orderName"`
	Dishes     []Dish      `json:"dishes" bson:"dishes"`
	TotalPrice float64     `json:"totalPrice" bson:"totalPrice"`
	Status     OrderStatus `json:"status" bson:"status"`
}
