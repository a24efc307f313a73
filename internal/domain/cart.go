package domain

// CartItem is one line of a user's cart. Price, Name and ImageURL are a
// snapshot of the dish at add-time and are not kept in sync with later
// catalog edits.
type CartItem struct {
	DishID   string  `json:"dishId" bson:"dishId"`
	Quantity int     `json:"quantity" bson:"quantity"`
	Price    float64 `json:"price" bson:"price"`
	Name     string  `json:"name" bson:"name"`
	ImageURL string  `json:"imageUrl" bson:"imageUrl"`
}

// Cart is the set of items embedded in a user document. At most one entry
// per dish id.
type Cart []CartItem

// IndexOf returns the position of the item with the given dish id, or -1.
func (c Cart) IndexOf(dishID string) int {
	for i, item := range c {
		if item.DishID == dishID {
			return i
		}
	}
	return -1
}

// Total sums price times quantity over all items.
func (c Cart) Total() float64 {
	var total float64
	for _, item := range c {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
