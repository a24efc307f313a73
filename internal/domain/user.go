package domain

// Role selects which of the three application modes a user sees.
type Role string

const (
	RoleUser    Role = "user"
	RoleKitchen Role = "kitchen"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleKitchen || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// UserData is the per-user document. It is created on first authentication;
// the role is assigned then and treated as immutable afterwards. The cart is
// embedded and mutated only through the cart repository.
type UserData struct {
	UserID string `json:"userId" bson:"userId"`
	Email  string `json:"email" bson:"email"`
	Role   Role   `json:"role" bson:"role"`
	Cart   Cart   `json:"cart" bson:"cart"`
}
