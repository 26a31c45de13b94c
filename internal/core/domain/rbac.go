package domain

// Default role names seeded at bootstrap.
const (
	RoleAdmin   = "Admin"
	RoleRegular = "Regular"
)

// Role groups users under a name. Admin rights are granted by name through configuration.
type Role struct {
	ID   string
	Name string
}
