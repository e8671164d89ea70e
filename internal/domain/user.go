package domain

// User roles.
const (
	RoleCustomer = "customer"
	RoleAuthor   = "author"
	RoleAdmin    = "admin"
)

// User is the read-only view of the marketplace user directory.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// DisplayName falls back to the id when the directory has no name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
