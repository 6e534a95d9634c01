package domain

import "time"

// User represents a registered gateway user.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Username  string    `json:"username"   db:"username"`
	APIKey    string    `json:"-"          db:"api_key"` // never serialized to JSON
	Role      string    `json:"role"       db:"role"`
	Credits   int       `json:"credits"    db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Role constants.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
