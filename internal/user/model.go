package user

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user record may hold. At most one record holds RoleAdmin at
// any time; the users_single_admin index enforces this in the store.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// User is the persisted directory record. RefreshToken mirrors the
// currently valid refresh token so a presented token can be checked
// against (and invalidated by rotating) the stored value; it is never
// serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         string    `json:"role"`
	GoogleID     string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
