package domain

import (
	"time"
)

// Role constants define the allowed user roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []string {
	return []string{RoleUser, RoleAdmin}
}

// IsValidRole checks whether the given role string is a valid user role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRole maps any stored or claimed role string to a valid role.
// Anything that is not exactly "admin" is treated as a regular user, so an
// empty or unknown role can never grant elevated access.
func NormalizeRole(role string) string {
	if role == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// User represents a known subject in the system. Users are created lazily on
// first successful session exchange with the external identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return NormalizeRole(u.Role) == RoleAdmin
}

// Identity is the verified caller identity attached to every authorized
// request. Role is always normalized.
type Identity struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
}

// IsAdmin reports whether the identity holds the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}
