package entity

import "github.com/hiprotech/portal/domain/valueobject"

// Role is the user's authorization role as carried in the access token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCustomer, RoleVendor:
		return true
	}
	return false
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
	Verified  bool   `json:"isVerified"`
	Avatar    string `json:"avatar,omitempty"`
}

// UserPatch carries a partial profile update. Empty fields are left untouched.
type UserPatch struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// NewPlaceholderUser rebuilds a user from token claims alone. The names are
// placeholders until a full profile fetch replaces them.
func NewPlaceholderUser(id, email string, role Role) *User {
	first, last := "User", "Name"
	if role == RoleAdmin {
		first, last = "Admin", "User"
	}
	return &User{
		ID:        id,
		Email:     email,
		FirstName: first,
		LastName:  last,
		Role:      role,
		Verified:  true,
	}
}

// Apply merges the non-empty fields of p into u.
func (u *User) Apply(p UserPatch) {
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.FirstName != "" {
		u.FirstName = p.FirstName
	}
	if p.LastName != "" {
		u.LastName = p.LastName
	}
	if p.Avatar != "" {
		u.Avatar = p.Avatar
	}
}

// HasRole reports whether the user holds any of roles.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return u.FirstName + " " + u.LastName
}

// UserFromClaims is NewPlaceholderUser over decoded token claims.
func UserFromClaims(c *valueobject.Claims) *User {
	return NewPlaceholderUser(c.Subject, c.Email, Role(c.Role))
}
