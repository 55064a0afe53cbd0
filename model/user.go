package model

import "strings"

// User roles.
const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleCashier    = "CASHIER"
	RoleCustomer   = "CUSTOMER"
)

// User is an account. Credentials and other private fields stay in Extra and
// are never part of PublicUser.
type User struct {
	Base
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

// DisplayName is "First Last", or the email when both are empty.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// CanSell reports whether the user may take till orders.
func (u User) CanSell() bool {
	switch u.Role {
	case RoleCashier, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// PublicUser is the part of a user that is safe to show to other staff.
type PublicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
