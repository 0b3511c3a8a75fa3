package domain

import (
	"context"
	"strings"
)

// =============================================================================
// USER DOMAIN TYPES
// =============================================================================

// Address is a postal address. Only stored and echoed; checkout does not use it.
type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
}

// User is a storefront customer. Users are registered by the whitelabel
// platform; this service reads them at checkout.
type User struct {
	ID           string  `json:"id"`
	WhitelabelID string  `json:"whitelabelId"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	TaxID        string  `json:"taxId"` // CPF or CNPJ
	Phone        string  `json:"phone"`
	Address      Address `json:"address"`
}

// MissingBillingFields returns the names of fields a payment gateway needs
// that the user has not filled in. Empty means the user can check out.
func (u *User) MissingBillingFields() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", u.Name)
	check("email", u.Email)
	check("taxId", u.TaxID)
	check("phone", u.Phone)
	return missing
}

// UserRepository reads users.
type UserRepository interface {
	// FindByID returns the user or a NotFound error.
	FindByID(ctx context.Context, userID string) (*User, error)
}
