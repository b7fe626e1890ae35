package service

import (
	"fmt"

	"grocery-service/internal/models"
)

// Actor is the authenticated user a call is made on behalf of
type Actor struct {
	UserID int64
	Role   string
}

// IsOwner reports whether the actor runs the shop
func (a Actor) IsOwner() bool { return a.Role == models.RoleOwner }

// IsCustomer reports whether the actor shops
func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }

// IsCarrier reports whether the actor delivers orders
func (a Actor) IsCarrier() bool { return a.Role == models.RoleCarrier }

func requireRole(a Actor, role string) error {
	if a.Role != role {
		return fmt.Errorf("%w: requires role %s", ErrForbidden, role)
	}
	return nil
}
