// Package customer owns customer identity rules: field validation, DNI and
// email uniqueness at registration, and lookups by id or DNI.
package customer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go-bankledger/models"
)

// Store is the part of the persistence boundary the registry needs.
type Store interface {
	SaveCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
	FindCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	FindCustomerByDNI(ctx context.Context, dni string) (*models.Customer, error)
	ExistsCustomerWithEmail(ctx context.Context, email string) (bool, error)
	DeleteCustomerByID(ctx context.Context, id int64) error
}

// Registry enforces customer rules on top of a Store.
type Registry struct {
	store Store
	// mu serializes the check-then-save of Register so two concurrent
	// registrations cannot both claim the same DNI or email.
	mu sync.Mutex
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Register creates a customer with a fresh identifier and no accounts.
func (r *Registry) Register(ctx context.Context, firstName, lastName, dni, email string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.store.FindCustomerByDNI(ctx, dni); err == nil {
		return nil, fmt.Errorf("%w: DNI %q already exists", models.ErrDuplicateIdentifier, dni)
	} else if !isNotFound(err) {
		return nil, err
	}

	if err := Validate(Details{FirstName: firstName, LastName: lastName, DNI: dni, Email: email}); err != nil {
		return nil, err
	}

	taken, err := r.store.ExistsCustomerWithEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email %q already exists", models.ErrDuplicateIdentifier, email)
	}

	return r.store.SaveCustomer(ctx, &models.Customer{
		FirstName: firstName,
		LastName:  lastName,
		DNI:       dni,
		Email:     email,
	})
}

// GetByID returns the customer with the given identifier.
func (r *Registry) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	return r.store.FindCustomerByID(ctx, id)
}

// GetByDNI returns the customer holding dni.
func (r *Registry) GetByDNI(ctx context.Context, dni string) (*models.Customer, error) {
	return r.store.FindCustomerByDNI(ctx, dni)
}

// Update replaces the names and email of a customer. The DNI never changes.
// Uniqueness of the new email is not re-checked here.
func (r *Registry) Update(ctx context.Context, id int64, firstName, lastName, email string) (*models.Customer, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Validate(Details{FirstName: firstName, LastName: lastName, DNI: c.DNI, Email: email}); err != nil {
		return nil, err
	}
	c.FirstName = firstName
	c.LastName = lastName
	c.Email = email
	return r.store.SaveCustomer(ctx, c)
}

// Delete removes the customer and, through the store, every account it owns.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	if err := r.store.DeleteCustomerByID(ctx, id); err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
