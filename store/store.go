package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go-bankledger/models"
)

// Store is the persistence boundary for customers and accounts. Lookups of
// missing records fail with an error wrapping models.ErrNotFound.
type Store interface {
	SaveCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
	FindCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	FindCustomerByDNI(ctx context.Context, dni string) (*models.Customer, error)
	ExistsCustomerWithEmail(ctx context.Context, email string) (bool, error)
	// DeleteCustomerByID removes the customer and every account it owns.
	DeleteCustomerByID(ctx context.Context, id int64) error

	SaveAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	FindAccountByNumber(ctx context.Context, number string) (*models.Account, error)
	FindAccountsByCustomerID(ctx context.Context, customerID int64) ([]*models.Account, error)

	// WithinTx runs fn so that its writes apply together or not at all.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// MemoryStore holds customers and accounts in memory
type MemoryStore struct {
	mu             sync.RWMutex
	customers      map[int64]*models.Customer
	customerByDNI  map[string]int64
	accounts       map[string]*models.Account
	nextCustomerID int64
	nextAccountID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[int64]*models.Customer),
		customerByDNI: make(map[string]int64),
		accounts:      make(map[string]*models.Account),
	}
}

// SaveCustomer inserts a customer when its ID is zero and updates it otherwise
func (s *MemoryStore) SaveCustomer(_ context.Context, c *models.Customer) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		if _, taken := s.customerByDNI[c.DNI]; taken {
			return nil, fmt.Errorf("%w: DNI %q already exists", models.ErrDuplicateIdentifier, c.DNI)
		}
		if s.emailTaken(c.Email) {
			return nil, fmt.Errorf("%w: email %q already exists", models.ErrDuplicateIdentifier, c.Email)
		}
		s.nextCustomerID++
		stored := c.Clone()
		stored.ID = s.nextCustomerID
		s.putCustomer(stored)
		return stored.Clone(), nil
	}

	prev, ok := s.customers[c.ID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", c.ID, models.ErrNotFound)
	}
	stored := c.Clone()
	stored.DNI = prev.DNI
	s.putCustomer(stored)
	return stored.Clone(), nil
}

// FindCustomerByID retrieves a customer by ID
func (s *MemoryStore) FindCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, models.ErrNotFound)
	}
	return c.Clone(), nil
}

// FindCustomerByDNI retrieves a customer by DNI
func (s *MemoryStore) FindCustomerByDNI(_ context.Context, dni string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.customerByDNI[dni]
	if !ok {
		return nil, fmt.Errorf("customer with DNI %q: %w", dni, models.ErrNotFound)
	}
	return s.customers[id].Clone(), nil
}

// ExistsCustomerWithEmail reports whether any customer uses email
func (s *MemoryStore) ExistsCustomerWithEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTaken(email), nil
}

// DeleteCustomerByID removes a customer and, one by one, the accounts it owns
func (s *MemoryStore) DeleteCustomerByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return fmt.Errorf("customer %d: %w", id, models.ErrNotFound)
	}
	for _, number := range c.AccountNumbers {
		delete(s.accounts, number)
	}
	delete(s.customerByDNI, c.DNI)
	delete(s.customers, id)
	return nil
}

// SaveAccount inserts an account when its ID is zero and updates it otherwise.
// The owning customer must exist.
func (s *MemoryStore) SaveAccount(_ context.Context, a *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[a.CustomerID]; !ok {
		return nil, fmt.Errorf("owner of account %s: customer %d: %w", a.Number, a.CustomerID, models.ErrNotFound)
	}

	if a.ID == 0 {
		if _, taken := s.accounts[a.Number]; taken {
			return nil, fmt.Errorf("%w: account number %s already exists", models.ErrDuplicateIdentifier, a.Number)
		}
		s.nextAccountID++
		stored := a.Clone()
		stored.ID = s.nextAccountID
		s.accounts[stored.Number] = stored
		return stored.Clone(), nil
	}

	prev, ok := s.accounts[a.Number]
	if !ok || prev.ID != a.ID {
		return nil, fmt.Errorf("account %s: %w", a.Number, models.ErrNotFound)
	}
	stored := a.Clone()
	stored.Type = prev.Type
	stored.CustomerID = prev.CustomerID
	s.accounts[stored.Number] = stored
	return stored.Clone(), nil
}

// FindAccountByNumber retrieves an account by its number
func (s *MemoryStore) FindAccountByNumber(_ context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[number]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", number, models.ErrNotFound)
	}
	return a.Clone(), nil
}

// FindAccountsByCustomerID retrieves all accounts for a customer, oldest first
func (s *MemoryStore) FindAccountsByCustomerID(_ context.Context, customerID int64) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var accounts []*models.Account
	for _, a := range s.accounts {
		if a.CustomerID == customerID {
			accounts = append(accounts, a.Clone())
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// WithinTx runs fn against a view that records how to undo each write. If fn
// fails, the writes are undone in reverse order.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx := &memoryTx{MemoryStore: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) putCustomer(c *models.Customer) {
	s.customers[c.ID] = c
	s.customerByDNI[c.DNI] = c.ID
}

func (s *MemoryStore) emailTaken(email string) bool {
	for _, c := range s.customers {
		if strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

// memoryTx wraps the writes of MemoryStore with undo steps. Reads go straight
// to the store.
type memoryTx struct {
	*MemoryStore
	undo []func()
}

func (tx *memoryTx) SaveCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	var prev *models.Customer
	if c.ID != 0 {
		if p, err := tx.MemoryStore.FindCustomerByID(ctx, c.ID); err == nil {
			prev = p
		}
	}
	saved, err := tx.MemoryStore.SaveCustomer(ctx, c)
	if err != nil {
		return nil, err
	}
	tx.push(func() {
		if prev != nil {
			tx.putCustomer(prev)
			return
		}
		delete(tx.customers, saved.ID)
		delete(tx.customerByDNI, saved.DNI)
	})
	return saved, nil
}

func (tx *memoryTx) DeleteCustomerByID(ctx context.Context, id int64) error {
	prev, err := tx.MemoryStore.FindCustomerByID(ctx, id)
	if err != nil {
		return err
	}
	var owned []*models.Account
	for _, number := range prev.AccountNumbers {
		if a, err := tx.MemoryStore.FindAccountByNumber(ctx, number); err == nil {
			owned = append(owned, a)
		}
	}
	if err := tx.MemoryStore.DeleteCustomerByID(ctx, id); err != nil {
		return err
	}
	tx.push(func() {
		tx.putCustomer(prev)
		for _, a := range owned {
			tx.accounts[a.Number] = a
		}
	})
	return nil
}

func (tx *memoryTx) SaveAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	var prev *models.Account
	if a.ID != 0 {
		if p, err := tx.MemoryStore.FindAccountByNumber(ctx, a.Number); err == nil {
			prev = p
		}
	}
	saved, err := tx.MemoryStore.SaveAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	tx.push(func() {
		if prev != nil {
			tx.accounts[prev.Number] = prev
			return
		}
		delete(tx.accounts, saved.Number)
	})
	return saved, nil
}

// WithinTx on a transaction joins it.
func (tx *memoryTx) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

func (tx *memoryTx) push(step func()) {
	tx.undo = append(tx.undo, step)
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}
