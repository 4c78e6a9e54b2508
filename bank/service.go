// Package bank coordinates customers and accounts. It is the only layer that
// crosses the customer/account boundary, and every write it makes goes
// through one store transaction.
package bank

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"go-bankledger/customer"
	"go-bankledger/ledger"
	"go-bankledger/models"
	"go-bankledger/store"
)

// Service is the entry point used by front ends.
type Service struct {
	store    store.Store
	registry *customer.Registry
	locks    *ledger.Locks
	log      *zap.Logger
}

func NewService(s store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    s,
		registry: customer.NewRegistry(s),
		locks:    ledger.NewLocks(),
		log:      log.Named("bank"),
	}
}

func (s *Service) RegisterCustomer(ctx context.Context, firstName, lastName, dni, email string) (*models.Customer, error) {
	c, err := s.registry.Register(ctx, firstName, lastName, dni, email)
	if err != nil {
		return nil, err
	}
	s.log.Info("customer registered", zap.Int64("customer_id", c.ID), zap.String("dni", c.DNI))
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.registry.GetByID(ctx, id)
}

func (s *Service) GetCustomerByDNI(ctx context.Context, dni string) (*models.Customer, error) {
	return s.registry.GetByDNI(ctx, dni)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, firstName, lastName, email string) (*models.Customer, error) {
	unlock := s.locks.Lock(customerKey(id))
	defer unlock()

	c, err := s.registry.Update(ctx, id, firstName, lastName, email)
	if err != nil {
		return nil, err
	}
	s.log.Info("customer updated", zap.Int64("customer_id", c.ID))
	return c, nil
}

// DeleteCustomer removes the customer together with all of its accounts.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(customerKey(id))
	defer unlock()

	if err := s.registry.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("customer deleted", zap.Int64("customer_id", id))
	return nil
}

// OpenAccount opens a zero-balance account for an existing customer and
// stores the account and the customer's updated account list together.
func (s *Service) OpenAccount(ctx context.Context, customerID int64, t models.AccountType) (*models.Account, error) {
	unlock := s.locks.Lock(customerKey(customerID))
	defer unlock()

	var opened *models.Account
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		c, err := tx.FindCustomerByID(ctx, customerID)
		if err != nil {
			return err
		}
		account, err := ledger.Open(c, t)
		if err != nil {
			return err
		}
		opened, err = tx.SaveAccount(ctx, account)
		if err != nil {
			return err
		}
		_, err = tx.SaveCustomer(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account opened",
		zap.Int64("customer_id", customerID),
		zap.String("account_number", opened.Number),
		zap.String("account_type", string(opened.Type)))
	return opened, nil
}

// Deposit adds a positive amount to the account identified by number.
func (s *Service) Deposit(ctx context.Context, number string, amount float64) (*models.Account, error) {
	unlock := s.locks.Lock(accountKey(number))
	defer unlock()

	var updated *models.Account
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		account, err := tx.FindAccountByNumber(ctx, number)
		if err != nil {
			return err
		}
		if _, err := ledger.Deposit(account, amount); err != nil {
			return err
		}
		updated, err = tx.SaveAccount(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit applied",
		zap.String("account_number", number),
		zap.Float64("amount", amount),
		zap.Float64("balance", updated.Balance))
	return updated, nil
}

// Withdraw takes amount out of the account when its type allows it. A
// declined withdrawal fails with models.ErrInsufficientFunds and changes
// nothing.
func (s *Service) Withdraw(ctx context.Context, number string, amount float64) (*models.Account, error) {
	unlock := s.locks.Lock(accountKey(number))
	defer unlock()

	var updated *models.Account
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		account, err := tx.FindAccountByNumber(ctx, number)
		if err != nil {
			return err
		}
		_, accepted, err := ledger.Withdraw(account, amount)
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("%w: %s account %s has balance %.2f, floor is %.2f",
				models.ErrInsufficientFunds, account.Type, number, account.Balance, ledger.Floor(account.Type))
		}
		updated, err = tx.SaveAccount(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal applied",
		zap.String("account_number", number),
		zap.Float64("amount", amount),
		zap.Float64("balance", updated.Balance))
	return updated, nil
}

// Balance returns the current balance of the account identified by number.
func (s *Service) Balance(ctx context.Context, number string) (float64, error) {
	account, err := s.store.FindAccountByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	return ledger.BalanceOf(account), nil
}

// CustomerAccounts lists the accounts owned by a customer.
func (s *Service) CustomerAccounts(ctx context.Context, customerID int64) ([]*models.Account, error) {
	if _, err := s.registry.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.FindAccountsByCustomerID(ctx, customerID)
}

// PositiveBalanceAccounts lists the customer's accounts holding more than zero.
func (s *Service) PositiveBalanceAccounts(ctx context.Context, customerID int64) ([]*models.Account, error) {
	accounts, err := s.CustomerAccounts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	var positive []*models.Account
	for _, a := range accounts {
		if a.Balance > 0 {
			positive = append(positive, a)
		}
	}
	return positive, nil
}

func customerKey(id int64) string {
	return "customer:" + strconv.FormatInt(id, 10)
}

func accountKey(number string) string {
	return "account:" + number
}
