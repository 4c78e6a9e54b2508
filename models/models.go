package models

import (
	"fmt"
	"slices"
	"strings"
)

// AccountType is the closed set of account kinds. It never changes after an
// account is opened.
type AccountType string

const (
	Savings  AccountType = "SAVINGS"
	Checking AccountType = "CHECKING"
)

// ParseAccountType accepts the type name in any case.
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(s))) {
	case Savings:
		return Savings, nil
	case Checking:
		return Checking, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrValidation, s)
}

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return t == Savings || t == Checking
}

// Customer represents a bank customer
type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DNI       string `json:"dni"`
	Email     string `json:"email"`
	// AccountNumbers lists the accounts the customer owns.
	AccountNumbers []string `json:"accountNumbers"`
}

// AddAccountNumber attaches an account handle to the customer. Adding the
// same number twice is a no-op.
func (c *Customer) AddAccountNumber(number string) {
	if slices.Contains(c.AccountNumbers, number) {
		return
	}
	c.AccountNumbers = append(c.AccountNumbers, number)
}

// Clone returns a deep copy so stores never share slices with callers.
func (c *Customer) Clone() *Customer {
	out := *c
	out.AccountNumbers = slices.Clone(c.AccountNumbers)
	return &out
}

func (c *Customer) String() string {
	return fmt.Sprintf("Customer{id=%d, firstName=%q, lastName=%q, dni=%q, email=%q, accounts=%d}",
		c.ID, c.FirstName, c.LastName, c.DNI, c.Email, len(c.AccountNumbers))
}

// Account represents a bank account (Savings or Checking)
type Account struct {
	ID         int64       `json:"id"`
	Number     string      `json:"accountNumber"`
	CustomerID int64       `json:"customerId"`
	Type       AccountType `json:"accountType"`
	Balance    float64     `json:"balance"`
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	out := *a
	return &out
}

func (a *Account) String() string {
	return fmt.Sprintf("Account{id=%d, accountNumber=%q, balance=%.2f, accountType=%s, customerId=%d}",
		a.ID, a.Number, a.Balance, a.Type, a.CustomerID)
}
