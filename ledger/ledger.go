// Package ledger holds the balance rules for accounts. Functions here work on
// in-memory values only; callers persist the result.
package ledger

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"go-bankledger/models"
)

// OverdraftFloor is the lowest balance a checking account may reach through
// a withdrawal.
const OverdraftFloor = -500.0

// NewAccountNumber returns a random account handle. Tests may replace it.
var NewAccountNumber = func() string {
	return uuid.New().String()
}

// Open creates a zero-balance account of type t for c and links both sides:
// the number is added to the customer's accounts and the account records the
// customer's id.
func Open(c *models.Customer, t models.AccountType) (*models.Account, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", models.ErrValidation, t)
	}
	account := &models.Account{
		Number:     NewAccountNumber(),
		CustomerID: c.ID,
		Type:       t,
		Balance:    0.0,
	}
	c.AddAccountNumber(account.Number)
	return account, nil
}

// Deposit adds amount to the balance. There is no upper bound other than the
// balance staying finite.
func Deposit(a *models.Account, amount float64) (*models.Account, error) {
	if !validAmount(amount) {
		return nil, fmt.Errorf("%w: deposit amount must be a positive finite number", models.ErrValidation)
	}
	balance := a.Balance + amount
	if math.IsInf(balance, 0) {
		return nil, fmt.Errorf("%w: deposit of %g overflows the balance", models.ErrValidation, amount)
	}
	a.Balance = balance
	return a, nil
}

// Withdraw subtracts amount when the account type allows it. A withdrawal
// that would break the floor is not an error: it returns accepted == false
// and leaves the balance as it was.
func Withdraw(a *models.Account, amount float64) (account *models.Account, accepted bool, err error) {
	if !validAmount(amount) {
		return nil, false, fmt.Errorf("%w: withdrawal amount must be a positive finite number", models.ErrValidation)
	}
	projected := a.Balance - amount
	if projected < Floor(a.Type) {
		return a, false, nil
	}
	a.Balance = projected
	return a, true, nil
}

// Floor is the minimum balance allowed for accounts of type t.
func Floor(t models.AccountType) float64 {
	if t == models.Checking {
		return OverdraftFloor
	}
	return 0
}

// BalanceOf reads the balance.
func BalanceOf(a *models.Account) float64 {
	return a.Balance
}

// validAmount rejects zero, negatives, NaN and infinities.
func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0)
}
