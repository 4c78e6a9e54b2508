package bank

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-bankledger/models"
	"go-bankledger/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewService(s, zaptest.NewLogger(t)), s
}

func registerAna(t *testing.T, svc *Service) *models.Customer {
	t.Helper()
	c, err := svc.RegisterCustomer(context.Background(), "Ana", "Lopez", "12345678A", "ana@example.com")
	require.NoError(t, err)
	return c
}

func TestSavingsAccountScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)

	a, err := svc.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Balance)

	_, err = svc.Deposit(ctx, a.Number, 100)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, a.Number, 150)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	balance, err := svc.Balance(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	_, err = svc.Withdraw(ctx, a.Number, 100)
	require.NoError(t, err)
	balance, err = svc.Balance(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestCheckingAccountScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)

	a, err := svc.OpenAccount(ctx, c.ID, models.Checking)
	require.NoError(t, err)

	got, err := svc.Withdraw(ctx, a.Number, 400)
	require.NoError(t, err)
	assert.Equal(t, -400.0, got.Balance)

	_, err = svc.Withdraw(ctx, a.Number, 200)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	got, err = svc.Deposit(ctx, a.Number, 600)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.Balance)
}

func TestOpenAccountLinksCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)

	first, err := svc.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)
	second, err := svc.OpenAccount(ctx, c.ID, models.Checking)
	require.NoError(t, err)
	assert.NotEqual(t, first.Number, second.Number)

	owner, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Number, second.Number}, owner.AccountNumbers)

	accounts, err := svc.CustomerAccounts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, c.ID, accounts[0].CustomerID)
}

func TestOpenAccountErrors(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	_, err := svc.OpenAccount(ctx, 404, models.Savings)
	require.ErrorIs(t, err, models.ErrNotFound)

	c := registerAna(t, svc)
	_, err = svc.OpenAccount(ctx, c.ID, models.AccountType("GOLD"))
	require.ErrorIs(t, err, models.ErrValidation)

	accounts, err := s.FindAccountsByCustomerID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, "missing", 10)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.Withdraw(ctx, "missing", 10)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.Balance(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestInvalidAmountsChangeNothing(t *testing.T) {
	amounts := []float64{0, -10, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, typ := range []models.AccountType{models.Savings, models.Checking} {
		t.Run(string(typ), func(t *testing.T) {
			svc, s := newTestService(t)
			ctx := context.Background()
			c := registerAna(t, svc)
			a, err := svc.OpenAccount(ctx, c.ID, typ)
			require.NoError(t, err)
			_, err = svc.Deposit(ctx, a.Number, 50)
			require.NoError(t, err)

			for _, amount := range amounts {
				_, err = svc.Deposit(ctx, a.Number, amount)
				require.ErrorIs(t, err, models.ErrValidation, "deposit %v", amount)
				_, err = svc.Withdraw(ctx, a.Number, amount)
				require.ErrorIs(t, err, models.ErrValidation, "withdraw %v", amount)
			}
			balance, err := svc.Balance(ctx, a.Number)
			require.NoError(t, err)
			assert.Equal(t, 50.0, balance)

			// the data stays serializable
			require.NoError(t, store.SaveSnapshot(filepath.Join(t.TempDir(), "bank.json"), s.Snapshot()))
		})
	}
}

func TestDuplicateDNIScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerAna(t, svc)

	_, err := svc.RegisterCustomer(ctx, "Eva", "Diaz", "12345678A", "eva@example.com")
	require.ErrorIs(t, err, models.ErrDuplicateIdentifier)

	_, err = svc.RegisterCustomer(ctx, "Eva", "Diaz", "87654321B", "ana@example.com")
	require.ErrorIs(t, err, models.ErrDuplicateIdentifier)

	found, err := svc.GetCustomerByDNI(ctx, "12345678A")
	require.NoError(t, err)
	assert.Equal(t, "Ana", found.FirstName)
}

func TestUpdateCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)

	updated, err := svc.UpdateCustomer(ctx, c.ID, "Ana Maria", "Lopez", "anamaria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.FirstName)
	assert.Equal(t, "12345678A", updated.DNI)

	_, err = svc.UpdateCustomer(ctx, c.ID, "Ana", "Lopez", "not-an-email")
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.UpdateCustomer(ctx, 99, "Ana", "Lopez", "ana@example.com")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteCustomerRemovesAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)
	a, err := svc.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))

	_, err = svc.GetCustomer(ctx, c.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.Balance(ctx, a.Number)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, svc.DeleteCustomer(ctx, c.ID), models.ErrNotFound)

	// the DNI is free again
	_, err = svc.RegisterCustomer(ctx, "Ana", "Lopez", "12345678A", "ana@example.com")
	require.NoError(t, err)
}

func TestPositiveBalanceAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)

	rich, err := svc.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)
	_, err = svc.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)
	overdrawn, err := svc.OpenAccount(ctx, c.ID, models.Checking)
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, rich.Number, 10)
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, overdrawn.Number, 10)
	require.NoError(t, err)

	positive, err := svc.PositiveBalanceAccounts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, positive, 1)
	assert.Equal(t, rich.Number, positive[0].Number)

	_, err = svc.PositiveBalanceAccounts(ctx, 404)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentWritesOnOneAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)
	a, err := svc.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, a.Number, 100)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Deposit(ctx, a.Number, 1)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.Withdraw(ctx, a.Number, 3); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, models.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, 100.0+50-3*float64(accepted), balance)
	assert.GreaterOrEqual(t, balance, 0.0)
}

func TestConcurrentOpenKeepsEveryAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := registerAna(t, svc)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.OpenAccount(ctx, c.ID, models.Checking)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	owner, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, owner.AccountNumbers, 20)
}

// failingStore fails every account write, inside transactions too.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) SaveAccount(context.Context, *models.Account) (*models.Account, error) {
	return nil, f.err
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx store.Store) error {
		return fn(&failingStore{Store: tx, err: f.err})
	})
}

func TestPersistenceFailureIsReturnedUnchanged(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	ok := NewService(mem, zaptest.NewLogger(t))
	c := registerAna(t, ok)
	a, err := ok.OpenAccount(ctx, c.ID, models.Savings)
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	svc := NewService(&failingStore{Store: mem, err: diskFull}, zaptest.NewLogger(t))

	_, err = svc.Deposit(ctx, a.Number, 10)
	require.ErrorIs(t, err, diskFull)
	_, err = svc.OpenAccount(ctx, c.ID, models.Checking)
	require.ErrorIs(t, err, diskFull)

	owner, err := mem.FindCustomerByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Number}, owner.AccountNumbers)
	balance, err := ok.Balance(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}
