// Package postgres is the PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"go-bankledger/models"
	"go-bankledger/store"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// Open connects to dbURL and checks the connection.
func Open(ctx context.Context, dbURL string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info("connected to postgres", zap.String("database", pool.Config().ConnConfig.Database))
	return New(pool), nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) SaveCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	saved := c.Clone()
	if c.ID == 0 {
		err := s.q.QueryRow(ctx, `
			INSERT INTO customers (first_name, last_name, dni, email)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			c.FirstName, c.LastName, c.DNI, c.Email,
		).Scan(&saved.ID)
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("insert customer %q", c.DNI))
		}
	} else {
		err := s.q.QueryRow(ctx, `
			UPDATE customers SET first_name = $2, last_name = $3, email = $4
			WHERE id = $1
			RETURNING dni`,
			c.ID, c.FirstName, c.LastName, c.Email,
		).Scan(&saved.DNI)
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("customer %d", c.ID))
		}
	}

	numbers, err := s.accountNumbers(ctx, saved.ID)
	if err != nil {
		return nil, err
	}
	saved.AccountNumbers = numbers
	return saved, nil
}

func (s *Store) FindCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	return s.findCustomer(ctx, fmt.Sprintf("customer %d", id), "id = $1", id)
}

func (s *Store) FindCustomerByDNI(ctx context.Context, dni string) (*models.Customer, error) {
	return s.findCustomer(ctx, fmt.Sprintf("customer with DNI %q", dni), "dni = $1", dni)
}

func (s *Store) findCustomer(ctx context.Context, what, where string, arg any) (*models.Customer, error) {
	var c models.Customer
	err := s.q.QueryRow(ctx,
		"SELECT id, first_name, last_name, dni, email FROM customers WHERE "+where, arg,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.DNI, &c.Email)
	if err != nil {
		return nil, mapError(err, what)
	}
	if c.AccountNumbers, err = s.accountNumbers(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ExistsCustomerWithEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM customers WHERE lower(email) = lower($1))", email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// DeleteCustomerByID deletes the customer's accounts and then the customer in
// one transaction.
func (s *Store) DeleteCustomerByID(ctx context.Context, id int64) error {
	if !s.inTx {
		return s.WithinTx(ctx, func(tx store.Store) error {
			return tx.DeleteCustomerByID(ctx, id)
		})
	}
	if _, err := s.q.Exec(ctx, "DELETE FROM accounts WHERE customer_id = $1", id); err != nil {
		return fmt.Errorf("delete accounts of customer %d: %w", id, err)
	}
	tag, err := s.q.Exec(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	saved := a.Clone()
	if a.ID == 0 {
		err := s.q.QueryRow(ctx, `
			INSERT INTO accounts (account_number, customer_id, type, balance)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			a.Number, a.CustomerID, string(a.Type), a.Balance,
		).Scan(&saved.ID)
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("insert account %s for customer %d", a.Number, a.CustomerID))
		}
		return saved, nil
	}

	var typ string
	err := s.q.QueryRow(ctx, `
		UPDATE accounts SET balance = $3
		WHERE id = $1 AND account_number = $2
		RETURNING customer_id, type`,
		a.ID, a.Number, a.Balance,
	).Scan(&saved.CustomerID, &typ)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("account %s", a.Number))
	}
	saved.Type = models.AccountType(typ)
	return saved, nil
}

// FindAccountByNumber locks the row when called inside WithinTx.
func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	query := "SELECT id, account_number, customer_id, type, balance FROM accounts WHERE account_number = $1"
	if s.inTx {
		query += " FOR UPDATE"
	}
	a, err := scanAccount(s.q.QueryRow(ctx, query, number))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("account %s", number))
	}
	return a, nil
}

func (s *Store) FindAccountsByCustomerID(ctx context.Context, customerID int64) ([]*models.Account, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, account_number, customer_id, type, balance
		FROM accounts
		WHERE customer_id = $1
		ORDER BY id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts of customer %d: %w", customerID, err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// WithinTx runs fn inside one database transaction. Nested calls join the
// outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, q: tx, inTx: true})
	})
}

func (s *Store) accountNumbers(ctx context.Context, customerID int64) ([]string, error) {
	rows, err := s.q.Query(ctx,
		"SELECT account_number FROM accounts WHERE customer_id = $1 ORDER BY id", customerID)
	if err != nil {
		return nil, fmt.Errorf("list account numbers of customer %d: %w", customerID, err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list account numbers of customer %d: %w", customerID, err)
	}
	if len(numbers) == 0 {
		return nil, nil
	}
	return numbers, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a   models.Account
		typ string
	)
	if err := row.Scan(&a.ID, &a.Number, &a.CustomerID, &typ, &a.Balance); err != nil {
		return nil, err
	}
	a.Type = models.AccountType(typ)
	return &a, nil
}

// mapError turns driver errors into the models error kinds where one applies.
func mapError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s violates %s", models.ErrDuplicateIdentifier, what, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%s: owner: %w", what, models.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

var _ store.Store = (*Store)(nil)
