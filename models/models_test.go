package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountType(t *testing.T) {
	tests := []struct {
		in      string
		want    AccountType
		wantErr bool
	}{
		{in: "SAVINGS", want: Savings},
		{in: "checking", want: Checking},
		{in: " Savings ", want: Savings},
		{in: "current", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAccountType(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestCustomerAddAccountNumberIsIdempotent(t *testing.T) {
	c := &Customer{ID: 1}
	c.AddAccountNumber("a")
	c.AddAccountNumber("b")
	c.AddAccountNumber("a")
	assert.Equal(t, []string{"a", "b"}, c.AccountNumbers)
}

func TestCustomerCloneDoesNotShareAccounts(t *testing.T) {
	c := &Customer{ID: 1, AccountNumbers: []string{"a"}}
	cp := c.Clone()
	cp.AddAccountNumber("b")
	assert.Equal(t, []string{"a"}, c.AccountNumbers)
	assert.Equal(t, []string{"a", "b"}, cp.AccountNumbers)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "", Kind(errors.New("boom")))
	assert.Equal(t, "ValidationError", Kind(fmt.Errorf("%w: first name is required", ErrValidation)))
	assert.Equal(t, "DuplicateIdentifier", Kind(fmt.Errorf("%w: dni", ErrDuplicateIdentifier)))
	assert.Equal(t, "NotFound", Kind(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, "InsufficientFunds", Kind(ErrInsufficientFunds))
}
