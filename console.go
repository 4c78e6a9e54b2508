package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"go-bankledger/bank"
	"go-bankledger/models"
)

const menu = `
1. Register Customer
2. Open Bank Account
3. Deposit Money
4. Withdraw Money
5. Check Balance
6. Exit
7. Find Customer by DNI
8. Update Customer
9. Delete Customer
10. List Customer Accounts
Choose an option: `

const optionExit = 6

// errInputClosed ends the menu loop when stdin runs out mid-command.
var errInputClosed = errors.New("input closed")

type command struct {
	run func(ctx context.Context) error
	// mutates marks commands after which the data is persisted.
	mutates bool
}

// console is the interactive menu in front of a bank.Service.
type console struct {
	svc      *bank.Service
	in       *bufio.Scanner
	out      io.Writer
	log      *zap.Logger
	persist  func() error
	commands map[int]command
}

func newConsole(svc *bank.Service, in io.Reader, out io.Writer, log *zap.Logger, persist func() error) *console {
	if persist == nil {
		persist = func() error { return nil }
	}
	c := &console{
		svc:     svc,
		in:      bufio.NewScanner(in),
		out:     out,
		log:     log.Named("console"),
		persist: persist,
	}
	c.commands = map[int]command{
		1:  {c.registerCustomer, true},
		2:  {c.openAccount, true},
		3:  {c.deposit, true},
		4:  {c.withdraw, true},
		5:  {c.checkBalance, false},
		7:  {c.findCustomer, false},
		8:  {c.updateCustomer, true},
		9:  {c.deleteCustomer, true},
		10: {c.listAccounts, false},
	}
	return c
}

// run shows the menu until the user exits, input ends or ctx is done.
func (c *console) run(ctx context.Context) error {
	for ctx.Err() == nil {
		fmt.Fprint(c.out, menu)
		line, err := c.readLine()
		if err != nil {
			if errors.Is(err, errInputClosed) {
				return nil
			}
			return err
		}

		choice, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(c.out, "Invalid option. Try again.")
			continue
		}
		if choice == optionExit {
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		}
		cmd, ok := c.commands[choice]
		if !ok {
			fmt.Fprintln(c.out, "Invalid option. Try again.")
			continue
		}

		if err := cmd.run(ctx); err != nil {
			if errors.Is(err, errInputClosed) {
				return nil
			}
			c.fail(err)
			continue
		}
		if cmd.mutates {
			if err := c.persist(); err != nil {
				c.log.Error("saving data failed", zap.Error(err))
				fmt.Fprintf(c.out, "Error: could not save data: %v\n", err)
			}
		}
	}
	return ctx.Err()
}

func (c *console) fail(err error) {
	if kind := models.Kind(err); kind != "" {
		c.log.Warn("command rejected", zap.String("kind", kind), zap.Error(err))
	} else {
		c.log.Error("command failed", zap.Error(err))
	}
	fmt.Fprintf(c.out, "Error: %v\n", err)
}

func (c *console) registerCustomer(ctx context.Context) error {
	first, err := c.prompt("Enter first name: ")
	if err != nil {
		return err
	}
	last, err := c.prompt("Enter last name: ")
	if err != nil {
		return err
	}
	dni, err := c.prompt("Enter DNI: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("Enter email: ")
	if err != nil {
		return err
	}

	customer, err := c.svc.RegisterCustomer(ctx, first, last, dni, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Customer registered successfully:", customer)
	return nil
}

func (c *console) openAccount(ctx context.Context) error {
	id, err := c.promptID("Enter customer ID: ")
	if err != nil {
		return err
	}
	customer, err := c.svc.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Customer found:", customer)

	choice, err := c.prompt("Enter account type (1 for SAVINGS, 2 for CHECKING): ")
	if err != nil {
		return err
	}
	var t models.AccountType
	switch choice {
	case "1":
		t = models.Savings
	case "2":
		t = models.Checking
	default:
		if t, err = models.ParseAccountType(choice); err != nil {
			return err
		}
	}

	account, err := c.svc.OpenAccount(ctx, id, t)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Bank account opened successfully:", account)
	return nil
}

func (c *console) deposit(ctx context.Context) error {
	number, amount, err := c.promptTransfer("deposit")
	if err != nil {
		return err
	}
	account, err := c.svc.Deposit(ctx, number, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deposit successful. New balance: %.2f\n", account.Balance)
	return nil
}

func (c *console) withdraw(ctx context.Context) error {
	number, amount, err := c.promptTransfer("withdraw")
	if err != nil {
		return err
	}
	account, err := c.svc.Withdraw(ctx, number, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Withdrawal successful. New balance: %.2f\n", account.Balance)
	return nil
}

func (c *console) checkBalance(ctx context.Context) error {
	number, err := c.prompt("Enter account number: ")
	if err != nil {
		return err
	}
	balance, err := c.svc.Balance(ctx, number)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Current balance: %.2f\n", balance)
	return nil
}

func (c *console) findCustomer(ctx context.Context) error {
	dni, err := c.prompt("Enter DNI: ")
	if err != nil {
		return err
	}
	customer, err := c.svc.GetCustomerByDNI(ctx, dni)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Customer found:", customer)
	return nil
}

func (c *console) updateCustomer(ctx context.Context) error {
	id, err := c.promptID("Enter customer ID: ")
	if err != nil {
		return err
	}
	first, err := c.prompt("Enter new first name: ")
	if err != nil {
		return err
	}
	last, err := c.prompt("Enter new last name: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("Enter new email: ")
	if err != nil {
		return err
	}

	customer, err := c.svc.UpdateCustomer(ctx, id, first, last, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Customer updated successfully:", customer)
	return nil
}

func (c *console) deleteCustomer(ctx context.Context) error {
	id, err := c.promptID("Enter customer ID: ")
	if err != nil {
		return err
	}
	if err := c.svc.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Customer %d and all of its accounts deleted.\n", id)
	return nil
}

func (c *console) listAccounts(ctx context.Context) error {
	id, err := c.promptID("Enter customer ID: ")
	if err != nil {
		return err
	}
	onlyPositive, err := c.prompt("Only accounts with positive balance? (y/N): ")
	if err != nil {
		return err
	}

	var accounts []*models.Account
	if strings.EqualFold(onlyPositive, "y") {
		accounts, err = c.svc.PositiveBalanceAccounts(ctx, id)
	} else {
		accounts, err = c.svc.CustomerAccounts(ctx, id)
	}
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(c.out, "No accounts.")
		return nil
	}
	for _, a := range accounts {
		fmt.Fprintln(c.out, a)
	}
	return nil
}

func (c *console) promptTransfer(verb string) (string, float64, error) {
	number, err := c.prompt("Enter account number: ")
	if err != nil {
		return "", 0, err
	}
	raw, err := c.prompt("Enter amount to " + verb + ": ")
	if err != nil {
		return "", 0, err
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: amount %q is not a number", models.ErrValidation, raw)
	}
	return number, amount, nil
}

func (c *console) promptID(label string) (int64, error) {
	raw, err := c.prompt(label)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: customer ID %q is not a number", models.ErrValidation, raw)
	}
	return id, nil
}

func (c *console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	return c.readLine()
}

func (c *console) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(c.in.Text()), nil
}
