package account

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInsufficientFunds    = errors.New("insufficient funds")
)

type Account struct {
	Number   string
	Balance  decimal.Decimal
	Name     string
	Surname  string
	Currency string
}

// PaymentResult summarizes the account after a successful debit.
type PaymentResult struct {
	AccountNumber string
	NewBalance    decimal.Decimal
}

// Withdraw reduces the balance by amount. The caller must hold the account's lock.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}
