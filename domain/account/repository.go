package account

import "github.com/shopspring/decimal"

type Repository interface {
	GetAccount(accountNumber string) (*Account, error)
	Debit(accountNumber string, amount decimal.Decimal) (*PaymentResult, error)
}

// Seed returns the accounts the gateway starts with.
func Seed(currency string) []Account {
	return []Account{
		{Number: "123456", Balance: decimal.NewFromInt(5000), Name: "John", Surname: "Doe", Currency: currency},
		{Number: "654321", Balance: decimal.NewFromInt(10000), Name: "Jane", Surname: "Smith", Currency: currency},
		{Number: "987654", Balance: decimal.NewFromInt(10000), Name: "Fatso 98", Surname: "Lenister", Currency: currency},
	}
}
