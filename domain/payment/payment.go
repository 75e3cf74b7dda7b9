package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request is a single payment attempt as submitted by the caller.
type Request struct {
	AccountNumber        string          `json:"accountNumber" validate:"notblank"`
	Amount               decimal.Decimal `json:"amount" validate:"positive"`
	TransactionReference string          `json:"transactionReference" validate:"notblank"`
	Currency             string          `json:"currency" validate:"notblank"`
}

type Transaction struct {
	AccountNumber        string          `json:"accountNumber"`
	TransactionReference string          `json:"transactionReference"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	NewBalance           decimal.Decimal `json:"newBalance"`
	TransactionTime      time.Time       `json:"transactionTime"`
}

type AccountHolder struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// Receipt is returned for a committed payment.
type Receipt struct {
	Transaction   Transaction   `json:"transaction"`
	AccountHolder AccountHolder `json:"accountHolder"`
}

// AccountView is the read-only snapshot served by the account lookup.
type AccountView struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Name          string          `json:"name"`
	Surname       string          `json:"surname"`
	Currency      string          `json:"currency"`
}

// CompletedEvent is published once a debit has been committed.
type CompletedEvent struct {
	EventID              string    `json:"eventId" bson:"_id"`
	AccountNumber        string    `json:"accountNumber" bson:"accountNumber"`
	TransactionReference string    `json:"transactionReference" bson:"transactionReference"`
	Amount               string    `json:"amount" bson:"amount"`
	Currency             string    `json:"currency" bson:"currency"`
	NewBalance           string    `json:"newBalance" bson:"newBalance"`
	TransactionTime      time.Time `json:"transactionTime" bson:"transactionTime"`
}

func NewCompletedEvent(id string, receipt Receipt) CompletedEvent {
	tx := receipt.Transaction
	return CompletedEvent{
		EventID:              id,
		AccountNumber:        tx.AccountNumber,
		TransactionReference: tx.TransactionReference,
		Amount:               tx.Amount.String(),
		Currency:             tx.Currency,
		NewBalance:           tx.NewBalance.String(),
		TransactionTime:      tx.TransactionTime,
	}
}
