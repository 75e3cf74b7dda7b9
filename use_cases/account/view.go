package account

import (
	"errors"
	"strings"

	"github.com/radlee/payments-api/domain/account"
	"github.com/radlee/payments-api/domain/payment"
	"github.com/radlee/payments-api/protocols"
)

type View struct {
	ledger protocols.Ledger
}

func NewView(ledger protocols.Ledger) *View {
	return &View{ledger: ledger}
}

// ViewAccount is a read-only lookup with no idempotency or rate-limit coupling.
func (v *View) ViewAccount(accountNumber string) (*payment.AccountView, error) {
	if strings.TrimSpace(accountNumber) == "" {
		return nil, payment.NewValidationError([]string{"accountNumber is required"})
	}
	acc, err := v.ledger.GetAccount(accountNumber)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, payment.NewNotFoundError(accountNumber, err)
		}
		return nil, payment.NewInternalError(err)
	}
	return &payment.AccountView{
		AccountNumber: acc.Number,
		Balance:       acc.Balance,
		Name:          acc.Name,
		Surname:       acc.Surname,
		Currency:      acc.Currency,
	}, nil
}
