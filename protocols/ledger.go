package protocols

import "github.com/radlee/payments-api/domain/account"

type Ledger interface {
	account.Repository
}
