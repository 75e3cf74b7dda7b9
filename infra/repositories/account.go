package repositories

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radlee/payments-api/domain/account"
)

type accountEntry struct {
	mu      sync.Mutex
	account account.Account
}

// AccountRepositoryMemory is the in-memory ledger. Debits against the same
// account are serialized by that account's mutex.
type AccountRepositoryMemory struct {
	mutex    sync.RWMutex
	accounts map[string]*accountEntry
}

func NewAccountRepositoryMemory(seed []account.Account) (*AccountRepositoryMemory, error) {
	r := &AccountRepositoryMemory{accounts: make(map[string]*accountEntry, len(seed))}
	for _, acc := range seed {
		if err := r.Create(acc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *AccountRepositoryMemory) Create(acc account.Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.accounts[acc.Number]; exists {
		return account.ErrAccountAlreadyExists
	}
	r.accounts[acc.Number] = &accountEntry{account: acc}
	return nil
}

func (r *AccountRepositoryMemory) entry(accountNumber string) (*accountEntry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	e, ok := r.accounts[accountNumber]
	return e, ok
}

func (r *AccountRepositoryMemory) GetAccount(accountNumber string) (*account.Account, error) {
	e, ok := r.entry(accountNumber)
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	e.mu.Lock()
	snapshot := e.account
	e.mu.Unlock()
	return &snapshot, nil
}

func (r *AccountRepositoryMemory) Debit(accountNumber string, amount decimal.Decimal) (*account.PaymentResult, error) {
	if !amount.IsPositive() {
		return nil, account.ErrInvalidAmount
	}
	e, ok := r.entry(accountNumber)
	if !ok {
		return nil, account.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.account.Withdraw(amount); err != nil {
		return nil, err
	}
	return &account.PaymentResult{
		AccountNumber: accountNumber,
		NewBalance:    e.account.Balance,
	}, nil
}
