package repositories

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radlee/payments-api/domain/account"
)

func newRepository(t *testing.T) *AccountRepositoryMemory {
	t.Helper()
	repo, err := NewAccountRepositoryMemory(account.Seed("ZAR"))
	if err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}
	return repo
}

func TestGetAccount(t *testing.T) {
	repo := newRepository(t)

	acc, err := repo.GetAccount("123456")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if acc.Name != "John" || acc.Surname != "Doe" || !acc.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected account: %+v", acc)
	}

	acc.Balance = decimal.Zero
	again, _ := repo.GetAccount("123456")
	if !again.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected GetAccount to return a copy, ledger balance changed to %s", again.Balance)
	}

	if _, err := repo.GetAccount("000000"); !errors.Is(err, account.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	repo := newRepository(t)
	err := repo.Create(account.Account{Number: "123456"})
	if !errors.Is(err, account.ErrAccountAlreadyExists) {
		t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
	}
}

func TestDebit(t *testing.T) {
	repo := newRepository(t)

	result, err := repo.Debit("123456", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.AccountNumber != "123456" || !result.NewBalance.Equal(decimal.NewFromInt(4500)) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDebitFailures(t *testing.T) {
	repo := newRepository(t)

	testCases := []struct {
		name    string
		account string
		amount  decimal.Decimal
		want    error
	}{
		{"unknown account", "000000", decimal.NewFromInt(1), account.ErrAccountNotFound},
		{"zero amount", "123456", decimal.Zero, account.ErrInvalidAmount},
		{"negative amount", "123456", decimal.NewFromInt(-10), account.ErrInvalidAmount},
		{"insufficient funds", "123456", decimal.NewFromInt(5001), account.ErrInsufficientFunds},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := repo.Debit(tc.account, tc.amount)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if result != nil {
				t.Fatalf("expected no result on failure, got %+v", result)
			}
		})
	}

	acc, _ := repo.GetAccount("123456")
	if !acc.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected failed debits to leave balance at 5000, got %s", acc.Balance)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := newRepository(t)

	const workers = 120
	var successes int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := repo.Debit("123456", decimal.NewFromInt(100)); err == nil {
				atomic.AddInt64(&successes, 1)
			} else if !errors.Is(err, account.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 50 {
		t.Fatalf("expected exactly 50 successful debits, got %d", successes)
	}
	acc, _ := repo.GetAccount("123456")
	if !acc.Balance.IsZero() {
		t.Fatalf("expected balance 0, got %s", acc.Balance)
	}
}

func TestBalanceConservation(t *testing.T) {
	repo := newRepository(t)
	amounts := []string{"10.25", "99.75", "1000", "0.01"}
	total := decimal.Zero
	for _, a := range amounts {
		amount := decimal.RequireFromString(a)
		if _, err := repo.Debit("654321", amount); err != nil {
			t.Fatalf("unexpected error debiting %s: %v", a, err)
		}
		total = total.Add(amount)
	}
	acc, _ := repo.GetAccount("654321")
	want := decimal.NewFromInt(10000).Sub(total)
	if !acc.Balance.Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, acc.Balance)
	}
}
