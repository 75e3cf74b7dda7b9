package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockSleeper struct {
	slept []time.Duration
}

func (m *mockSleeper) Sleep(_ context.Context, d time.Duration) {
	m.slept = append(m.slept, d)
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func writeToken(w http.ResponseWriter, token string, expiresIn int64) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: expiresIn})
}

func TestFetchCachedTokenCachesUntilExpiryMinusMargin(t *testing.T) {
	var calls int64
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("unexpected form error: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "client" || r.Form.Get("client_secret") != "secret" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			writeToken(w, "first", 3600)
			return
		}
		writeToken(w, "second", 3600)
	})

	clock := newFakeClock()
	g := NewTokenGatewayHttp(server.Client(), server.URL, "client", "secret", clock, &mockSleeper{}, zap.NewNop())

	token, err := g.FetchCachedToken(context.Background())
	if err != nil || token != "first" {
		t.Fatalf("expected first token, got %q / %v", token, err)
	}

	clock.Advance(3600*time.Second - tokenSafetyMargin - time.Second)
	token, _ = g.FetchCachedToken(context.Background())
	if token != "first" {
		t.Fatalf("expected cached token before expiry, got %q", token)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}

	clock.Advance(time.Second)
	token, _ = g.FetchCachedToken(context.Background())
	if token != "second" {
		t.Fatalf("expected a refreshed token once the safety margin is reached, got %q", token)
	}
}

func TestFetchCachedTokenRetriesServerErrors(t *testing.T) {
	var calls int64
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeToken(w, "eventually", 3600)
	})

	sleeper := &mockSleeper{}
	g := NewTokenGatewayHttp(server.Client(), server.URL, "client", "secret", newFakeClock(), sleeper, zap.NewNop())

	token, err := g.FetchCachedToken(context.Background())
	if err != nil || token != "eventually" {
		t.Fatalf("expected token after retries, got %q / %v", token, err)
	}
	if len(sleeper.slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(sleeper.slept))
	}
	if sleeper.slept[1] != 2*sleeper.slept[0] {
		t.Fatalf("expected exponential backoff, got %v", sleeper.slept)
	}
}

func TestFetchCachedTokenWaitsOutThrottling(t *testing.T) {
	var calls int64
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt64(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeToken(w, "after-throttle", 3600)
		}
	})

	sleeper := &mockSleeper{}
	g := NewTokenGatewayHttp(server.Client(), server.URL, "client", "secret", newFakeClock(), sleeper, zap.NewNop())

	token, err := g.FetchCachedToken(context.Background())
	if err != nil || token != "after-throttle" {
		t.Fatalf("expected token after throttling, got %q / %v", token, err)
	}
	expected := []time.Duration{7 * time.Second, 2 * BASE_DELAY}
	if len(sleeper.slept) != len(expected) {
		t.Fatalf("expected sleeps %v, got %v", expected, sleeper.slept)
	}
	for i, d := range expected {
		if sleeper.slept[i] != d {
			t.Fatalf("expected sleeps %v, got %v", expected, sleeper.slept)
		}
	}
}

func TestFetchCachedTokenFailsWithoutRetryOnClientError(t *testing.T) {
	var calls int64
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	sleeper := &mockSleeper{}
	g := NewTokenGatewayHttp(server.Client(), server.URL, "client", "wrong", newFakeClock(), sleeper, zap.NewNop())

	_, err := g.FetchCachedToken(context.Background())
	if !errors.Is(err, ErrTokenFetch) {
		t.Fatalf("expected ErrTokenFetch, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 1 || len(sleeper.slept) != 0 {
		t.Fatalf("expected a single attempt without backoff, got %d calls and %d sleeps", calls, len(sleeper.slept))
	}
}

func TestFetchCachedTokenGivesUpAfterMaxRetries(t *testing.T) {
	var calls int64
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	g := NewTokenGatewayHttp(server.Client(), server.URL, "client", "secret", newFakeClock(), &mockSleeper{}, zap.NewNop())

	if _, err := g.FetchCachedToken(context.Background()); !errors.Is(err, ErrTokenFetch) {
		t.Fatalf("expected ErrTokenFetch, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != int64(MAX_RETRIES) {
		t.Fatalf("expected %d attempts, got %d", MAX_RETRIES, got)
	}
}
