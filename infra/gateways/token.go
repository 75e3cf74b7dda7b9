package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radlee/payments-api/infra"
	"github.com/radlee/payments-api/protocols"
)

var ErrTokenFetch = errors.New("unable to fetch auth token")

var (
	MAX_RETRIES = 3
	BASE_DELAY  = 500 * time.Millisecond
)

// tokenSafetyMargin is subtracted from the declared lifetime so a cached
// token is never presented right as it expires.
const tokenSafetyMargin = 60 * time.Second

type TokenGatewayHttp struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	clock        protocols.Clock
	sleeper      protocols.Sleeper
	logger       *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenGatewayHttp(
	httpClient *http.Client,
	tokenURL, clientID, clientSecret string,
	clock protocols.Clock,
	sleeper protocols.Sleeper,
	logger *zap.Logger,
) *TokenGatewayHttp {
	return &TokenGatewayHttp{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		clock:        clock,
		sleeper:      sleeper,
		logger:       logger,
	}
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// FetchCachedToken returns the cached token while it is valid and fetches a new one otherwise.
func (g *TokenGatewayHttp) FetchCachedToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && g.clock.Now().Before(g.expiresAt) {
		return g.token, nil
	}

	resp, err := RetryWithBackoff(ctx, func() (*TokenResponse, error) {
		return g.fetch(ctx)
	}, g.sleeper, g.logger)
	if err != nil {
		g.logger.Error("Error fetching token", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}

	g.token = resp.AccessToken
	g.expiresAt = g.clock.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSafetyMargin)
	return g.token, nil
}

func (g *TokenGatewayHttp) fetch(ctx context.Context) (*TokenResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, infra.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, infra.NewThrottledError("token endpoint returned 429", resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, infra.NewTimeoutError("timeout fetching token")
	}
	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return nil, infra.NewNetworkError(fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("token endpoint returned an empty access token")
	}
	return &token, nil
}

type RetryFunc[T any] func() (T, error)

// RetryWithBackoff retries retriable failures with exponential backoff,
// waiting longer when a throttled upstream asks for it.
func RetryWithBackoff[T any](ctx context.Context, operation RetryFunc[T], sleeper protocols.Sleeper, logger *zap.Logger) (T, error) {
	var zero T
	var lastError error

	for i := 0; i < MAX_RETRIES; i++ {
		val, err := operation()
		if err == nil {
			return val, nil
		}
		lastError = err
		if !infra.IsRetriable(err) || i == MAX_RETRIES-1 {
			break
		}

		delay := time.Duration(math.Pow(2, float64(i))) * BASE_DELAY
		if retryAfter, ok := infra.RetryAfter(err); ok && retryAfter > delay {
			delay = retryAfter
		}
		logger.Warn("Retrying operation", zap.Duration("delay", delay), zap.Int("attempt", i+1), zap.Error(err))
		sleeper.Sleep(ctx, delay)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, lastError
}
