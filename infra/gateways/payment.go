package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/radlee/payments-api/domain/payment"
	"github.com/radlee/payments-api/infra/requestid"
	"github.com/radlee/payments-api/infra/tracing"
	"github.com/radlee/payments-api/protocols"
)

// PaymentGatewayHttp is the client side of the payments API.
type PaymentGatewayHttp struct {
	httpClient *http.Client
	baseURL    string
	tokens     protocols.TokenSource
}

func NewPaymentGatewayHttp(httpClient *http.Client, baseURL string, tokens protocols.TokenSource) *PaymentGatewayHttp {
	return &PaymentGatewayHttp{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
	}
}

// APIResponse is an envelope whose data is left undecoded.
type APIResponse struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Meta       payment.Meta    `json:"meta"`
}

// APIError is returned when the API answers with an error envelope.
type APIError struct {
	Response *APIResponse
	Data     payment.ErrorData
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Data.Kind, e.Response.StatusCode, e.Response.Message)
}

func (p *PaymentGatewayHttp) MakePayment(ctx context.Context, req payment.Request) (*payment.Receipt, *APIResponse, error) {
	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.do(ctx, http.MethodPost, "/api/pay", payloadBytes)
	if err != nil {
		return nil, resp, err
	}
	var receipt payment.Receipt
	if err := json.Unmarshal(resp.Data, &receipt); err != nil {
		return nil, resp, fmt.Errorf("decode receipt: %w", err)
	}
	return &receipt, resp, nil
}

func (p *PaymentGatewayHttp) ViewAccount(ctx context.Context, accountNumber string) (*payment.AccountView, *APIResponse, error) {
	resp, err := p.do(ctx, http.MethodGet, "/api/account/"+url.PathEscape(accountNumber), nil)
	if err != nil {
		return nil, resp, err
	}
	var view payment.AccountView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		return nil, resp, fmt.Errorf("decode account: %w", err)
	}
	return &view, resp, nil
}

func (p *PaymentGatewayHttp) do(ctx context.Context, method, path string, body []byte) (*APIResponse, error) {
	token, err := p.tokens.FetchCachedToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	tracing.Inject(ctx, req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if apiResp.Status != payment.StatusSuccess {
		apiErr := &APIError{Response: &apiResp}
		_ = json.Unmarshal(apiResp.Data, &apiErr.Data)
		return &apiResp, apiErr
	}
	return &apiResp, nil
}
