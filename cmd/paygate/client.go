package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/payment"
	"github.com/radlee/payments-api/infra/gateways"
)

var (
	baseURL string

	payAccount   string
	payAmount    string
	payReference string
	payCurrency  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Fetch an access token with the configured client credentials",
	RunE:  runToken,
}

var accountCmd = &cobra.Command{
	Use:   "account <accountNumber>",
	Short: "Show an account's balance and holder",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccount,
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Debit an account",
	Long: `Debit an account through the payments API. Reusing --reference replays
the same payment and is rejected once it has succeeded, for as long as the
server's idempotency retention window (default 24h). A replay sent after the
window has passed debits again.`,
	RunE: runPay,
}

func init() {
	for _, cmd := range []*cobra.Command{tokenCmd, accountCmd, payCmd} {
		cmd.Flags().StringVar(&baseURL, "base-url", "", "Payments API base URL (overrides client.base_url)")
	}
	payCmd.Flags().StringVar(&payAccount, "account", "", "Account number to debit")
	payCmd.Flags().StringVar(&payAmount, "amount", "", "Amount to debit")
	payCmd.Flags().StringVar(&payReference, "reference", "", "Transaction reference (generated when empty)")
	payCmd.Flags().StringVar(&payCurrency, "currency", "", "Currency code (defaults to the configured currency)")
	_ = payCmd.MarkFlagRequired("account")
	_ = payCmd.MarkFlagRequired("amount")
}

type clients struct {
	tokens   *gateways.TokenGatewayHttp
	payments *gateways.PaymentGatewayHttp
	currency string
}

func newClients() (*clients, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	url := cfg.Client.BaseURL
	if baseURL != "" {
		url = baseURL
	}
	httpClient := &http.Client{Timeout: cfg.Client.Timeout}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	tokens := gateways.NewTokenGatewayHttp(
		httpClient,
		url+"/auth/token",
		cfg.Client.ClientID,
		cfg.Client.ClientSecret,
		gateways.NewSystemClock(),
		gateways.NewSleeper(),
		logger,
	)
	return &clients{
		tokens:   tokens,
		payments: gateways.NewPaymentGatewayHttp(httpClient, url, tokens),
		currency: cfg.Currency,
	}, nil
}

func runToken(cmd *cobra.Command, args []string) error {
	c, err := newClients()
	if err != nil {
		return err
	}
	token, err := c.tokens.FetchCachedToken(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runAccount(cmd *cobra.Command, args []string) error {
	c, err := newClients()
	if err != nil {
		return err
	}
	view, resp, err := c.payments.ViewAccount(cmd.Context(), args[0])
	if err != nil {
		return printAPIError(resp, err)
	}
	return printJSON(view)
}

func runPay(cmd *cobra.Command, args []string) error {
	c, err := newClients()
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(payAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", payAmount, err)
	}
	reference := payReference
	if reference == "" {
		reference = uuid.NewString()
		fmt.Fprintln(os.Stderr, "transaction reference:", reference)
	}
	currency := payCurrency
	if currency == "" {
		currency = c.currency
	}

	receipt, resp, err := c.payments.MakePayment(cmd.Context(), payment.Request{
		AccountNumber:        payAccount,
		Amount:               amount,
		TransactionReference: reference,
		Currency:             currency,
	})
	if err != nil {
		return printAPIError(resp, err)
	}
	return printJSON(receipt)
}

func printAPIError(resp *gateways.APIResponse, err error) error {
	var apiErr *gateways.APIError
	if errors.As(err, &apiErr) && resp != nil {
		_ = printJSON(resp)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
