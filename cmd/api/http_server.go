package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/payment"
	"github.com/radlee/payments-api/domain/ratelimit"
	"github.com/radlee/payments-api/infra/gateways"
	"github.com/radlee/payments-api/infra/logging"
	"github.com/radlee/payments-api/infra/metrics"
	"github.com/radlee/payments-api/infra/requestid"
	"github.com/radlee/payments-api/infra/tracing"
	"github.com/radlee/payments-api/protocols"
)

const shutdownTimeout = 10 * time.Second

type PaymentEngine interface {
	MakePayment(ctx context.Context, req payment.Request) (*payment.Receipt, error)
	Budget() ratelimit.Budget
}

type AccountViewer interface {
	ViewAccount(accountNumber string) (*payment.AccountView, error)
}

// HealthCheck reports a dependency as down by returning an error.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Engine        PaymentEngine
	Accounts      AccountViewer
	Authenticator protocols.Authenticator
	Issuer        protocols.TokenIssuer
	Clock         protocols.Clock
	Logger        *zap.Logger
	Production    bool
	HealthChecks  map[string]HealthCheck
}

type server struct {
	Options
	logger *zap.Logger
}

var statusByKind = map[payment.Kind]int{
	payment.KindNotFound:           http.StatusNotFound,
	payment.KindValidation:         http.StatusBadRequest,
	payment.KindDuplicateReference: http.StatusConflict,
	payment.KindRateLimited:        http.StatusTooManyRequests,
	payment.KindPaymentFailed:      http.StatusUnprocessableEntity,
	payment.KindInternal:           http.StatusInternalServerError,
	payment.KindUnauthorized:       http.StatusUnauthorized,
}

func NewRouter(opts Options) *gin.Engine {
	s := &server{Options: opts, logger: opts.Logger.With(zap.String("component", "api"))}

	r := gin.New()
	r.Use(
		requestid.Middleware(),
		tracing.Middleware(),
		logging.Middleware(opts.Logger),
		metrics.Middleware,
		gin.CustomRecovery(s.recover),
	)

	r.GET("/", s.welcome)
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/auth/token", s.issueToken)

	apiGroup := r.Group("/api", s.authenticate)
	apiGroup.GET("/account/:accountNumber", s.viewAccount)
	apiGroup.POST("/pay", s.makePayment)

	r.NoRoute(func(c *gin.Context) {
		s.respond(c, http.StatusNotFound, payment.StatusError, "Route not found.", nil)
	})
	return r
}

// StartServer serves handler on addr until ctx is cancelled, then drains
// in-flight requests.
func StartServer(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Payments API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down Payments API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *server) welcome(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(welcomePage))
}

// health answers 503 while any dependency is down.
func (s *server) health(c *gin.Context) {
	code, status := http.StatusOK, "healthy"
	checks := gin.H{}
	for name, check := range s.HealthChecks {
		if err := check(c.Request.Context()); err != nil {
			code, status = http.StatusServiceUnavailable, "degraded"
			checks[name] = "down"
			s.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		checks[name] = "up"
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (s *server) issueToken(c *gin.Context) {
	if grantType := c.PostForm("grant_type"); grantType != "client_credentials" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
		return
	}
	token, expiresIn, err := s.Issuer.Issue(c.PostForm("client_id"), c.PostForm("client_secret"))
	if err != nil {
		s.logger.Warn("Token request rejected", zap.String("client_id", c.PostForm("client_id")), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}
	c.JSON(http.StatusOK, gateways.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresIn / time.Second),
	})
}

func (s *server) authenticate(c *gin.Context) {
	if !s.Authenticator.IsAuthorized(c.GetHeader("Authorization")) {
		c.Header("WWW-Authenticate", `Bearer realm="payments-api"`)
		s.respond(c, http.StatusUnauthorized, payment.StatusError, "Unauthorized.", payment.ErrorData{Kind: payment.KindUnauthorized})
		c.Abort()
		return
	}
	c.Next()
}

func (s *server) viewAccount(c *gin.Context) {
	view, err := s.Accounts.ViewAccount(c.Param("accountNumber"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respond(c, http.StatusOK, payment.StatusSuccess, "Account details retrieved successfully.", view)
}

func (s *server) makePayment(c *gin.Context) {
	var req payment.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ObservePayment(string(payment.KindValidation))
		s.respondError(c, payment.NewValidationError([]string{"request body must be a JSON payment request: " + err.Error()}))
		return
	}
	receipt, err := s.Engine.MakePayment(c.Request.Context(), req)
	if err != nil {
		metrics.ObservePayment(string(kindOf(err)))
		s.respondError(c, err)
		return
	}
	metrics.ObservePayment("success")
	s.respond(c, http.StatusOK, payment.StatusSuccess, "Payment successful.", receipt)
}

func (s *server) recover(c *gin.Context, recovered any) {
	s.logger.Error("Recovered from panic",
		zap.String("request_id", requestid.FromContext(c.Request.Context())),
		zap.Any("panic", recovered),
	)
	s.respondError(c, payment.NewInternalError(fmt.Errorf("panic: %v", recovered)))
	c.Abort()
}

func (s *server) respondError(c *gin.Context, err error) {
	var perr *payment.Error
	if !errors.As(err, &perr) {
		perr = payment.NewInternalError(err)
	}
	status, ok := statusByKind[perr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	data := payment.ErrorData{Kind: perr.Kind, Violations: perr.Violations}
	if perr.Kind == payment.KindRateLimited {
		resetTime := perr.ResetTime
		data.ResetTime = &resetTime
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(s.Clock.Now(), resetTime)))
	}
	if perr.Kind == payment.KindInternal {
		s.logger.Error("Internal error",
			zap.String("request_id", requestid.FromContext(c.Request.Context())),
			zap.Error(err),
		)
		if !s.Production && perr.Err != nil {
			data.Detail = perr.Err.Error()
		}
	}
	s.respond(c, status, payment.StatusError, perr.Message, data)
}

func (s *server) respond(c *gin.Context, status int, outcome, message string, data any) {
	budget := s.Engine.Budget()
	metrics.ObserveBudget(budget)
	c.JSON(status, payment.Envelope{
		Status:     outcome,
		Message:    message,
		StatusCode: status,
		Data:       data,
		Meta:       payment.NewMeta(budget),
	})
}

func kindOf(err error) payment.Kind {
	var perr *payment.Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return payment.KindInternal
}

func retryAfterSeconds(now, resetTime time.Time) int {
	seconds := int(math.Ceil(resetTime.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

const welcomePage = `<html>
  <head>
    <title>Welcome to the Payment Service API</title>
    <style>
      body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
      h1 { color: #4CAF50; }
      p { color: #555; }
    </style>
  </head>
  <body>
    <h1>Welcome to the Payment Service API</h1>
    <p>This server provides API endpoints for account details and payments.</p>
    <p>Use <code>/api/account/:accountNumber</code> to view account details and <code>/api/pay</code> to make a payment.</p>
  </body>
</html>
`
