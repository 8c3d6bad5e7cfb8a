package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/riftlabs/interlock/internal/chain"
	"github.com/riftlabs/interlock/internal/domain"
	apperrors "github.com/riftlabs/interlock/internal/errors"
	"github.com/riftlabs/interlock/internal/observability"
)

// Handler exposes the interceptor chain over HTTP through four demo
// operations, one per §8 scenario group (E1/E4/E5 each get their own route,
// E2/E3/E6 share the idempotent-write route). Each operation is wrapped
// through the chain exactly once at construction time; the wrapped
// chain.Handler is stateless between calls, so a single Handler instance is
// safe for concurrent requests.
type Handler struct {
	logger *observability.Logger

	cacheOp       chain.Handler
	idempotentOp  chain.Handler
	rateLimitedOp chain.Handler
	retryOp       chain.Handler
}

// NewHandler builds the four demo operations and wraps each through c.
func NewHandler(c *chain.Chain, logger *observability.Logger) *Handler {
	h := &Handler{logger: logger}

	h.cacheOp = c.Wrap(chain.OperationSpec{
		MethodKey:  domain.NewMethodKey("DemoService", "GetCustomerSummary", "CacheArgs"),
		TargetType: "DemoService",
		Audit: &chain.AuditSpec{
			Enabled:       true,
			CaptureArgs:   true,
			CaptureResult: true,
		},
		Cache: &chain.CacheSpec{
			Name:       "demo-customer-summary",
			TTLSeconds: 60,
			Scope:      chain.ScopeSubject,
		},
	}, cacheDemoHandler)

	h.idempotentOp = c.Wrap(chain.OperationSpec{
		MethodKey:  domain.NewMethodKey("DemoService", "CreatePayment", "IdempotentArgs"),
		TargetType: "DemoService",
		Audit: &chain.AuditSpec{
			Enabled:       true,
			CaptureArgs:   true,
			CaptureResult: true,
		},
		Idempotency: &chain.IdempotencySpec{
			RequireKey:                 true,
			ConflictOnDifferentRequest: true,
			RejectInFlight:             true,
			TTLSeconds:                 3600,
		},
	}, idempotentDemoHandler)

	h.rateLimitedOp = c.Wrap(chain.OperationSpec{
		MethodKey:  domain.NewMethodKey("DemoService", "ListRates", "RateLimitedArgs"),
		TargetType: "DemoService",
		Audit: &chain.AuditSpec{
			Enabled:       true,
			CaptureArgs:   true,
			CaptureResult: true,
		},
		RateLimit: &chain.RateLimitSpec{
			PermitsPerSecond: 2,
			Burst:            2,
		},
	}, rateLimitedDemoHandler)

	h.retryOp = c.Wrap(chain.OperationSpec{
		MethodKey:  domain.NewMethodKey("DemoService", "FlakyUpstreamCall", "RetryArgs"),
		TargetType: "DemoService",
		Audit: &chain.AuditSpec{
			Enabled:           true,
			CaptureArgs:       true,
			CaptureResult:     true,
			CaptureStacktrace: true,
		},
		Retry: &chain.RetrySpec{
			MaxAttempts:   5,
			BaseBackoffMs: 10,
		},
	}, retryDemoHandler)

	return h
}

// cacheArgs/cacheResult back the E1 cache-hit scenario.
type cacheArgs struct {
	CustomerID string `json:"customerId"`
}

type cacheResult struct {
	CustomerID  string `json:"customerId"`
	StableValue string `json:"stableValue"`
}

func cacheDemoHandler(_ context.Context, args any) (any, error) {
	a := args.(cacheArgs)
	return cacheResult{
		CustomerID:  a.CustomerID,
		StableValue: "summary-" + uuid.NewString(),
	}, nil
}

// GetCacheDemo handles GET /demo/cache?customerId=... (§8 E1).
func (h *Handler) GetCacheDemo(c *gin.Context) {
	customerID := c.Query("customerId")
	if customerID == "" {
		writeError(c, apperrors.New(c.Request.Context(), apperrors.KindValidation, "customerId query parameter is required"))
		return
	}

	result, err := h.cacheOp(c.Request.Context(), cacheArgs{CustomerID: customerID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// idempotentArgs/idempotentResult back the E2/E3/E6 idempotent-write
// scenarios.
type idempotentArgs struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

type idempotentResult struct {
	PaymentID string `json:"paymentId"`
	Amount    int    `json:"amount"`
	Currency  string `json:"currency"`
}

func idempotentDemoHandler(_ context.Context, args any) (any, error) {
	a := args.(idempotentArgs)
	return idempotentResult{
		PaymentID: "pay_" + uuid.NewString(),
		Amount:    a.Amount,
		Currency:  a.Currency,
	}, nil
}

// PostIdempotentDemo handles POST /demo/idempotent (§8 E2/E3/E6).
func (h *Handler) PostIdempotentDemo(c *gin.Context) {
	var req idempotentArgs
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithField("error", err.Error()).Warn("invalid idempotent-demo request body")
		writeError(c, apperrors.WrapWithMessage(c.Request.Context(), err, apperrors.KindValidation, "invalid request body"))
		return
	}

	result, err := h.idempotentOp(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// rateLimitedArgs/rateLimitedResult back the E4 rate-limit scenario.
type rateLimitedArgs struct{}

type rateLimitedResult struct {
	OK bool `json:"ok"`
}

func rateLimitedDemoHandler(_ context.Context, _ any) (any, error) {
	return rateLimitedResult{OK: true}, nil
}

// GetRateLimitedDemo handles GET /demo/ratelimited (§8 E4).
func (h *Handler) GetRateLimitedDemo(c *gin.Context) {
	result, err := h.rateLimitedOp(c.Request.Context(), rateLimitedArgs{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// retryArgs/retryResult back the E5 retry-success scenario. The attempt
// counter lives on the request context rather than the handler, since the
// retry stage re-invokes this function in place within a single HTTP call —
// there is no per-request state on Handler itself to race on.
type retryArgs struct {
	FailTimes int `json:"failTimes"`
}

type retryResult struct {
	Attempt int `json:"attempt"`
}

type retryAttemptCounterKey struct{}

func withAttemptCounter(ctx context.Context, counter *int32) context.Context {
	return context.WithValue(ctx, retryAttemptCounterKey{}, counter)
}

func attemptCounterFromContext(ctx context.Context) *int32 {
	counter, _ := ctx.Value(retryAttemptCounterKey{}).(*int32)
	return counter
}

func retryDemoHandler(ctx context.Context, args any) (any, error) {
	a := args.(retryArgs)
	counter := attemptCounterFromContext(ctx)
	attempt := int(atomic.AddInt32(counter, 1))
	if attempt <= a.FailTimes {
		return nil, apperrors.New(ctx, apperrors.KindInternal, fmt.Sprintf("simulated transient failure on attempt %d", attempt))
	}
	return retryResult{Attempt: attempt}, nil
}

// GetRetryDemo handles GET /demo/retry?failTimes=N (§8 E5).
func (h *Handler) GetRetryDemo(c *gin.Context) {
	failTimes, err := strconv.Atoi(c.DefaultQuery("failTimes", "0"))
	if err != nil || failTimes < 0 {
		writeError(c, apperrors.New(c.Request.Context(), apperrors.KindValidation, "failTimes must be a non-negative integer"))
		return
	}

	var counter int32
	ctx := withAttemptCounter(c.Request.Context(), &counter)

	result, opErr := h.retryOp(ctx, retryArgs{FailTimes: failTimes})
	if opErr != nil {
		writeError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, result)
}
