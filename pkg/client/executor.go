package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/errors"
	"github.com/datataps/roomtap/pkg/metrics"
)

// Envelope is the data payload of a successful API response: the object
// under the top-level "data" key, holding the result list and the cursor.
type Envelope map[string]interface{}

// Executor wraps every outbound API call with rate limiting and a
// retry/backoff policy driven by the error classifier. It is the sole retry
// point: any error escaping it is fatal for the caller's unit of work.
type Executor struct {
	session *Session
	limiter *RateLimiter
	retry   *RetryPolicy
	logger  *zap.Logger
}

// NewExecutor creates a request executor bound to an open session
func NewExecutor(session *Session, limiter *RateLimiter, retry *RetryPolicy, logger *zap.Logger) *Executor {
	return &Executor{
		session: session,
		limiter: limiter,
		retry:   retry,
		logger:  logger.With(zap.String("component", "executor")),
	}
}

// Execute performs a GET against {base}/{route} with the given query
// parameters and returns the envelope's data payload. Transient failures
// (5xx, 429, timeouts, connection errors) are retried with exponential
// backoff; all other classified errors fail immediately. A 2xx body that is
// not the expected envelope, or that lacks a data payload, is a data error,
// not a success.
func (e *Executor) Execute(ctx context.Context, route string, params map[string]string) (Envelope, error) {
	var result Envelope
	attempt := 0

	call := func() error {
		if attempt > 0 {
			metrics.RequestRetries.Inc()
			e.logger.Warn("retrying request",
				zap.String("route", route),
				zap.Int("attempt", attempt+1))
		}
		attempt++

		// The limiter is consulted once per outbound call, retries included.
		// A cancelled wait returns the context error unwrapped so the retry
		// loop doesn't classify the cancellation as transient.
		if !e.limiter.Allow() {
			metrics.RateLimitWaits.Inc()
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		env, err := e.doRequest(ctx, route, params)
		if err != nil {
			return err
		}
		result = env
		return nil
	}

	if err := e.retry.Execute(ctx, call, errors.IsRetryable); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) doRequest(ctx context.Context, route string, params map[string]string) (Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.session.baseURL+"/"+route, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to build request")
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Authorization", e.session.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.session.http.Do(req)
	metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.APIRequests.WithLabelValues(route, "error").Inc()
		if uerr, ok := err.(*url.Error); ok && uerr.Timeout() {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer resp.Body.Close()

	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()
	e.logger.Debug("api request",
		zap.String("route", route),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, classifyResponse(resp)
	}

	var envelope struct {
		Data Envelope `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "response not JSON")
	}
	if len(envelope.Data) == 0 {
		return nil, errors.New(errors.ErrorTypeData, "envelope missing data payload")
	}

	return envelope.Data, nil
}
