package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"

	"paymenthub/internal/cipher"
	"paymenthub/internal/envelope"
	"paymenthub/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SwitchClient posts sealed requests to the external switch.
type SwitchClient struct {
	url        string
	timeout    time.Duration
	retry      Retry
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewSwitchClient(url string, timeout time.Duration, retry Retry, logger *zap.SugaredLogger) *SwitchClient {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SwitchClient{
		url:        url,
		timeout:    timeout,
		retry:      retry,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Send delivers req, retrying transient failures. The timeout bounds the
// whole exchange including backoff; running out of it yields an error
// matching ErrSwitchTimeout.
func (c *SwitchClient) Send(ctx context.Context, correlationID string, req *cipher.SealedRequest) (*envelope.SwitchResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode switch request: %w", err)
	}

	var out *envelope.SwitchResponse
	err = c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.logger.Warnw("retrying switch request", "correlationId", correlationID, "attempt", attempt)
		}
		res, err := c.post(ctx, correlationID, body)
		metrics.SwitchAttempts.WithLabelValues(attemptResult(err)).Inc()
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrSwitchTimeout, correlationID, c.timeout)
		}
		return nil, err
	}
	return out, nil
}

func (c *SwitchClient) post(ctx context.Context, correlationID string, body []byte) (*envelope.SwitchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(envelope.HeaderCorrelationID, correlationID)
	httpReq.Header.Set(envelope.HeaderRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return nil, &TransientError{Err: err}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, &PermanentError{Err: err}
		}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &TransientError{Err: fmt.Errorf("switch unavailable: http=%d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &PermanentError{StatusCode: resp.StatusCode, Err: fmt.Errorf("switch rejected request: body=%s", string(raw))}
	}

	var out envelope.SwitchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("switch response decode: %w body=%s", err, string(raw))}
	}
	return &out, nil
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
