package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trattoria-be/internal/logger"
	"trattoria-be/internal/metrics"

	"go.uber.org/zap"
)

// Client is the thin transport wrapper the offline queue delivers through.
// Every call is timeout-bound and every failure is classified so the queue
// can decide whether a retry attempt was consumed.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DeliverSubmission posts a new order. The localID travels as the
// idempotency key so a retried submission whose first acknowledgement was
// lost is not applied twice.
func (c *Client) DeliverSubmission(ctx context.Context, localID string, payload []byte) error {
	return c.post(ctx, c.baseURL+"/api/orders", localID, payload)
}

// DeliverStatusUpdate posts a status change for an existing order.
func (c *Client) DeliverStatusUpdate(ctx context.Context, localID, orderID string, payload []byte) error {
	return c.post(ctx, c.baseURL+"/api/orders/"+url.PathEscape(orderID)+"/status", localID, payload)
}

func (c *Client) post(ctx context.Context, endpoint, localID string, payload []byte) error {
	log := logger.FromCtx(ctx).With(
		zap.String("endpoint", endpoint),
		zap.String("local_id", localID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindRejected, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", localID)

	timer := metrics.StartTimer()
	resp, err := c.httpClient.Do(req)
	log = log.With(zap.Duration("took", timer.Duration()))
	if err != nil {
		kind := classifyTransportError(err)
		log.Warn("delivery transport failure",
			zap.String("classification", kind.String()),
			zap.Error(err),
		)
		return &Error{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &Error{Kind: KindTransient, Err: fmt.Errorf("reading response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		log.Warn("backend failure", zap.Int("status", resp.StatusCode), zap.ByteString("response", body))
		return &Error{
			Kind:   KindTransient,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("backend error: %s", strings.TrimSpace(string(body))),
		}
	case resp.StatusCode >= 400:
		log.Warn("backend rejected delivery", zap.Int("status", resp.StatusCode), zap.ByteString("response", body))
		return &Error{
			Kind:   KindRejected,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("backend rejected: %s", strings.TrimSpace(string(body))),
		}
	default:
		return &Error{
			Kind:   KindUnknown,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// classifyTransportError distinguishes "the network is gone" from "the
// request took too long". Timeouts stay transient: the backend may well have
// received the request, which is exactly why delivery is idempotent.
func classifyTransportError(err error) Kind {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindOffline
}
