package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/coordinator"
	"github.com/georgeshao/fio-dashboard/internal/metrics"
)

const maxResponseBytes = 64 << 20

type call struct {
	class       cache.Class
	method      string
	path        string
	params      url.Values
	body        io.Reader
	contentType string
}

func jsonCall(class cache.Class, method, path string, payload any) (call, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return call{}, fmt.Errorf("failed to encode request body: %w", err)
	}
	return call{
		class:       class,
		method:      method,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, nil
}

// send performs one upstream request and returns the body of a 2xx response.
// Cancellation of ctx surfaces as an abort, never as an APIError.
func (g *Gateway) send(ctx context.Context, c call) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, abortError(ctx)
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	target := g.baseURL + c.path
	if len(c.params) > 0 {
		target += "?" + c.params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target, c.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}

	auth, err := g.creds.Authorization(ctx)
	if err != nil {
		g.logger.Warnw("Failed to read credentials, sending unauthenticated", "request_id", requestID, "error", err)
	} else if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, abortError(ctx)
		}
		metrics.RecordUpstreamRequest(string(c.class), c.method, 0, time.Since(start).Seconds())
		g.logger.Warnw("Upstream request failed", "request_id", requestID, "method", c.method, "path", c.path, "error", err)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.RecordUpstreamRequest(string(c.class), c.method, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, abortError(ctx)
		}
		return nil, networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := statusError(resp.StatusCode, body)
		g.logger.Warnw("Upstream returned an error",
			"request_id", requestID,
			"method", c.method,
			"path", c.path,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return nil, apiErr
	}

	g.logger.Debugw("Upstream request completed",
		"request_id", requestID,
		"method", c.method,
		"path", c.path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return body, nil
}

// abortError converts the end of ctx into an abort outcome, keeping the
// supersession cause when there is one.
func abortError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, coordinator.ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %v", coordinator.ErrAborted, cause)
}
