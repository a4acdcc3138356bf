// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package mirror fetches msed artifacts from an external site when the
// coordinator's own artifact store doesn't have them mined locally yet.
// A mirror lookup either returns the artifact or reports it missing; it
// never retries, since a miss almost always means "not mined there either"
// rather than a transient fault worth re-asking for.
package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	timeoutctx "github.com/jontk/movableq/pkg/context"
	"github.com/jontk/movableq/pkg/errors"
	"github.com/jontk/movableq/pkg/logging"
	"github.com/jontk/movableq/pkg/metrics"
	"github.com/jontk/movableq/pkg/middleware"
	"github.com/jontk/movableq/pkg/pool"
)

// Client looks up msed artifacts from the configured mirror site.
type Client struct {
	base     string
	endpoint string
	client   *http.Client
	logger   logging.Logger
	metrics  *metrics.InMemoryCollector
}

// NewClient builds a mirror client. base, endpoint and the requested key
// are joined as path segments (url.JoinPath) to form the lookup URL.
func NewClient(base, endpoint string, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	clientPool := pool.NewHTTPClientPool(pool.DefaultPoolConfig(), logger)
	httpClient := clientPool.GetClient(base)
	collector := metrics.NewInMemoryCollector()

	httpClient.Transport = middleware.Chain(
		middleware.WithTimeout(15*time.Second),
		middleware.WithLogging(logger),
		middleware.WithRequestID(func() string { return uuid.NewString() }),
		middleware.WithCircuitBreaker(5, 30*time.Second),
		middleware.WithMetrics(collector),
	)(httpClient.Transport)

	return &Client{
		base:     base,
		endpoint: endpoint,
		client:   httpClient,
		logger:   logger,
		metrics:  collector,
	}
}

// Stats returns the mirror client's outbound-request metrics.
func (c *Client) Stats() *metrics.Stats {
	return c.metrics.GetStats()
}

// FetchMsed requests the msed artifact for key from the mirror. A 404
// response is reported as errors.UnknownJob rather than errors.Internal,
// since it means "the mirror hasn't mined this either", not a fault.
func (c *Client) FetchMsed(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := timeoutctx.EnsureTimeout(ctx, timeoutctx.DefaultTimeout)
	defer cancel()

	lookupURL, err := url.JoinPath(c.base, c.endpoint, key)
	if err != nil {
		return nil, errors.Internal("failed to build mirror lookup URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, errors.Internal("failed to build mirror request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if timeoutctx.IsContextError(ctx.Err()) {
			return nil, errors.Internal(fmt.Sprintf("mirror lookup for %s", key), timeoutctx.WrapContextError(ctx.Err(), "mirror_fetch_msed", timeoutctx.DefaultTimeout))
		}
		return nil, errors.Internal(fmt.Sprintf("mirror request failed for %s", key), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.UnknownJob(fmt.Sprintf("mirror has no msed artifact for %s", key))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Internal(fmt.Sprintf("mirror returned status %d for %s", resp.StatusCode, key), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Internal("failed to read mirror response body", err)
	}

	c.logger.Info("fetched msed artifact from mirror", "key", key, "bytes", len(body))
	return body, nil
}
