package fingerprint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alakazam-audio/alakazam/pkg/errors"
	"github.com/alakazam-audio/alakazam/pkg/metrics"
	"github.com/alakazam-audio/alakazam/pkg/proto"
	"github.com/alakazam-audio/alakazam/pkg/resilience"
	"github.com/alakazam-audio/alakazam/pkg/rpc"
)

// RPC method names exposed by the fingerprinter process.
const (
	methodSongFingerprint  = "Fingerprinter.GenerateSongFingerprint"
	methodQueryFingerprint = "Fingerprinter.GenerateQueryFingerprint"
	methodHealthCheck      = "Fingerprinter.HealthCheck"
)

// Client is a Generator backed by the fingerprinter RPC service, wrapped in
// a circuit breaker, bounded retries, and a per-call timeout.
type Client struct {
	rpc         *rpc.Client
	breaker     *resilience.CircuitBreaker
	callTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewClient dials the fingerprinter at addr. callTimeout bounds each RPC
// round trip; zero disables the bound.
func NewClient(addr string, callTimeout time.Duration, m *metrics.Metrics) (*Client, error) {
	conn, err := rpc.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing fingerprinter at %s: %v", errors.ErrFingerprinterUnavailable, addr, err)
	}
	return &Client{
		rpc:         conn,
		breaker:     resilience.NewCircuitBreaker("fingerprinter", resilience.CircuitBreakerConfig{}),
		callTimeout: callTimeout,
		metrics:     m,
		logger:      slog.Default().With("component", "fingerprint-client"),
	}, nil
}

func (c *Client) GenerateSongFingerprint(ctx context.Context, samples []float32, sampleRate int) (SongFingerprint, error) {
	var resp proto.SongFingerprintResponse
	req := proto.SongFingerprintRequest{Samples: samples, SampleRate: sampleRate}
	if err := c.call(ctx, methodSongFingerprint, req, &resp); err != nil {
		return SongFingerprint{}, err
	}
	return SongFingerprint{
		Hashes:     resp.Hashes,
		Duration:   resp.Duration,
		SampleRate: resp.SampleRate,
		HashCount:  resp.HashCount,
	}, nil
}

func (c *Client) GenerateQueryFingerprint(ctx context.Context, samples []float32, sampleRate int) (QueryFingerprint, error) {
	var resp proto.QueryFingerprintResponse
	req := proto.QueryFingerprintRequest{Samples: samples, SampleRate: sampleRate}
	if err := c.call(ctx, methodQueryFingerprint, req, &resp); err != nil {
		return QueryFingerprint{}, err
	}
	return QueryFingerprint{Hashes: resp.Hashes, Duration: resp.Duration}, nil
}

// HealthCheck probes the fingerprinter. It bypasses retries so health status
// reflects the current state rather than the best of three attempts.
func (c *Client) HealthCheck(ctx context.Context) error {
	var resp proto.HealthCheckResponse
	err := resilience.WithTimeout(ctx, c.callTimeout, "fingerprinter health", func(ctx context.Context) error {
		return c.rpc.Call(methodHealthCheck, struct{}{}, &resp)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrFingerprinterUnavailable, err)
	}
	if resp.Status != "SERVING" {
		return fmt.Errorf("%w: status %s", errors.ErrFingerprinterUnavailable, resp.Status)
	}
	return nil
}

// call runs one RPC through the breaker, retry, and timeout layers.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, method, resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return resilience.WithTimeout(ctx, c.callTimeout, method, func(ctx context.Context) error {
				return c.rpc.Call(method, params, result)
			})
		})
	})
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("fingerprinter").Set(float64(c.breaker.GetState()))
	}
	if err != nil {
		c.logger.Error("fingerprinter call failed", "method", method, "error", err)
		return fmt.Errorf("%w: %s: %v", errors.ErrFingerprinterUnavailable, method, err)
	}
	return nil
}

// Close closes the RPC connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}
