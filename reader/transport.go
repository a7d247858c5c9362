package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"brokerboard/config"
)

// ErrUnexpectedStatus is returned when an upstream answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

const defaultUserAgent = "brokerboard/1.0"

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds a pooled client that stamps every request with agent.
func NewHTTPClient(pool config.ConnectionPoolConfig, timeout time.Duration, agent string) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
	}
	if agent == "" {
		agent = defaultUserAgent
	}
	return &http.Client{
		Transport: userAgentTransport{agent: agent, base: transport},
		Timeout:   timeout,
	}
}

// NewLimiter returns nil when rps is not positive, which disables limiting.
func NewLimiter(rl config.RateLimitConfig) *rate.Limiter {
	if rl.RequestsPerSecond <= 0 {
		return nil
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
}

// GetJSON waits on limiter (if any), issues a GET and decodes a 2xx body into out.
func GetJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, out interface{}) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
