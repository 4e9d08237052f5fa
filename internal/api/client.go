package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"compclient/internal/model"
)

const (
	defaultMaxRetries = 3
	maxBackoff        = 10 * time.Second
	defaultRetryAfter = 5 * time.Second
)

// Client wraps the competition API with the shared retry policy:
// 401/403 are terminal, network failures and 5xx are retried up to
// maxRetries times with exponential backoff, 429 gets one retry after
// Retry-After (5s when absent).
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	token string
}

// NewClient creates a new API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: defaultMaxRetries,
		sleep:      sleepContext,
	}
}

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// backoff returns the wait before retry number n (1-based)
func backoff(n int) time.Duration {
	d := time.Duration(math.Pow(2, float64(n))) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return defaultRetryAfter
}

// do performs an HTTP request with retry logic and decodes the JSON body into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	url := c.baseURL + path
	log.Printf("[API Client] %s %s", method, path)

	retries := 0
	rateLimitRetried := false
	for {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if retries < c.maxRetries {
				retries++
				wait := backoff(retries)
				log.Printf("[API Client] Network error on %s %s, retry %d/%d in %v: %v", method, path, retries, c.maxRetries, wait, err)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			log.Printf("[API Client] ERROR: %s %s failed after %d retries: %v", method, path, retries, err)
			return &Error{Method: method, Path: path, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return &Error{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return c.fail(method, path, resp, respBody)

		case resp.StatusCode == http.StatusTooManyRequests:
			if !rateLimitRetried {
				rateLimitRetried = true
				wait := retryAfter(resp)
				log.Printf("[API Client] RATE LIMITED: %s %s, retrying once in %v", method, path, wait)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return c.fail(method, path, resp, respBody)

		case resp.StatusCode >= 500:
			if retries < c.maxRetries {
				retries++
				wait := backoff(retries)
				log.Printf("[API Client] Server error %d on %s %s, retry %d/%d in %v", resp.StatusCode, method, path, retries, c.maxRetries, wait)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return c.fail(method, path, resp, respBody)

		case resp.StatusCode >= 400:
			return c.fail(method, path, resp, respBody)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return &Error{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrBadResponse, err)}
			}
		}
		return nil
	}
}

func (c *Client) fail(method, path string, resp *http.Response, body []byte) error {
	apiErr := &Error{
		Method: method,
		Path:   path,
		Status: resp.StatusCode,
		Err:    sentinelFor(resp.StatusCode),
	}
	var eb model.ErrorResponse
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = retryAfter(resp)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		log.Printf("[API Client] ERROR: %v", apiErr)
	}
	return apiErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
