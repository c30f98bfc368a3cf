// internal/common/nlp/client.go
package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	commonhttp "marketplace-chat/internal/common/http"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/validation"
)

const (
	queryPath  = "/query"
	legacyPath = "/parse"

	maxResponseBytes = 1 << 20
)

var (
	ErrNLPUnavailable    = errors.New("NLP_UNAVAILABLE")
	ErrNLPTimeout        = errors.New("NLP_TIMEOUT")
	ErrMalformedResponse = errors.New("NLP_MALFORMED_RESPONSE")
	ErrClientError       = errors.New("NLP_CLIENT_ERROR")

	errEndpointNotFound = errors.New("endpoint not found")
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the external NLP service. It prefers POST /query and
// switches to the legacy POST /parse only after /query answers 404.
type Client struct {
	config     *Config
	http       *commonhttp.Client
	logger     logger.Logger
	legacyOnly atomic.Bool
}

func NewClient(config *Config, log logger.Logger) *Client {
	return NewClientWithHTTP(config, commonhttp.NewClient(config.Timeout), log)
}

func NewClientWithHTTP(config *Config, hc *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		config: config,
		http:   hc,
		logger: logger.ForComponent(log, "nlp-client"),
	}
}

// Parse sends text to the service and returns the decoded parse.
func (c *Client) Parse(ctx context.Context, text string) (*Result, error) {
	if !c.legacyOnly.Load() {
		body, err := c.post(ctx, queryPath, text)
		if err == nil {
			return decodeResponse(body, false)
		}
		if !errors.Is(err, errEndpointNotFound) {
			return nil, err
		}
		c.logger.Info("query endpoint not found, using legacy parse endpoint", map[string]interface{}{
			"baseUrl": c.config.BaseURL,
		})
		c.legacyOnly.Store(true)
	}

	body, err := c.post(ctx, legacyPath, text)
	if errors.Is(err, errEndpointNotFound) {
		return nil, fmt.Errorf("%w: status 404 on %s", ErrClientError, legacyPath)
	}
	if err != nil {
		return nil, err
	}
	return decodeResponse(body, true)
}

// post retries connection failures, timeouts and 5xx answers with
// exponential backoff. 4xx answers are returned immediately.
func (c *Client) post(ctx context.Context, path, text string) ([]byte, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + path
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrNLPTimeout
			}
		}

		resp, err := c.http.PostJSON(ctx, url, map[string]string{"text": text})
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNLPTimeout
		}
		if err != nil {
			if isTimeout(err) {
				lastErr = fmt.Errorf("%w: %v", ErrNLPTimeout, err)
			} else {
				lastErr = fmt.Errorf("%w: %v", ErrNLPUnavailable, err)
			}
			c.logRetry(path, attempt, lastErr)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errEndpointNotFound
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d", ErrNLPUnavailable, resp.StatusCode)
			c.logRetry(path, attempt, lastErr)
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: status %d", ErrClientError, resp.StatusCode)
		case readErr != nil:
			lastErr = fmt.Errorf("%w: read body: %v", ErrNLPUnavailable, readErr)
			continue
		}

		return body, nil
	}

	return nil, lastErr
}

func (c *Client) logRetry(path string, attempt int, err error) {
	c.logger.Warn("nlp call failed", map[string]interface{}{
		"path":       path,
		"attempt":    attempt + 1,
		"maxRetries": c.config.MaxRetries,
		"error":      err.Error(),
	})
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type envelope struct {
	OK       *bool           `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Features struct {
		NounChunks []string `json:"noun_chunks"`
	} `json:"features"`
}

func decodeResponse(body []byte, legacy bool) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.OK != nil && !*env.OK {
		return nil, fmt.Errorf("%w: service reported failure: %s", ErrNLPUnavailable, env.Error)
	}

	payload := body
	if legacy {
		if len(env.Result) == 0 || string(env.Result) == "null" {
			return nil, fmt.Errorf("%w: legacy response without result", ErrMalformedResponse)
		}
		payload = env.Result
	}

	check, err := validation.ValidateJSON(validation.NLPPayloadSchema, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !check.Valid {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(check.Messages(), "; "))
	}

	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(res.NounChunks) == 0 {
		res.NounChunks = env.Features.NounChunks
	}
	return &res, nil
}
