package handeye

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for pose fetches.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts.
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes caps a pose file download at 16 MB.
	maxResponseBytes = 16 << 20
)

// FetchOption configures FetchPoses.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the base delay of the exponential backoff.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.baseBackoff = d
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// FetchPoses downloads a pose file from url and parses it. Transport errors
// and non-200 responses are retried with exponential backoff; parse errors
// are not.
func FetchPoses(ctx context.Context, url string, opts ...FetchOption) (PoseSequence, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch poses: URL is empty")
	}

	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	for attempt := range cfg.maxRetries {
		if attempt > 0 {
			backoff := cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			log.Printf("[FETCH] %s: retrying in %v after: %v", url, backoff, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch poses: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := doFetch(ctx, client, url)
		if err != nil {
			lastErr = err
			continue
		}

		poses, err := ParsePoses(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("fetch poses from %s: %w", url, err)
		}
		return poses, nil
	}

	return nil, fmt.Errorf("fetch poses: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

// LoadPoseSource reads the A and B sequences named by the inputs section,
// preferring local files over URLs.
func LoadPoseSource(ctx context.Context, in InputsConfig, opts ...FetchOption) (PoseSequence, PoseSequence, error) {
	switch {
	case in.FileA != "":
		return LoadPosePair(in.FileA, in.FileB)
	case in.URLA != "":
		a, err := FetchPoses(ctx, in.URLA, opts...)
		if err != nil {
			return nil, nil, err
		}
		b, err := FetchPoses(ctx, in.URLB, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := checkSequences(a, b); err != nil {
			return nil, nil, fmt.Errorf("%s and %s: %w", in.URLA, in.URLB, err)
		}
		return a, b, nil
	default:
		return nil, nil, fmt.Errorf("no pose input configured")
	}
}

func doFetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
