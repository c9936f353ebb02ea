// Package provider holds HTTP adapters for the image encoder and image
// downloads.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yksoni-monk/poke/infrastructure/imageproc"
)

// Encoder defaults.
const (
	DefaultEncoderTimeout = 60 * time.Second
	DefaultMaxRetries     = 3
	DefaultInitialDelay   = time.Second
	DefaultBackoffFactor  = 2.0
)

// ErrEncoder indicates the inference service could not produce a vector.
var ErrEncoder = errors.New("encoder failure")

// StatusError is returned when the inference service answers with a
// non-success status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("encoder returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("encoder returned status %d: %s", e.StatusCode, e.Message)
}

// Is reports whether target is ErrEncoder.
func (e *StatusError) Is(target error) bool {
	return target == ErrEncoder
}

// CLIPEncoder embeds images by calling a CLIP inference service over HTTP.
type CLIPEncoder struct {
	baseURL       string
	client        *http.Client
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	logger        *slog.Logger
}

// CLIPOption is a functional option for CLIPEncoder.
type CLIPOption func(*CLIPEncoder)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) CLIPOption {
	return func(e *CLIPEncoder) { e.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) CLIPOption {
	return func(e *CLIPEncoder) { e.client = c }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) CLIPOption {
	return func(e *CLIPEncoder) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) CLIPOption {
	return func(e *CLIPEncoder) { e.initialDelay = d }
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) CLIPOption {
	return func(e *CLIPEncoder) { e.backoffFactor = f }
}

// WithEncoderLogger sets the logger.
func WithEncoderLogger(l *slog.Logger) CLIPOption {
	return func(e *CLIPEncoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewCLIPEncoder creates an encoder for the service at baseURL.
func NewCLIPEncoder(baseURL string, opts ...CLIPOption) *CLIPEncoder {
	e := &CLIPEncoder{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: DefaultEncoderTimeout},
		maxRetries:    DefaultMaxRetries,
		initialDelay:  DefaultInitialDelay,
		backoffFactor: DefaultBackoffFactor,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type vectorizeRequest struct {
	Texts  []string `json:"texts"`
	Images []string `json:"images"`
}

type vectorizeResponse struct {
	TextVectors  [][]float32 `json:"textVectors"`
	ImageVectors [][]float32 `json:"imageVectors"`
	Error        string      `json:"error"`
}

// Encode sends img as a base64 PNG and returns the raw image vector.
func (e *CLIPEncoder) Encode(ctx context.Context, img image.Image) ([]float32, error) {
	png, err := imageproc.Canonical(img)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	body, err := json.Marshal(vectorizeRequest{
		Texts:  []string{},
		Images: []string{base64.StdEncoding.EncodeToString(png)},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	var vector []float32
	err = e.withRetry(ctx, func() error {
		v, err := e.vectorize(ctx, body)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *CLIPEncoder) vectorize(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/vectorize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out vectorizeResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode > 399 {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %w", ErrEncoder, decodeErr)
	}
	if len(out.ImageVectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 image vector, got %d", ErrEncoder, len(out.ImageVectors))
	}
	return out.ImageVectors[0], nil
}

// Ready reports whether the inference service answers its readiness probe.
func (e *CLIPEncoder) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/.well-known/ready", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoder, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// withRetry executes the function with exponential backoff retry.
func (e *CLIPEncoder) withRetry(ctx context.Context, fn func() error) error {
	delay := e.initialDelay
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < e.maxRetries {
			e.logger.Debug("retrying encoder request",
				slog.Int("attempt", attempt+1),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * e.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}
