package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Avatarframe-Signature"
	HeaderTimestamp = "X-Avatarframe-Timestamp"
	HeaderEvent     = "X-Avatarframe-Event"
	HeaderRunID     = "X-Avatarframe-Run"

	EventFrameApplied = "frame.applied"
	EventFrameFailed  = "frame.failed"
)

// Event is the body posted when a run finishes. Exactly one of the output
// fields or the error fields is populated.
type Event struct {
	Type       string    `json:"event"`
	RunID      string    `json:"run_id"`
	Success    bool      `json:"success"`
	AvatarPath string    `json:"avatar_path"`
	FramePath  string    `json:"frame_path"`
	OccurredAt time.Time `json:"occurred_at"`

	OutputPath  string `json:"output_path,omitempty"`
	Format      string `json:"format,omitempty"`
	OutputSize  int    `json:"output_size,omitempty"`
	OutputBytes int    `json:"output_bytes,omitempty"`
	CacheHit    bool   `json:"cache_hit,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient     *http.Client
	signingSecret  string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		signingSecret:  cfg.SigningSecret,
		maxAttempts:    max(cfg.MaxAttempts, 1),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		now:            time.Now,
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 10 * time.Second
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = time.Second
	}
	c.maxBackoff = max(c.maxBackoff, c.initialBackoff)
	return c
}

// Deliver posts ev to endpoint, retrying non-2xx answers and transport errors
// up to the configured attempt count. An empty endpoint is a no-op.
func (c *Client) Deliver(ctx context.Context, endpoint string, ev Event) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = c.now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set(HeaderTimestamp, timestamp)
	headers.Set(HeaderSignature, Sign(c.signingSecret, timestamp, body))
	headers.Set(HeaderEvent, ev.Type)
	headers.Set(HeaderRunID, ev.RunID)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		lastErr = c.post(ctx, endpoint, headers, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("deliver %s for run %s after %d attempts: %w", ev.Type, ev.RunID, c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, headers http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header = headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status=%d", resp.StatusCode)
	}
	return nil
}

// backoff is the wait before the given attempt: doubling from the initial
// delay, capped at the maximum.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.initialBackoff
	for i := 2; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	return min(d, c.maxBackoff)
}

// Sign returns the signature header value for a timestamped body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func Verify(secret, timestamp string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}
