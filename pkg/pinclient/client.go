// Package pinclient is a Go client for a pin engine's HTTP command surface.
//
// Example:
//
//	c, err := pinclient.New("http://esp32.local:8080")
//	if err != nil { ... }
//	err = c.Schedule(ctx, 5, "high", time.Second, 500*time.Millisecond)
package pinclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a {"status":"failure"} response from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinengine: %d: %s", e.StatusCode, e.Message)
}

// SetResult is the body of a successful /setgpio call.
type SetResult struct {
	GPIO     int    `json:"gpio"`
	State    string `json:"state"` // HIGH, LOW or PWM
	PWMValue *int   `json:"pwm_value,omitempty"`
}

// Operation is one /batch entry.
type Operation struct {
	GPIO  int    `json:"gpio"`
	State string `json:"state"`
}

// Status is the body of /status.
type Status struct {
	Uptime           int64  `json:"uptime"`
	FreeHeap         uint64 `json:"free_heap"`
	ConnectedClients int    `json:"connected_clients"`
}

// PinStatus is one entry of /pins.
type PinStatus struct {
	GPIO          int        `json:"gpio"`
	State         string     `json:"state"`
	Mode          string     `json:"mode,omitempty"`
	PendingMode   string     `json:"pending_mode,omitempty"`
	OperationID   string     `json:"operation_id,omitempty"`
	ApplyAt       *time.Time `json:"apply_at,omitempty"`
	RevertAt      *time.Time `json:"revert_at,omitempty"`
	Blinking      bool       `json:"blinking"`
	BlinkInterval int64      `json:"blink_interval_ms,omitempty"`
}

// Client talks to one pin engine.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("pinclient: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("pinclient: base url %q must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetGPIO applies state to gpio immediately.
func (c *Client) SetGPIO(ctx context.Context, gpio int, state string) (SetResult, error) {
	var res SetResult
	err := c.get(ctx, "/setgpio", url.Values{"gpio": {strconv.Itoa(gpio)}, "state": {state}}, &res)
	return res, err
}

// Batch applies ops in order. Entries are independent: on an *APIError the
// valid entries were still applied.
func (c *Client) Batch(ctx context.Context, ops []Operation) error {
	raw, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	return c.get(ctx, "/batch", url.Values{"operations": {string(raw)}}, nil)
}

// ReadGPIO returns "HIGH" or "LOW".
func (c *Client) ReadGPIO(ctx context.Context, gpio int) (string, error) {
	var res struct {
		State string `json:"state"`
	}
	err := c.get(ctx, "/readgpio", url.Values{"gpio": {strconv.Itoa(gpio)}}, &res)
	return res.State, err
}

// ReadADC returns the raw ADC reading of gpio.
func (c *Client) ReadADC(ctx context.Context, gpio int) (int, error) {
	var res struct {
		Value int `json:"adc_value"`
	}
	err := c.get(ctx, "/readadc", url.Values{"gpio": {strconv.Itoa(gpio)}}, &res)
	return res.Value, err
}

// Schedule applies state after delay and, when duration > 0, reverts it
// duration after it was applied.
func (c *Client) Schedule(ctx context.Context, gpio int, state string, delay, duration time.Duration) error {
	q := url.Values{
		"gpio":  {strconv.Itoa(gpio)},
		"state": {state},
		"delay": {strconv.FormatInt(delay.Milliseconds(), 10)},
	}
	if duration > 0 {
		q.Set("duration", strconv.FormatInt(duration.Milliseconds(), 10))
	}
	return c.get(ctx, "/schedule", q, nil)
}

// Blink toggles gpio every interval. A zero interval stops blinking.
func (c *Client) Blink(ctx context.Context, gpio int, interval time.Duration) error {
	q := url.Values{"gpio": {strconv.Itoa(gpio)}, "interval": {strconv.FormatInt(interval.Milliseconds(), 10)}}
	return c.get(ctx, "/blink", q, nil)
}

// Status returns uptime and resource figures.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.get(ctx, "/status", nil, &st)
	return st, err
}

// Pins returns the engine's per-pin view.
func (c *Client) Pins(ctx context.Context) ([]PinStatus, error) {
	var pins []PinStatus
	err := c.get(ctx, "/pins", nil, &pins)
	return pins, err
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinclient: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("pinclient: read %s: %w", path, err)
	}
	c.logger.Debug("pinclient request", "path", path, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		var fail struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &fail) != nil || fail.Error == "" {
			fail.Error = strings.TrimSpace(string(body))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: fail.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("pinclient: decode %s: %w", path, err)
	}
	return nil
}
