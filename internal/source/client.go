package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lending-regime-advisor/internal/model"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrFetch marks transport failures, non-2xx responses and success=false envelopes.
var ErrFetch = errors.New("snapshot fetch")

const userAgent = "lending-regime-advisor/1.0"

type Client struct {
	http        *http.Client
	log         *zap.Logger
	stablecoins []string
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
}

type Option func(*Client)

// WithStablecoins sets the stablecoin keys whose peg deviation is required.
func WithStablecoins(symbols []string) Option {
	return func(c *Client) {
		if len(symbols) > 0 {
			c.stablecoins = append([]string(nil), symbols...)
		}
	}
}

// WithRateLimit caps outgoing requests to perMinute with a burst of one.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// WithBreaker opens the circuit after consecutive fetch failures and keeps it
// open for cooldown before probing again.
func WithBreaker(consecutiveFailures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if consecutiveFailures == 0 {
			return
		}
		log := c.log
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "metrics-api",
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("source breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
}

func New(timeout time.Duration, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:        &http.Client{Timeout: timeout},
		log:         log,
		stablecoins: DefaultStablecoins,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves and validates one snapshot from url.
func (c *Client) Fetch(ctx context.Context, url string) (model.Snapshot, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return model.Snapshot{}, fmt.Errorf("%w: rate limit: %v", ErrFetch, err)
		}
	}
	var (
		data []byte
		err  error
	)
	if c.breaker != nil {
		var out interface{}
		out, err = c.breaker.Execute(func() (interface{}, error) {
			return c.get(ctx, url)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if err == nil {
			data, _ = out.([]byte)
		}
	} else {
		data, err = c.get(ctx, url)
	}
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := ParseSnapshot(data, c.stablecoins)
	if err != nil {
		return model.Snapshot{}, err
	}
	c.log.Debug("snapshot fetched",
		zap.String("url", url),
		zap.String("input_timestamp", snap.Timestamp),
	)
	return snap, nil
}

// get returns the data member of a successful envelope.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: http %d: %s", ErrFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrFetch, err)
	}
	if !env.Success {
		msg := "api returned success=false"
		if env.Error != "" {
			msg += ": " + env.Error
		}
		return nil, fmt.Errorf("%w: %s", ErrFetch, msg)
	}
	return env.Data, nil
}
