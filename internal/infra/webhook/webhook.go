package infra_webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/config"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

const (
	defaultTimeout = 5 * time.Second
	retryBackoff   = 200 * time.Millisecond
)

type RRBalancer struct {
	mu      sync.Mutex
	servers []string
	cur     int
}

func (b *RRBalancer) NextServer() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.servers) == 0 {
		return ""
	}

	b.cur++
	n := b.cur
	index := (n - 1) % len(b.servers)
	return b.servers[index]
}

// HTTPRoundNotifier posts every completed round to the configured
// endpoints. With no endpoints it does nothing.
type HTTPRoundNotifier struct {
	balancer   *RRBalancer
	retries    int
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg config.Notifier) *HTTPRoundNotifier {
	servers := make([]string, 0, len(cfg.URLs))
	for _, u := range cfg.URLs {
		if u != "" {
			servers = append(servers, u)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}

	return &HTTPRoundNotifier{
		balancer: &RRBalancer{
			servers: servers},
		retries: retries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
}

var errRejected = errors.New("round rejected by endpoint")

// PostRound tries up to the configured number of attempts, moving to the
// next endpoint after each failure.
func (c *HTTPRoundNotifier) PostRound(ctx context.Context, round model.RoundSnapshot) error {
	if len(c.balancer.servers) == 0 {
		return nil
	}

	jsonBody, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		server := c.balancer.NextServer()
		if lastErr = c.post(ctx, server, jsonBody); lastErr == nil {
			return nil
		}
		c.logger.Warn("round webhook failed",
			"room", round.RoomKey,
			"round", round.Round.ID,
			"endpoint", server,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("failed to post round after %d attempts: %w", c.retries, lastErr)
}

func (c *HTTPRoundNotifier) post(ctx context.Context, server string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post round: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", errRejected, resp.StatusCode)
	}
	return nil
}
