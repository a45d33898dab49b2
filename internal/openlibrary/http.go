package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
)

// getJSON performs a single GET and maps failures onto the shared error types:
// 429 is a RateLimitError, 5xx and network failures are TransientErrors and
// 404 is ErrNotFound.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, target any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("openlibrary %s: creating request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ookerrors.NewTransientError("openlibrary "+op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ookerrors.NewRateLimitErrorWithRetry("openlibrary "+op+": rate limited", parseRetryAfter(resp))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("openlibrary %s: %w", op, ookerrors.ErrNotFound)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ookerrors.NewTransientError("openlibrary "+op,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("openlibrary %s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			return ookerrors.NewTransientError("openlibrary "+op, err)
		}
		return fmt.Errorf("openlibrary %s: decoding response: %w", op, err)
	}
	return nil
}

// parseRetryAfter reads Retry-After as delay-seconds or an HTTP date.
func parseRetryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
