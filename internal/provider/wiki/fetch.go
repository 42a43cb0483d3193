package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of FetchJSON. It is either a decoded payload or
// the degraded variant: an empty JSON object with Err saying why.
type Result struct {
	// Body is the decoded JSON value. Objects decode to map[string]any,
	// arrays to []any and numbers to json.Number.
	Body any
	// Status is the HTTP status of the last attempt, 0 if none was received.
	Status int
	// Attempts counts the requests actually sent or tried.
	Attempts int
	// Err is set on degraded results only.
	Err error
}

// Degraded reports whether the fetch gave up and Body is the empty fallback.
func (r Result) Degraded() bool { return r.Err != nil }

// ErrNonRetryable marks a response the client will not retry.
var ErrNonRetryable = errors.New("non-retryable response")

// statusError is a non-200 HTTP response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func (e *statusError) Unwrap() error {
	if retryableStatus(e.code) {
		return nil
	}
	return ErrNonRetryable
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// FetchJSON GETs rawURL and decodes the JSON response.
//
// Every attempt first waits on the rate gate. Network errors, undecodable
// bodies and 429/500/502/503/504 responses are retried up to the retry
// budget, with the delay doubling from the base backoff. Any other status
// gives up at once. FetchJSON never returns an error: on failure the
// Result is degraded and carries an empty object.
func (c *Client) FetchJSON(ctx context.Context, rawURL string) Result {
	log := c.log.WithFields(logrus.Fields{
		"url":        rawURL,
		"request_id": uuid.NewString(),
	})

	var res Result
	for {
		res.Attempts++
		if err := c.gate.Wait(ctx); err != nil {
			return res.degrade(log, fmt.Errorf("waiting for rate limit: %w", err))
		}

		status, body, err := c.get(ctx, rawURL)
		res.Status = status
		if err == nil {
			log.WithFields(logrus.Fields{"status": status, "attempts": res.Attempts}).Debug("fetched")
			res.Body = body
			return res
		}
		if errors.Is(err, ErrNonRetryable) {
			return res.degrade(log, err)
		}
		if ctx.Err() != nil {
			return res.degrade(log, fmt.Errorf("%w: %w", ctx.Err(), err))
		}
		if res.Attempts > c.maxRetries {
			return res.degrade(log, fmt.Errorf("giving up after %d attempts: %w", res.Attempts, err))
		}

		delay := c.backoff(res.Attempts)
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": res.Attempts,
			"delay":   delay.String(),
		}).Warn("transient failure, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return res.degrade(log, fmt.Errorf("backing off: %w", err))
		}
	}
}

// backoff is the delay before retry n, counting from 1.
func (c *Client) backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return c.baseBackoff << (n - 1)
}

func (r Result) degrade(log logrus.FieldLogger, err error) Result {
	log.WithError(err).WithFields(logrus.Fields{
		"status":   r.Status,
		"attempts": r.Attempts,
	}).Warn("fetch degraded to empty result")
	r.Body = map[string]any{}
	r.Err = err
	return r
}

// get performs a single attempt.
func (c *Client) get(ctx context.Context, rawURL string) (int, any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w: %w", ErrNonRetryable, err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return res.StatusCode, nil, &statusError{code: res.StatusCode}
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("reading body: %w", err)
	}
	body, err := decodeJSON(b)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("decoding body: %w", err)
	}
	return res.StatusCode, body, nil
}

// decodeJSON decodes exactly one JSON value, keeping numbers exact.
func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}
