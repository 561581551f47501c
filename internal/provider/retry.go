package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"
)

// statusError marks an HTTP response the caller should not retry.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.code, e.body)
}

// fetchBody performs the request built by build with exponential backoff.
// Connection failures, 429s and 5xx responses are retried; any other non-200
// status is permanent.
func fetchBody(ctx context.Context, client *http.Client, build func(context.Context) (*http.Request, error), maxTries int) ([]byte, error) {
	if maxTries < 1 {
		maxTries = 1
	}

	op := func() ([]byte, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		serr := &statusError{code: resp.StatusCode, body: sanitizeText(string(body), 200)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(maxTries)),
	)
}
