package githubapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v42/github"
	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// Policy bounds the retry loop of one class of endpoints. The search API
// has its own, stricter rate budget than the regular list/read endpoints,
// so it gets fewer attempts and a longer base backoff.
type Policy struct {
	Name         string
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

var (
	standardPolicy = Policy{
		Name:         "standard",
		MaxAttempts:  4,
		BaseInterval: 2 * time.Second,
		MaxInterval:  time.Minute,
	}
	searchPolicy = Policy{
		Name:         "search",
		MaxAttempts:  3,
		BaseInterval: 10 * time.Second,
		MaxInterval:  2 * time.Minute,
	}
)

// Gate is the cooldown shared by every worker of a run. When any call
// hits a rate limit, the gate freezes and all workers wait it out instead
// of burning the remaining budget from their own goroutines.
type Gate struct {
	mu    sync.Mutex
	until time.Time
}

// Freeze extends the cooldown deadline. It never moves the deadline
// backwards.
func (x *Gate) Freeze(d time.Duration) {
	until := time.Now().Add(d)
	x.mu.Lock()
	if until.After(x.until) {
		x.until = until
	}
	x.mu.Unlock()
}

// Wait blocks until the cooldown has passed or the context is canceled.
// The deadline can be extended by another worker while waiting, so it is
// re-checked after every sleep.
func (x *Gate) Wait(ctx context.Context) error {
	for {
		x.mu.Lock()
		until := x.until
		x.mu.Unlock()

		d := time.Until(until)
		if d <= 0 {
			return nil
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return goerr.Wrap(ctx.Err())
		case <-timer.C:
		}
	}
}

type retrier struct {
	policy Policy
	gate   *Gate
}

func newRetrier(policy Policy, gate *Gate) *retrier {
	return &retrier{policy: policy, gate: gate}
}

// Do runs one remote call under the retry policy. Transient failures
// (rate limit, abuse limit, 5xx, connection errors) freeze the shared
// gate and retry up to the attempt ceiling; anything else fails right
// away without consuming budget.
func (x *retrier) Do(ctx context.Context, endpoint string, call func() error) error {
	for attempt := 1; ; attempt++ {
		if err := x.gate.Wait(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil {
			if attempt > 1 {
				utils.Logger.With("endpoint", endpoint).With("attempt", attempt).Debug("call recovered after retry")
			}
			return nil
		}

		wait, transient := classify(err, x.policy, attempt)
		if !transient {
			return permanent(err, endpoint)
		}
		if attempt >= x.policy.MaxAttempts {
			return goerr.Wrap(types.ErrRetryExhausted, err.Error()).
				With("endpoint", endpoint).With("attempts", attempt).With("policy", x.policy.Name)
		}

		utils.Logger.With("endpoint", endpoint).
			With("attempt", attempt).
			With("wait", wait.String()).
			With("cause", err.Error()).
			Warn("transient GitHub failure, backing off")
		x.gate.Freeze(wait)
	}
}

// classify decides whether an error is worth retrying and how long to
// wait. An explicit server hint is honored as-is; otherwise exponential
// backoff from the policy's base, capped at its ceiling.
func classify(err error, policy Policy, attempt int) (time.Duration, bool) {
	var rateLimit *github.RateLimitError
	if errors.As(err, &rateLimit) {
		if wait := time.Until(rateLimit.Rate.Reset.Time); wait > 0 {
			return wait, true
		}
		return policy.BaseInterval, true
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return *abuse.RetryAfter, true
		}
		return backoff(policy, attempt), true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		if ghErr.Response != nil && ghErr.Response.StatusCode >= http.StatusInternalServerError {
			return backoff(policy, attempt), true
		}
		return 0, false
	}

	// A page that does not decode will not decode on the next attempt
	// either; retrying would only mask the broken response.
	if isDecodeError(err) {
		return 0, false
	}

	// Anything else is a connection-level failure (DNS, reset, timeout).
	return backoff(policy, attempt), true
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func backoff(policy Policy, attempt int) time.Duration {
	d := policy.BaseInterval << (attempt - 1)
	if d > policy.MaxInterval || d <= 0 {
		d = policy.MaxInterval
	}
	return d
}

// permanent maps a non-transient GitHub error onto the error taxonomy so
// callers can decide between skip-and-warn and aborting.
func permanent(err error, endpoint string) error {
	if isDecodeError(err) {
		return goerr.Wrap(types.ErrMalformedResponse, err.Error()).With("endpoint", endpoint)
	}

	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) {
		return goerr.Wrap(err).With("endpoint", endpoint)
	}

	code := 0
	if ghErr.Response != nil {
		code = ghErr.Response.StatusCode
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return goerr.Wrap(types.ErrAccessDenied, ghErr.Message).With("endpoint", endpoint).With("code", code)
	case http.StatusNotFound:
		return goerr.Wrap(types.ErrNotFound).With("endpoint", endpoint)
	default:
		return goerr.Wrap(types.ErrUnexpectedGitHubResp, ghErr.Message).
			With("endpoint", endpoint).With("code", code)
	}
}
