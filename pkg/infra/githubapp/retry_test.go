package githubapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v42/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

var testPolicy = Policy{
	Name:         "test",
	MaxAttempts:  4,
	BaseInterval: time.Millisecond,
	MaxInterval:  10 * time.Millisecond,
}

func ghError(code int) error {
	req, _ := http.NewRequest(http.MethodGet, "https://api.github.test/test", nil)
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: code, Request: req},
		Message:  http.StatusText(code),
	}
}

func TestRetrierRecoversFromTransient(t *testing.T) {
	rt := newRetrier(testPolicy, &Gate{})

	calls := 0
	err := rt.Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return ghError(http.StatusBadGateway)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierExhaustsBudget(t *testing.T) {
	rt := newRetrier(testPolicy, &Gate{})

	calls := 0
	err := rt.Do(context.Background(), "test", func() error {
		calls++
		return ghError(http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRetryExhausted))
	assert.Equal(t, testPolicy.MaxAttempts, calls)
}

func TestRetrierPermanentFailsImmediately(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, types.ErrNotFound},
		{http.StatusForbidden, types.ErrAccessDenied},
		{http.StatusUnauthorized, types.ErrAccessDenied},
		{http.StatusUnprocessableEntity, types.ErrUnexpectedGitHubResp},
	}

	for _, tc := range cases {
		rt := newRetrier(testPolicy, &Gate{})
		calls := 0
		err := rt.Do(context.Background(), "test", func() error {
			calls++
			return ghError(tc.code)
		})
		require.Error(t, err, "code %d", tc.code)
		assert.True(t, errors.Is(err, tc.want), "code %d", tc.code)
		assert.Equal(t, 1, calls, "code %d", tc.code)
	}
}

func TestClassifyAbuseRetryAfter(t *testing.T) {
	after := 42 * time.Millisecond
	wait, transient := classify(&github.AbuseRateLimitError{RetryAfter: &after}, testPolicy, 1)
	assert.True(t, transient)
	assert.Equal(t, after, wait)

	wait, transient = classify(&github.AbuseRateLimitError{}, testPolicy, 2)
	assert.True(t, transient)
	assert.Equal(t, backoff(testPolicy, 2), wait)
}

func TestClassifyRateLimitReset(t *testing.T) {
	reset := github.Timestamp{Time: time.Now().Add(time.Hour)}
	wait, transient := classify(&github.RateLimitError{Rate: github.Rate{Reset: reset}}, testPolicy, 1)
	assert.True(t, transient)
	assert.Greater(t, wait, 50*time.Minute)

	// A reset in the past falls back to the policy base.
	past := github.Timestamp{Time: time.Now().Add(-time.Minute)}
	wait, transient = classify(&github.RateLimitError{Rate: github.Rate{Reset: past}}, testPolicy, 1)
	assert.True(t, transient)
	assert.Equal(t, testPolicy.BaseInterval, wait)
}

func TestRetrierDecodeErrorFailsImmediately(t *testing.T) {
	rt := newRetrier(testPolicy, &Gate{})

	calls := 0
	err := rt.Do(context.Background(), "test", func() error {
		calls++
		return json.Unmarshal([]byte(`{"not":"an array"`), &[]string{})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMalformedResponse))
	assert.Equal(t, 1, calls)
}

func TestClassifyDecodeErrorNotTransient(t *testing.T) {
	var into []string
	cases := []error{
		json.Unmarshal([]byte(`{"not":"an array"`), &into),
		json.Unmarshal([]byte(`{"a":1}`), &into),
		io.ErrUnexpectedEOF,
	}
	for _, err := range cases {
		require.Error(t, err)
		_, transient := classify(err, testPolicy, 1)
		assert.False(t, transient, "%v", err)
	}
}

func TestClassifyConnectionError(t *testing.T) {
	wait, transient := classify(errors.New("connection reset by peer"), testPolicy, 1)
	assert.True(t, transient)
	assert.Equal(t, testPolicy.BaseInterval, wait)
}

func TestBackoffCap(t *testing.T) {
	assert.Equal(t, testPolicy.BaseInterval, backoff(testPolicy, 1))
	assert.Equal(t, 2*testPolicy.BaseInterval, backoff(testPolicy, 2))
	assert.Equal(t, testPolicy.MaxInterval, backoff(testPolicy, 20))
	assert.Equal(t, testPolicy.MaxInterval, backoff(testPolicy, 80))
}

func TestGateFreezeNeverMovesBackwards(t *testing.T) {
	var gate Gate
	gate.Freeze(50 * time.Millisecond)
	gate.Freeze(5 * time.Millisecond)

	start := time.Now()
	require.NoError(t, gate.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGateSharedAcrossWorkers(t *testing.T) {
	var gate Gate
	gate.Freeze(30 * time.Millisecond)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Wait(context.Background()))
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestGateWaitCanceled(t *testing.T) {
	var gate Gate
	gate.Freeze(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
