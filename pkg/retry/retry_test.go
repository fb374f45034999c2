package retry_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/creditshop/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() retry.Config {
	return retry.Config{Name: "test", MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	cfg := fastConfig()
	cfg.Logger = &logger

	calls := 0
	err := retry.Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, buf.String(), "Retrying")
}

func TestDo_ReturnsLastError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("still down")
	})

	assert.EqualError(t, err, "still down")
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad credentials")
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		return retry.Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := retry.DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "pong", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}
