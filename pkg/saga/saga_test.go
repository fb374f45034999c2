package saga_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/creditshop/pkg/saga"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var executed []string

	s := saga.New("checkout", zerolog.Nop()).
		AddStep(saga.Step{
			Name:    "persist",
			Execute: func(ctx context.Context) error { executed = append(executed, "persist"); return nil },
		}).
		AddStep(saga.Step{
			Name:    "preference",
			Execute: func(ctx context.Context) error { executed = append(executed, "preference"); return nil },
		})

	failedStep, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, failedStep)
	assert.Equal(t, []string{"persist", "preference"}, executed)
}

func TestSaga_FailedStepIsNotCompensated(t *testing.T) {
	var executed []string

	s := saga.New("checkout", zerolog.Nop()).
		AddStep(saga.Step{
			Name:       "persist",
			Execute:    func(ctx context.Context) error { executed = append(executed, "persist"); return nil },
			Compensate: func(ctx context.Context) error { executed = append(executed, "delete"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "preference",
			Execute:    func(ctx context.Context) error { return errors.New("processor down") },
			Compensate: func(ctx context.Context) error { executed = append(executed, "never"); return nil },
		}).
		AddStep(saga.Step{
			Name:    "unreached",
			Execute: func(ctx context.Context) error { executed = append(executed, "unreached"); return nil },
		})

	failedStep, err := s.Execute(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, failedStep)
	assert.Contains(t, err.Error(), "processor down")
	assert.Equal(t, []string{"persist", "delete"}, executed)
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	var compensated []string

	s := saga.New("checkout", zerolog.Nop()).
		AddStep(saga.Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = append(compensated, "comp1"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = append(compensated, "comp2"); return nil },
		}).
		AddStep(saga.Step{
			Name:    "step3",
			Execute: func(ctx context.Context) error { return errors.New("step3 failed") },
		})

	failedStep, err := s.Execute(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, failedStep)
	assert.Equal(t, []string{"comp2", "comp1"}, compensated)
}

func TestSaga_WrapsStepError(t *testing.T) {
	sentinel := errors.New("https required")

	s := saga.New("checkout", zerolog.Nop()).
		AddStep(saga.Step{
			Name:    "validate",
			Execute: func(ctx context.Context) error { return sentinel },
		})

	_, err := s.Execute(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestSaga_CompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compCtxErr error

	s := saga.New("checkout", zerolog.Nop()).
		AddStep(saga.Step{
			Name:       "persist",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compCtxErr = ctx.Err(); return nil },
		}).
		AddStep(saga.Step{
			Name: "preference",
			Execute: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		})

	_, err := s.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compCtxErr)
}

func TestSaga_CompensationErrorsCollectedAndLogged(t *testing.T) {
	var buf bytes.Buffer

	s := saga.New("checkout", zerolog.New(&buf)).
		AddStep(saga.Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("comp1 failed") },
		}).
		AddStep(saga.Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("comp2 failed") },
		}).
		AddStep(saga.Step{
			Name:    "step3",
			Execute: func(ctx context.Context) error { return errors.New("step3 failed") },
		})

	_, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comp1 failed")
	assert.Contains(t, err.Error(), "comp2 failed")
	assert.Contains(t, buf.String(), "Saga compensation failed")
}

func TestSaga_NoSteps(t *testing.T) {
	failedStep, err := saga.New("empty", zerolog.Nop()).Execute(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, -1, failedStep)
}
