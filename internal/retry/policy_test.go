package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, Linear, p.Mode)
	assert.Equal(t, time.Second, p.Initial)
	assert.Equal(t, 30*time.Second, p.Max)
	assert.Equal(t, 2, p.MaxRetries)
	assert.NoError(t, p.Validate())
}

func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(Fixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial, "initial is clamped to max")
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, Fixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)

	p = NewPolicy("bogus", 0, 0, -1)
	assert.Equal(t, DefaultPolicy(), p)
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name string
		p    Policy
		want []time.Duration
	}{
		{"fixed", NewPolicy(Fixed, 100*ms, 500*ms, 3), []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{"linear", NewPolicy(Linear, 100*ms, 250*ms, 5), []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", NewPolicy(Exponential, 100*ms, 500*ms, 5), []time.Duration{100 * ms, 200 * ms, 400 * ms, 500 * ms}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Zero(t, tt.p.Delay(0))
			for i, want := range tt.want {
				assert.Equal(t, want, tt.p.Delay(i+1), "retry %d", i+1)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	assert.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	assert.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}

var errTransient = errors.New("transient")

func TestDoRetriesTransientErrors(t *testing.T) {
	p := NewPolicy(Fixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := Do(context.Background(), p, func(err error) bool { return errors.Is(err, errTransient) }, func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStops(t *testing.T) {
	p := NewPolicy(Fixed, time.Millisecond, time.Millisecond, 2)
	always := func(error) bool { return true }

	calls := 0
	err := Do(context.Background(), p, always, func() error { calls++; return errTransient })
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls, "first attempt plus two retries")

	calls = 0
	permanent := errors.New("permanent")
	err = Do(context.Background(), p, func(err error) bool { return errors.Is(err, errTransient) }, func() error { calls++; return permanent })
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = Do(ctx, NewPolicy(Fixed, time.Hour, time.Hour, 5), always, func() error { calls++; return errTransient })
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}
