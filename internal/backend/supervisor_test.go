package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/land007/theia/internal/config"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directConfig(timeout time.Duration) config.BackendConfig {
	return config.BackendConfig{Mode: "direct", HandshakeTimeout: timeout}
}

func TestDirectModeSuccess(t *testing.T) {
	run := func(ctx context.Context) (Endpoint, error) {
		return Endpoint{Port: 7777}, nil
	}
	sup := NewSupervisor(directConfig(time.Second), run, logging.NewNop())

	ep, err := sup.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7777, ep.Port)
	assert.Equal(t, StateReady, sup.State())
}

func TestDirectModeFailure(t *testing.T) {
	run := func(ctx context.Context) (Endpoint, error) {
		return Endpoint{}, errors.New("port already in use")
	}
	sup := NewSupervisor(directConfig(time.Second), run, logging.NewNop())

	_, err := sup.Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateFailed, sup.State())
}

func TestHandshakeTimeout(t *testing.T) {
	run := func(ctx context.Context) (Endpoint, error) {
		<-ctx.Done() // backend that never signals readiness
		return Endpoint{}, ctx.Err()
	}
	sup := NewSupervisor(directConfig(50*time.Millisecond), run, logging.NewNop())

	start := time.Now()
	_, err := sup.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateFailed, sup.State())
}

func TestChildModeHandshake(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "sh",
		Args:             []string{"-c", `echo '{"port":7777}'; sleep 10`},
		HandshakeTimeout: 5 * time.Second,
	}
	sup := NewSupervisor(cfg, nil, logging.NewNop())
	defer sup.Stop()

	ep, err := sup.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7777, ep.Port)
	assert.Equal(t, StateReady, sup.State())
}

func TestChildModeIgnoresNoiseBeforeHandshake(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "sh",
		Args:             []string{"-c", `echo starting; echo '{"level":"info"}'; echo '{"port":4242}'; sleep 10`},
		HandshakeTimeout: 5 * time.Second,
	}
	sup := NewSupervisor(cfg, nil, logging.NewNop())
	defer sup.Stop()

	ep, err := sup.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4242, ep.Port)
}

func TestChildModeFirstMessageWins(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "sh",
		Args:             []string{"-c", `echo '{"port":1111}'; echo '{"port":2222}'; sleep 10`},
		HandshakeTimeout: 5 * time.Second,
	}
	sup := NewSupervisor(cfg, nil, logging.NewNop())
	defer sup.Stop()

	ep, err := sup.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1111, ep.Port)
}

func TestChildModeTimeoutFailsWithoutTerminated(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "sh",
		Args:             []string{"-c", "sleep 10"},
		HandshakeTimeout: 100 * time.Millisecond,
	}
	metrics := monitoring.NewMetrics()
	sup := NewSupervisor(cfg, nil, logging.NewNop()).WithMetrics(metrics)

	_, err := sup.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, sup.State())

	// The silent child is reaped, but Terminated is reserved for quit: a
	// timed-out startup transitions straight to Failed.
	assert.Equal(t, float64(0), testutil.ToFloat64(
		metrics.BackendTransitions.WithLabelValues(StateTerminated.String())))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.BackendTransitions.WithLabelValues(StateFailed.String())))
}

func TestChildModeExitBeforeHandshake(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "sh",
		Args:             []string{"-c", "exit 3"},
		HandshakeTimeout: 5 * time.Second,
	}
	sup := NewSupervisor(cfg, nil, logging.NewNop())

	_, err := sup.Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateFailed, sup.State())
}

func TestChildModeSpawnFailure(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "/nonexistent/backend-binary",
		HandshakeTimeout: 5 * time.Second,
	}
	sup := NewSupervisor(cfg, nil, logging.NewNop())

	_, err := sup.Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateFailed, sup.State())
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:             "child",
		Command:          "sh",
		Args:             []string{"-c", `echo '{"port":9999}'; sleep 10`},
		HandshakeTimeout: 5 * time.Second,
	}
	sup := NewSupervisor(cfg, nil, logging.NewNop())

	_, err := sup.Start(context.Background())
	require.NoError(t, err)

	sup.Stop()
	assert.Equal(t, StateTerminated, sup.State())

	// A second stop must not attempt another kill.
	sup.Stop()
	assert.Equal(t, StateTerminated, sup.State())
}

func TestStopWithoutChildIsNoop(t *testing.T) {
	sup := NewSupervisor(directConfig(time.Second), func(ctx context.Context) (Endpoint, error) {
		return Endpoint{Port: 1}, nil
	}, logging.NewNop())

	_, err := sup.Start(context.Background())
	require.NoError(t, err)

	sup.Stop()
	assert.Equal(t, StateTerminated, sup.State())
}
