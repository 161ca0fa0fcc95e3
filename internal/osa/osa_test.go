package osa

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Buy milk", "Buy milk"},
		{"double quotes", `say "hi"`, `say \"hi\"`},
		{"backslash before quote", `a\"b`, `a\\\"b`},
		{"newline", "a\nb", `a\nb`},
		{"carriage return", "a\rb", `a\rb`},
		{"tab", "a\tb", `a\tb`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func quiet() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// flaky returns an Exec whose script invocation fails the given number of
// times before succeeding, without shelling out.
func flaky(failures, maxRetries int, calls *int) *Exec {
	e := NewExec(time.Second, maxRetries, time.Millisecond, quiet())
	e.runFn = func(ctx context.Context, script string) (string, error) {
		*calls++
		if *calls <= failures {
			return "", errors.New("app not ready")
		}
		return "ok", nil
	}
	return e
}

func TestRunRetryEventuallySucceeds(t *testing.T) {
	var calls int
	e := flaky(2, 3, &calls)
	out, err := e.RunRetry(context.Background(), "return 1")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestRunRetryExhausts(t *testing.T) {
	var calls int
	e := flaky(10, 3, &calls)
	_, err := e.RunRetry(context.Background(), "return 1")
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestNotifyEscapesAndSwallowsErrors(t *testing.T) {
	var scripts []string
	e := NewExec(time.Second, 1, time.Millisecond, quiet())
	e.runFn = func(ctx context.Context, script string) (string, error) {
		scripts = append(scripts, script)
		return "", errors.New("notification center unavailable")
	}

	e.Notify(context.Background(), "Taskbridge", `sync "deferred"`)

	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `display notification "sync \"deferred\""`)
	assert.Contains(t, scripts[0], `with title "Taskbridge"`)
}

func TestRunRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	e := flaky(10, 3, &calls)
	e.InitialDelay = time.Hour
	_, err := e.RunRetry(ctx, "return 1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
