// Package osa runs AppleScript snippets through osascript. It is the
// write path to both apps: neither upstream database is ever written
// directly. Calls are retried with bounded exponential backoff because the
// scripting bridge fails transiently while an app is launching or busy.
package osa

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes AppleScript. The engine's adapters depend on this
// interface so tests can substitute a fake bridge.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
	RunRetry(ctx context.Context, script string) (string, error)
}

// Exec is the production Runner backed by /usr/bin/osascript.
type Exec struct {
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
	Log          *logrus.Logger

	// runFn overrides the osascript invocation in tests.
	runFn func(ctx context.Context, script string) (string, error)
}

// NewExec returns a Runner with the given retry policy.
func NewExec(timeout time.Duration, maxRetries int, initialDelay time.Duration, log *logrus.Logger) *Exec {
	return &Exec{
		Timeout:      timeout,
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		Log:          log,
	}
}

// Run executes the script once and returns trimmed stdout.
func (e *Exec) Run(ctx context.Context, script string) (string, error) {
	if e.runFn != nil {
		return e.runFn(ctx, script)
	}
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("osascript: %s: %w", msg, err)
		}
		return "", fmt.Errorf("osascript: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// RunRetry executes the script with bounded exponential backoff. The last
// error is returned once attempts are exhausted.
func (e *Exec) RunRetry(ctx context.Context, script string) (string, error) {
	delay := e.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= e.MaxRetries; attempt++ {
		out, err := e.Run(ctx, script)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt < e.MaxRetries {
			e.Log.WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     e.MaxRetries,
				"delay":   delay,
			}).WithError(err).Warn("osascript failed, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}
	}
	return "", lastErr
}

// Notify posts a user notification. Best-effort: failures are logged at
// debug level and otherwise ignored.
func (e *Exec) Notify(ctx context.Context, title, message string) {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		Escape(message), Escape(title))
	if _, err := e.Run(ctx, script); err != nil {
		e.Log.WithError(err).Debug("notification failed")
	}
}

// Escape makes a string safe for embedding in an AppleScript string
// literal. Backslashes must be escaped first.
func Escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}
