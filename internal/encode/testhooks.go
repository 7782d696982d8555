package encode

import (
	"context"
	"os/exec"
	"time"
)

// SetCommandContextForTests overrides process construction during tests.
func SetCommandContextForTests(fn func(context.Context, string, ...string) *exec.Cmd) func() {
	previous := commandContext
	commandContext = fn
	return func() {
		commandContext = previous
	}
}

// SetMovieDurationForTests overrides the MP4 movie header reader during tests.
func SetMovieDurationForTests(fn func(string) (time.Duration, error)) func() {
	previous := movieDuration
	movieDuration = fn
	return func() {
		movieDuration = previous
	}
}
