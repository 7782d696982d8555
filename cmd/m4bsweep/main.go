package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"m4bsweep/internal/pipeline"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		code := exitCode(err)
		if code != exitInterrupted {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
}

const (
	exitFailure     = 1
	exitJobsFailed  = 2
	exitInterrupted = 130
)

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pipeline.ErrInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, pipeline.ErrJobsFailed):
		return exitJobsFailed
	default:
		return exitFailure
	}
}
