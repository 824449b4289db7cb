package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/shrimpsizemoose/lussekatt/internal/fetcher"
)

// NewSubprocessRunner re-invokes the given executable in single-attempt mode,
// one independent process per pair. A crash or leak in one attempt cannot
// corrupt the dispatcher or any other attempt.
func NewSubprocessRunner(executable, configPath string) WorkerRunner {
	return func(ctx context.Context, courseID, assignmentID, uid string) (fetcher.Outcome, string, error) {
		cmd := exec.CommandContext(
			ctx,
			executable,
			"--config", configPath,
			"--clone", courseID, assignmentID, uid,
		)

		var output bytes.Buffer
		cmd.Stdout = &output
		cmd.Stderr = &output

		err := cmd.Run()
		if err == nil {
			return fetcher.Success, output.String(), nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// Benign no-op: repository missing or trigger not met.
			return fetcher.NotTriggered, output.String(), nil
		}
		return fetcher.Failed, output.String(), err
	}
}

// NewInProcessRunner wraps a worker directly, preserving the runner contract
// without process isolation. At most one attempt runs at a time, so the
// one-worker-per-triple invariant holds trivially.
func NewInProcessRunner(w *fetcher.Worker) WorkerRunner {
	return func(ctx context.Context, courseID, assignmentID, uid string) (fetcher.Outcome, string, error) {
		outcome, err := w.Run(ctx, courseID, assignmentID, uid)
		if outcome == fetcher.Failed {
			return outcome, "", err
		}
		return outcome, "", nil
	}
}
