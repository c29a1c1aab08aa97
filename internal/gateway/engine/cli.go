package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"tradewatch/internal/logger"
	"tradewatch/internal/pkg/text"
)

// ErrEngineNotFound means the configured executable could not be resolved.
var ErrEngineNotFound = errors.New("inference executable not found")

// ExitError reports a non-zero exit of the engine process.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("engine exited with status %d", e.Code)
	}
	return fmt.Sprintf("engine exited with status %d: %s", e.Code, text.Truncate(msg, 2000))
}

// CLIEngine spawns an executable, writes the composed prompt to its stdin and
// returns its stdout.
type CLIEngine struct {
	Command   string
	Args      []string
	Dir       string
	APIKeyEnv string
	APIKey    string
	Prompts   Prompts
}

func (e *CLIEngine) Name() string {
	return "cli:" + e.Command
}

func (e *CLIEngine) Invoke(ctx context.Context, promptContext string) (string, error) {
	path, err := exec.LookPath(e.Command)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEngineNotFound, e.Command)
	}
	cmd := exec.CommandContext(ctx, path, e.Args...)
	cmd.Dir = e.Dir
	cmd.Env = e.environ()
	cmd.Stdin = strings.NewReader(e.Prompts.Compose(promptContext))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debugf("engine: exec %s %v", path, e.Args)
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.String(), fmt.Errorf("engine %s aborted: %w", e.Command, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return stdout.String(), fmt.Errorf("run engine %s: %w", e.Command, err)
	}
	return stdout.String(), nil
}

func (e *CLIEngine) environ() []string {
	env := os.Environ()
	name := strings.TrimSpace(e.APIKeyEnv)
	if name == "" || e.APIKey == "" {
		return env
	}
	return append(env, name+"="+e.APIKey)
}
