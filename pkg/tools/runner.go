// Package tools runs the external command line tools the service relies
// on for document cleanup and format conversion.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seqimprove/seqimprove-go/pkg/metrics"
)

// ErrToolFailed is returned when a tool exits unsuccessfully, times out
// or produces no output
var ErrToolFailed = errors.New("external tool failed")

// Runner executes command templates. A template is split into fields
// before substitution, so placeholder values never split into several
// arguments. {input} and {output} are always available; other
// placeholders come from the vars passed to Run.
type Runner struct {
	timeout time.Duration
	workDir string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRunner creates a runner. An empty workDir uses the system temp
// directory.
func NewRunner(timeout time.Duration, workDir string, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		timeout: timeout,
		workDir: workDir,
		logger:  logger,
		metrics: m,
	}
}

// Run writes input to a temporary file, runs the tool and returns the
// contents of its output file
func (r *Runner) Run(ctx context.Context, tool, template, input string, vars map[string]string) (out string, err error) {
	defer func() { r.metrics.RecordToolRun(tool, err) }()

	fields := strings.Fields(template)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: %s has no command configured", ErrToolFailed, tool)
	}

	id := uuid.New().String()
	inPath := filepath.Join(r.workDir, fmt.Sprintf("%s-%s.in", tool, id))
	outPath := filepath.Join(r.workDir, fmt.Sprintf("%s-%s.out", tool, id))
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, []byte(input), 0600); err != nil {
		return "", fmt.Errorf("failed to write tool input: %w", err)
	}

	values := map[string]string{"input": inPath, "output": outPath}
	for k, v := range vars {
		values[k] = v
	}
	args := make([]string, len(fields))
	for i, f := range fields {
		args[i] = substitute(f, values)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.workDir
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		r.logger.Warn("tool failed", "tool", tool, "error", err, "stderr", tail(stderr.String(), 512))
		return "", fmt.Errorf("%w: %s: %v", ErrToolFailed, tool, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s produced no output", ErrToolFailed, tool)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("%w: %s produced empty output", ErrToolFailed, tool)
	}

	r.logger.Debug("tool finished", "tool", tool, "duration", time.Since(start))
	return string(data), nil
}

func substitute(field string, values map[string]string) string {
	for k, v := range values {
		field = strings.ReplaceAll(field, "{"+k+"}", v)
	}
	return field
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
