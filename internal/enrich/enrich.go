// Package enrich starts the out-of-process enrichment step that writes
// summaries back into the shared store document.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBusy is returned when a previous run is still in flight. The
	// running process reads the store once at start, so the request is
	// dropped; the next new arrival or a restart picks the records up.
	ErrBusy = errors.New("enrichment already running")

	// ErrNoCommand is returned when no command is configured.
	ErrNoCommand = errors.New("no enrichment command configured")
)

// Trigger starts an enrichment run. It returns once the run has been
// accepted; it never waits for the run to finish.
type Trigger interface {
	Trigger(ctx context.Context) (runID string, err error)
}

// maxOutput caps the process output kept for logging.
const maxOutput = 4096

// CommandRunner runs a configured command as a detached process.
type CommandRunner struct {
	command []string
	dir     string
	logger  *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewCommandRunner creates a runner for command (program followed by its
// arguments), started in dir.
func NewCommandRunner(command []string, dir string, logger *slog.Logger) *CommandRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRunner{
		command: append([]string(nil), command...),
		dir:     dir,
		logger:  logger.With("component", "enrich"),
	}
}

// Trigger starts the command. The process is not tied to ctx: it keeps
// running after the caller returns.
func (r *CommandRunner) Trigger(ctx context.Context) (string, error) {
	if len(r.command) == 0 || strings.TrimSpace(r.command[0]) == "" {
		return "", ErrNoCommand
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !r.running.CompareAndSwap(false, true) {
		return "", ErrBusy
	}

	runID := uuid.NewString()
	out := &limitedBuffer{max: maxOutput}

	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "MAILSYNC_RUN_ID="+runID)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		r.running.Store(false)
		return "", fmt.Errorf("starting %s: %w", r.command[0], err)
	}

	r.logger.Info("enrichment started", "run_id", runID, "pid", cmd.Process.Pid)

	r.wg.Add(1)
	started := time.Now()
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)

		err := cmd.Wait()
		elapsed := time.Since(started).Round(time.Millisecond)
		if err != nil {
			r.logger.Warn("enrichment run failed",
				"run_id", runID, "elapsed", elapsed, "error", err, "output", out.String())
			return
		}
		r.logger.Info("enrichment finished", "run_id", runID, "elapsed", elapsed)
	}()

	return runID, nil
}

// Running reports whether a run is in flight.
func (r *CommandRunner) Running() bool {
	return r.running.Load()
}

// Wait blocks until every started run has exited.
func (r *CommandRunner) Wait() {
	r.wg.Wait()
}

var _ Trigger = (*CommandRunner)(nil)

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
