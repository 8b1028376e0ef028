package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"

	"github.com/0xmhha/quota-meter/pkg/logger"
)

const (
	// drainGrace bounds how long Wait keeps reading the terminal after
	// the child exits. Grandchildren can hold the terminal open.
	drainGrace = 500 * time.Millisecond

	// reapGrace bounds how long Terminate waits for the killed child.
	reapGrace = 3 * time.Second

	readChunk = 4096
)

var cursorQuery = []byte("\x1b[6n")

// Process is a running child attached to a pseudo-terminal.
//
// Thread-safety: Output, Send and Terminate may be called concurrently.
// WaitFor and Wait are meant for a single caller.
type Process struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	spec   Spec
	logger logger.Logger

	mu     sync.Mutex
	out    bytes.Buffer
	stderr lockedBuffer

	updates  chan struct{}
	readDone chan struct{}
	exited   chan struct{}

	started  time.Time
	finished time.Time

	timedOut  atomic.Bool
	terminate sync.Once
	stop      chan struct{}
}

// Start spawns spec in a new pseudo-terminal.
//
// The hard timeout and ctx cancellation are enforced from here on; either
// one kills the process group. Callers must still call Terminate, usually
// deferred, to release the terminal on early returns.
func Start(ctx context.Context, spec Spec, log logger.Logger) (*Process, error) {
	if spec.Path == "" {
		return nil, ErrEmptyPath
	}
	if spec.Rows == 0 {
		spec.Rows = DefaultRows
	}
	if spec.Cols == 0 {
		spec.Cols = DefaultCols
	}

	cmd := exec.Command(spec.Path, spec.Args...) // nolint:gosec
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = drainGrace

	p := &Process{
		cmd:      cmd,
		spec:     spec,
		logger:   log.With("component", "supervisor", "path", spec.Path),
		updates:  make(chan struct{}, 1),
		readDone: make(chan struct{}),
		exited:   make(chan struct{}),
		stop:     make(chan struct{}),
	}

	// pty only attaches the terminal to streams that are still nil.
	cmd.Stderr = &p.stderr

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: spec.Rows, Cols: spec.Cols})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStart, spec.Path, err)
	}
	p.ptmx = ptmx
	p.started = time.Now()

	p.logger.Debug("process started", "pid", cmd.Process.Pid, "args", spec.Args)

	go p.readLoop()
	go p.waitLoop()
	go p.watch(ctx)

	return p, nil
}

func (p *Process) readLoop() {
	defer close(p.readDone)

	buf := make([]byte, readChunk)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			p.mu.Lock()
			p.out.Write(chunk)
			p.mu.Unlock()

			if p.spec.AnswerCursorQueries && bytes.Contains(chunk, cursorQuery) {
				_, _ = p.ptmx.Write([]byte("\x1b[1;1R"))
			}

			select {
			case p.updates <- struct{}{}:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.finished = time.Now()
	p.mu.Unlock()

	p.logger.Debug("process exited", "err", err)

	close(p.exited)
}

// watch enforces the hard timeout and caller cancellation.
func (p *Process) watch(ctx context.Context) {
	var deadline <-chan time.Time
	if p.spec.HardTimeout > 0 {
		timer := time.NewTimer(p.spec.HardTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-deadline:
		p.timedOut.Store(true)
		p.logger.Warn("hard timeout reached, killing process group", "timeout", p.spec.HardTimeout)
		p.Terminate() // nolint:errcheck
	case <-ctx.Done():
		p.logger.Debug("context canceled, killing process group")
		p.Terminate() // nolint:errcheck
	case <-p.exited:
	case <-p.stop:
	}
}

// Output returns everything read from the terminal so far.
func (p *Process) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} {
	return p.exited
}

// Send writes keystrokes to the terminal.
func (p *Process) Send(keys []byte) error {
	select {
	case <-p.exited:
		return ErrNotRunning
	case <-p.stop:
		return ErrNotRunning
	default:
	}
	if _, err := p.ptmx.Write(keys); err != nil {
		return fmt.Errorf("failed to write to terminal: %w", err)
	}
	return nil
}

// WaitFor blocks until match reports a non-negative index for the output
// read so far, the inner timeout expires, the terminal reaches end of
// stream, or ctx is done. It returns the matched index or -1.
func (p *Process) WaitFor(ctx context.Context, timeout time.Duration, match func(output string) int) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if i := match(p.Output()); i >= 0 {
			return i
		}
		select {
		case <-p.updates:
		case <-p.readDone:
			return match(p.Output())
		case <-timer.C:
			return -1
		case <-ctx.Done():
			return -1
		}
	}
}

// Wait blocks until the child exits and returns what it produced. It
// returns ErrTimeout when the hard timeout killed the child and ctx.Err()
// when ctx ended first. The Result is populated in every case.
func (p *Process) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-p.exited:
	case <-ctx.Done():
		p.Terminate() // nolint:errcheck
	}

	select {
	case <-p.readDone:
	case <-time.After(drainGrace):
	}

	res := p.result()
	switch {
	case p.timedOut.Load():
		return res, ErrTimeout
	case ctx.Err() != nil:
		return res, ctx.Err()
	}
	return res, nil
}

// Terminate kills the process group if it is still running and releases
// the terminal. It is safe to call more than once.
func (p *Process) Terminate() error {
	var err error
	p.terminate.Do(func() {
		close(p.stop)

		select {
		case <-p.exited:
		default:
			if kerr := killGroup(p.cmd); kerr != nil {
				err = fmt.Errorf("failed to kill process: %w", kerr)
			}
			select {
			case <-p.exited:
			case <-time.After(reapGrace):
				p.logger.Warn("process did not exit after kill")
			}
		}

		if cerr := p.ptmx.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
			err = fmt.Errorf("failed to close terminal: %w", cerr)
		}
	})
	return err
}

func (p *Process) result() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &Result{
		Stdout:   p.out.String(),
		Stderr:   p.stderr.String(),
		ExitCode: -1,
	}

	select {
	case <-p.exited:
		res.Duration = p.finished.Sub(p.started)
		if p.cmd.ProcessState != nil {
			res.ExitCode = p.cmd.ProcessState.ExitCode()
		}
	default:
		res.Duration = time.Since(p.started)
	}
	return res
}

// Contains returns a WaitFor matcher reporting the index of the first
// marker found in the output.
func Contains(markers ...string) func(string) int {
	return func(output string) int {
		for i, m := range markers {
			if strings.Contains(output, m) {
				return i
			}
		}
		return -1
	}
}

// lockedBuffer is a bytes.Buffer safe for the exec copy goroutine and
// concurrent readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
