// Package supervisor runs one interactive child process inside a
// pseudo-terminal and owns its whole lifecycle.
//
// A Process buffers everything the child paints into the terminal,
// captures stderr separately, enforces a hard wall-clock timeout, and
// kills the child's process group on every exit path: normal completion,
// timeout, and caller cancellation.
//
// Example usage:
//
//	proc, err := supervisor.Start(ctx, supervisor.Spec{
//	    Path:        "claude",
//	    Args:        []string{"/usage"},
//	    HardTimeout: 45 * time.Second,
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer proc.Terminate()
//
//	if proc.WaitFor(ctx, 20*time.Second, supervisor.Contains("Esc to cancel")) >= 0 {
//	    _ = proc.Send(supervisor.KeyEscape)
//	}
//	res, err := proc.Wait(ctx)
package supervisor

import "time"

// Default terminal geometry. Wide enough that the usage bars do not wrap.
const (
	DefaultRows = 50
	DefaultCols = 160
)

// KeyEscape is the cancel keystroke.
var KeyEscape = []byte{0x1b}

// Spec describes the child to run.
type Spec struct {
	// Path is the executable, resolved through PATH when it has no
	// separator.
	Path string

	// Args are passed after the executable name.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the parent environment.
	Env []string

	// Rows and Cols set the terminal size. Zero uses the defaults.
	Rows uint16
	Cols uint16

	// HardTimeout bounds the child's total lifetime from Start. When it
	// expires the process group is killed and Wait reports ErrTimeout.
	// Zero disables the bound.
	HardTimeout time.Duration

	// AnswerCursorQueries replies to "ESC[6n" cursor position requests
	// so TUIs that probe the terminal keep rendering.
	AnswerCursorQueries bool
}

// Result is what a finished child left behind.
type Result struct {
	// Stdout is everything read from the terminal, control sequences
	// included.
	Stdout string

	// Stderr is the separately captured error stream.
	Stderr string

	// ExitCode is the child's exit status, -1 when it was killed by a
	// signal or never reported one.
	ExitCode int

	// Duration is the wall time from Start to exit.
	Duration time.Duration
}
