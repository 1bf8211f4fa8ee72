// Package feed streams text from readers and child processes into a
// console.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"

	"github.com/dshills/textconsole/internal/logging"
)

// ErrEmptyCommand is returned by Exec for a blank command line.
var ErrEmptyCommand = errors.New("feed: empty command")

// Target receives text. *console.Console and *console.LineBuffer satisfy it.
type Target interface {
	Write(text string)
	WriteLine(text string)
}

// copyChunk is the largest read Copy makes at once.
const copyChunk = 4 << 10

// Copy writes everything read from r into dst and returns the number of
// complete lines. Text is written as it arrives, so output without a
// newline (prompts, progress) shows up immediately. A carriage return
// directly before a newline is removed so CRLF input does not leave '\r'
// in the grid. Copy stops early when ctx is done.
func Copy(ctx context.Context, dst Target, r io.Reader) (int, error) {
	buf := make([]byte, copyChunk)
	var held []byte
	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			return lines, err
		}

		n, err := r.Read(buf)
		chunk := append(held, buf[:n]...)

		for {
			i := bytes.IndexByte(chunk, '\n')
			if i < 0 {
				break
			}
			dst.WriteLine(string(bytes.TrimSuffix(chunk[:i], []byte{'\r'})))
			lines++
			chunk = chunk[i+1:]
		}

		// Hold back a possible CRLF half and an incomplete rune until the
		// next read.
		keep := 0
		if err == nil {
			keep = incompleteSuffix(chunk)
			if keep == 0 && len(chunk) > 0 && chunk[len(chunk)-1] == '\r' {
				keep = 1
			}
		}
		if text := chunk[:len(chunk)-keep]; len(text) > 0 {
			dst.Write(string(text))
		}
		held = append(held[:0], chunk[len(chunk)-keep:]...)

		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}
	}
}

// incompleteSuffix returns the length of a truncated UTF-8 sequence at the
// end of p.
func incompleteSuffix(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return 0
			}
			return len(p) - i
		}
	}
	return 0
}

// ExecOptions configures Exec.
type ExecOptions struct {
	// Columns and Rows size the pseudo-terminal. Zero leaves the default.
	Columns, Rows int
	// Dir is the working directory of the command.
	Dir string
	// Log receives lifecycle messages. Defaults to the "feed" logger.
	Log *logrus.Entry
}

// ExitError reports a command that ran but did not succeed.
type ExitError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("feed: %q exited with code %d: %v", e.Command, e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exec runs command through the shell under a pseudo-terminal and streams
// its output into dst until the command exits or ctx is cancelled.
func Exec(ctx context.Context, dst Target, command string, opts ExecOptions) error {
	if strings.TrimSpace(command) == "" {
		return ErrEmptyCommand
	}
	log := opts.Log
	if log == nil {
		log = logging.Named("feed")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), "TERM=dumb")

	var size *pty.Winsize
	if opts.Columns > 0 && opts.Rows > 0 {
		size = &pty.Winsize{Cols: uint16(min(opts.Columns, 0xFFFF)), Rows: uint16(min(opts.Rows, 0xFFFF))}
	}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return fmt.Errorf("feed: start pty: %w", err)
	}
	defer ptmx.Close()

	log.WithField("command", command).Debug("command started")

	// Read until the child closes the pty, then reap it.
	_, copyErr := Copy(context.Background(), dst, ptmx)
	waitErr := cmd.Wait()

	// Reading a pty whose child has exited fails with EIO on Linux.
	if copyErr != nil && !errors.Is(copyErr, syscall.EIO) && !errors.Is(copyErr, os.ErrClosed) {
		log.WithError(copyErr).Warn("reading command output")
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExitError{Command: command, Code: code, Err: waitErr}
	}

	log.WithField("command", command).Debug("command finished")
	return nil
}
