package terminal

import (
	"fmt"
	"strings"
)

// Frame is one command's worth of output cut from the shell stream
type Frame struct {
	Output      string
	CurrentPath string
	Stderr      string
	HasError    bool
}

// Framer splits the output of a shell into per-command frames.
//
// Every command is followed by a trailer that prints a blank line, the
// working directory and the delimiter on stdout, then the delimiter again on
// stderr. stdout and stderr are read independently, so a frame is complete
// only once both pipes have delivered their delimiter. The stdout text before
// the delimiter is the command output and its last line is the working
// directory. Any stderr text before the delimiter flags the frame as failed
// and is appended to the output with each line prefixed by the error marker.
//
// Framer is not safe for concurrent use; a session loop owns it.
type Framer struct {
	delimiter   string
	errorMarker string

	stdout stream
	stderr stream
}

// stream buffers one pipe up to its next delimiter.
type stream struct {
	buf strings.Builder

	// A delimiter consumed at the very end of the buffer leaves its line
	// terminator to arrive with the next chunk.
	skipNewline bool
}

func (s *stream) append(chunk string) {
	if s.skipNewline && chunk != "" {
		chunk = strings.TrimPrefix(chunk, "\r")
		chunk = strings.TrimPrefix(chunk, "\n")
		s.skipNewline = false
	}
	s.buf.WriteString(chunk)
}

// cut returns the text before the delimiter at idx and keeps only what
// follows the delimiter line.
func (s *stream) cut(idx int, delimiter string) string {
	data := s.buf.String()
	raw := data[:idx]
	rest := strings.TrimPrefix(data[idx+len(delimiter):], "\r")
	switch {
	case strings.HasPrefix(rest, "\n"):
		rest = rest[1:]
	case rest == "":
		s.skipNewline = true
	}

	s.buf.Reset()
	s.buf.WriteString(rest)
	return raw
}

func (s *stream) reset() {
	s.buf.Reset()
	s.skipNewline = false
}

// NewFramer creates a framer for the given delimiter and stderr marker.
func NewFramer(delimiter, errorMarker string) *Framer {
	return &Framer{
		delimiter:   delimiter,
		errorMarker: errorMarker,
	}
}

// Trailer returns the shell snippet written after each command. It prints a
// newline first so output without a trailing newline cannot merge with the
// working directory line.
func (f *Framer) Trailer() string {
	return fmt.Sprintf("printf '\\n%%s\\n%%s\\n' \"$PWD\" '%[1]s'; printf '%%s\\n' '%[1]s' >&2\n", f.delimiter)
}

// Frame wraps a command with the trailer.
func (f *Framer) Frame(command string) string {
	command = strings.TrimRight(command, "\r\n")
	return command + "\n" + f.Trailer()
}

// Append adds a stdout chunk.
func (f *Framer) Append(chunk string) {
	f.stdout.append(chunk)
}

// AppendError adds a stderr chunk. Lines are marked when the frame is cut,
// so a line split across reads stays one line.
func (f *Framer) AppendError(chunk string) {
	f.stderr.append(chunk)
}

// Buffered returns the unconsumed stdout.
func (f *Framer) Buffered() string {
	return f.stdout.buf.String()
}

// BufferedError returns the unconsumed stderr.
func (f *Framer) BufferedError() string {
	return f.stderr.buf.String()
}

// StrayStderr returns buffered stderr that precedes the next delimiter. A
// partial delimiter alone is not stray.
func (f *Framer) StrayStderr() (string, bool) {
	data := f.stderr.buf.String()
	if i := strings.Index(data, f.delimiter); i >= 0 {
		data = data[:i]
	} else if strings.HasPrefix(f.delimiter, data) {
		return "", false
	}
	return data, data != ""
}

// Reset discards buffered output.
func (f *Framer) Reset() {
	f.stdout.reset()
	f.stderr.reset()
}

// Next extracts the frame ending at the first delimiter on both pipes, if
// both are buffered.
func (f *Framer) Next() (Frame, bool) {
	outIdx := strings.Index(f.stdout.buf.String(), f.delimiter)
	if outIdx < 0 {
		return Frame{}, false
	}
	errIdx := strings.Index(f.stderr.buf.String(), f.delimiter)
	if errIdx < 0 {
		return Frame{}, false
	}

	out := f.stdout.cut(outIdx, f.delimiter)
	errOut := f.stderr.cut(errIdx, f.delimiter)
	return f.parse(out, errOut), true
}

func (f *Framer) parse(out, errOut string) Frame {
	out = strings.TrimRight(out, "\r\n")

	var frame Frame
	if i := strings.LastIndex(out, "\n"); i >= 0 {
		frame.CurrentPath = strings.TrimRight(out[i+1:], "\r")
		frame.Output = strings.TrimRight(out[:i], "\r\n")
	} else {
		frame.CurrentPath = out
	}

	if errOut == "" {
		return frame
	}
	frame.HasError = true

	lines := strings.Split(strings.TrimRight(errOut, "\r\n"), "\n")
	marked := make([]string, len(lines))
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
		marked[i] = f.errorMarker + lines[i]
	}
	frame.Stderr = strings.Join(lines, "\n")

	if frame.Output != "" {
		frame.Output += "\n"
	}
	frame.Output += strings.Join(marked, "\n")
	return frame
}
