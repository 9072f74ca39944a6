package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closeStderr appends the stderr half of the trailer.
func closeStderr(f *Framer) {
	f.AppendError(testDelimiter + "\n")
}

func TestFramerExtractsOutputAndPath(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		output string
		path   string
	}{
		{
			name:   "bare delimiter",
			stream: "hello\n/home/user\n" + testDelimiter,
			output: "hello",
			path:   "/home/user",
		},
		{
			name:   "trailer output",
			stream: "hello\n\n/home/user\n" + testDelimiter + "\n",
			output: "hello",
			path:   "/home/user",
		},
		{
			name:   "output without newline",
			stream: "no-newline\n/tmp\n" + testDelimiter + "\n",
			output: "no-newline",
			path:   "/tmp",
		},
		{
			name:   "empty output",
			stream: "\n/tmp\n" + testDelimiter + "\n",
			output: "",
			path:   "/tmp",
		},
		{
			name:   "multi-line output",
			stream: "a\nb\nc\n\n/srv/app\n" + testDelimiter + "\n",
			output: "a\nb\nc",
			path:   "/srv/app",
		},
		{
			name:   "carriage returns",
			stream: "x\r\n\r\n/tmp\r\n" + testDelimiter + "\r\n",
			output: "x",
			path:   "/tmp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(testDelimiter, "[stderr] ")
			f.Append(tt.stream)
			closeStderr(f)

			frame, ok := f.Next()
			require.True(t, ok)
			assert.Equal(t, tt.output, frame.Output)
			assert.Equal(t, tt.path, frame.CurrentPath)
			assert.False(t, frame.HasError)
			assert.Empty(t, f.Buffered())
			assert.Empty(t, f.BufferedError())
		})
	}
}

func TestFramerWaitsForDelimiter(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	closeStderr(f)

	f.Append("partial output\n/tmp\n__TEST_")
	_, ok := f.Next()
	require.False(t, ok)

	f.Append("DELIM__\nnext")
	frame, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "partial output", frame.Output)
	assert.Equal(t, "/tmp", frame.CurrentPath)
	assert.Equal(t, "next", f.Buffered())
}

func TestFramerWaitsForStderrDelimiter(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	f.Append("\n/tmp\n" + testDelimiter + "\n")

	_, ok := f.Next()
	require.False(t, ok, "frame released before stderr was drained")

	f.AppendError("ls: cannot access 'x'\n")
	_, ok = f.Next()
	require.False(t, ok)

	closeStderr(f)
	frame, ok := f.Next()
	require.True(t, ok)
	assert.True(t, frame.HasError)
	assert.Equal(t, "ls: cannot access 'x'", frame.Stderr)
}

func TestFramerKeepsLateStderrWithItsCommand(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")

	// First command: stdout finishes before its stderr arrives.
	f.Append("\n/tmp\n" + testDelimiter + "\n")
	f.AppendError("ls: missing\n" + testDelimiter + "\n")
	first, ok := f.Next()
	require.True(t, ok)

	f.Append("ok\n\n/tmp\n" + testDelimiter + "\n")
	closeStderr(f)
	second, ok := f.Next()
	require.True(t, ok)

	assert.True(t, first.HasError)
	assert.Equal(t, "[stderr] ls: missing", first.Output)
	assert.Equal(t, Frame{Output: "ok", CurrentPath: "/tmp"}, second)
}

func TestFramerMultipleFramesInOneChunk(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	f.Append("one\n\n/a\n" + testDelimiter + "\ntwo\n\n/b\n" + testDelimiter + "\n")
	f.AppendError(testDelimiter + "\n" + testDelimiter + "\n")

	first, ok := f.Next()
	require.True(t, ok)
	second, ok := f.Next()
	require.True(t, ok)
	_, ok = f.Next()
	require.False(t, ok)

	assert.Equal(t, Frame{Output: "one", CurrentPath: "/a"}, first)
	assert.Equal(t, Frame{Output: "two", CurrentPath: "/b"}, second)
}

func TestFramerSkipsNewlineSplitAcrossChunks(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	f.Append("\n/tmp\n" + testDelimiter)
	f.AppendError(testDelimiter)

	_, ok := f.Next()
	require.True(t, ok)

	f.Append("\nmore")
	assert.Equal(t, "more", f.Buffered())
	f.AppendError("\r\n")
	assert.Empty(t, f.BufferedError())

	f.Append("\nkept")
	assert.Equal(t, "more\nkept", f.Buffered())
}

func TestFramerFlagsStderr(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	f.Append("partial")
	f.AppendError("ls: cannot access 'x'\nsecond line\n")
	f.Append("\n/tmp\n" + testDelimiter + "\n")
	closeStderr(f)

	frame, ok := f.Next()
	require.True(t, ok)
	assert.True(t, frame.HasError)
	assert.Equal(t, "ls: cannot access 'x'\nsecond line", frame.Stderr)
	assert.Equal(t, "partial\n[stderr] ls: cannot access 'x'\n[stderr] second line", frame.Output)
	assert.Equal(t, "/tmp", frame.CurrentPath)
}

func TestFramerJoinsStderrLineSplitAcrossReads(t *testing.T) {
	f := NewFramer(testDelimiter, "E> ")
	f.Append("\n/tmp\n" + testDelimiter + "\n")
	f.AppendError("ls: ")
	f.AppendError("cannot access 'x'\n")
	f.AppendError(testDelimiter[:4])
	f.AppendError(testDelimiter[4:] + "\n")

	frame, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "ls: cannot access 'x'", frame.Stderr)
	assert.Equal(t, "E> ls: cannot access 'x'", frame.Output)
}

func TestFramerStderrWithoutNewline(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	f.Append("\n/tmp\n" + testDelimiter + "\n")
	f.AppendError("oops" + testDelimiter + "\n")

	frame, ok := f.Next()
	require.True(t, ok)
	assert.True(t, frame.HasError)
	assert.Equal(t, "oops", frame.Stderr)
}

func TestFramerStrayStderr(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		stray string
	}{
		{name: "empty"},
		{name: "partial delimiter", chunk: testDelimiter[:5]},
		{name: "delimiter", chunk: testDelimiter + "\n"},
		{name: "warning", chunk: "bash: warning\n", stray: "bash: warning\n"},
		{name: "warning before delimiter", chunk: "warn\n" + testDelimiter + "\n", stray: "warn\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(testDelimiter, "[stderr] ")
			f.AppendError(tt.chunk)

			stray, ok := f.StrayStderr()
			assert.Equal(t, tt.stray != "", ok)
			assert.Equal(t, tt.stray, stray)
		})
	}
}

func TestFramerReset(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	f.Append("leftover\n/tmp\n" + testDelimiter)
	f.AppendError(testDelimiter)
	_, _ = f.Next()
	f.Append("junk")
	f.AppendError("noise")

	f.Reset()
	assert.Empty(t, f.Buffered())
	assert.Empty(t, f.BufferedError())

	f.Append("\nclean")
	assert.Equal(t, "\nclean", f.Buffered())
}

func TestFramerWrapsCommand(t *testing.T) {
	f := NewFramer(testDelimiter, "[stderr] ")
	trailer := f.Trailer()

	assert.True(t, strings.HasSuffix(trailer, "\n"))
	assert.Contains(t, trailer, `"$PWD"`)
	assert.Equal(t, 2, strings.Count(trailer, "'"+testDelimiter+"'"))
	assert.Contains(t, trailer, ">&2")

	assert.Equal(t, "ls -la\n"+trailer, f.Frame("ls -la"))
	assert.Equal(t, "ls -la\n"+trailer, f.Frame("ls -la\r\n"))
}
