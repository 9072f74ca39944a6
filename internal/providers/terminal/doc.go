// Package terminal multiplexes persistent shell sessions.
//
// Each session owns one long-lived shell process fed over stdin. Commands are
// queued per session and written one at a time, each followed by a trailer
// that prints the working directory and a process-wide delimiter on stdout
// and the delimiter again on stderr. The framer cuts both streams at the
// delimiter into one result per command, so stderr stays with the command
// that wrote it.
//
// Lifecycle:
//
//	Creating -> AwaitingReadiness -> Ready <-> Draining -> Closed
//	                 |
//	                 +-> Failed
//
// A session becomes ready when the priming trailer's delimiter has appeared
// on both streams. The trailer is written by whichever comes first, the
// process spawn event or a fallback timer. Any other stderr before that
// point, or the shell dying, fails the session and every command queued on
// it.
//
// Components:
//   - Process: shell handle (stdin writer, stdout/stderr/lifecycle events)
//   - Framer: delimiter-based output framing
//   - Queue: FIFO of pending commands, one in flight at a time
//   - Session: lifecycle state machine run by a single goroutine
//   - Manager: process-wide registry keyed by caller-supplied session ID
//   - Provider: transport adapter and "terminal.*" tools for the assistant
//
// Example Usage:
//
//	manager := terminal.NewManager(terminal.DefaultConfig(), terminal.WithLogger(logger))
//	defer manager.Close()
//
//	result := manager.Submit(ctx, "editor-1", "ls -la")
//	// result.Output, result.CurrentPath, result.Error
//
//	manager.Terminate("editor-1")
//
// This is not a terminal emulator: there is no PTY, no control-sequence
// handling and no job control. A command that reads stdin consumes the
// trailer and never completes; callers bound commands with a timeout.
package terminal
