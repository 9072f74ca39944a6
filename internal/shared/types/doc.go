// Package types provides shared data structures for the CodeShell backend.
//
// Core Types:
//   - Service, Tool, Parameter: tool catalog exposed to the chat assistant
//   - Context: caller identity passed to tool execution
//   - Result: standard tool result
//
// Request Types:
//   - ExecuteRequest: tool execution
//   - CommandRequest, StartSessionRequest: terminal HTTP API
//   - WSMessage, WSReply: terminal WebSocket frames
package types
