// Package ws serves the /terminal/stream command channel.
//
// Clients send JSON frames:
//
//	{"type": "execute", "request_id": "r1", "session_id": "editor", "command": "ls"}
//	{"type": "terminate", "request_id": "r2", "session_id": "editor"}
//	{"type": "ping"}
//
// and receive "result", "terminated", "pong" or "error" frames echoing the
// request_id. Each execute runs on its own goroutine, so results may arrive
// out of request order across sessions; within one session they follow
// the session queue. Closing the connection cancels commands still waiting.
package ws
