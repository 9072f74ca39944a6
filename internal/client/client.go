package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/codeshell/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
	"github.com/GriffinCanCode/codeshell/internal/shared/types"
)

const userAgent = "shellctl/1.0"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Client talks to a codeshell server over HTTP.
type Client struct {
	resty *resty.Client
}

// New creates a client for the server at baseURL. Commands are not retried:
// a retried command would run twice in the same shell.
func New(baseURL string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		tracing.Inject(req.Context(), req.Header)
		return nil
	})

	return &Client{resty: r}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.resty.R().SetContext(ctx).SetError(&errorBody{})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
	}
	return apiErr
}

// Execute runs command in the named session. When the session fails the
// response is still returned alongside an *APIError carrying the kind.
func (c *Client) Execute(ctx context.Context, sessionID, command string) (*types.CommandResponse, error) {
	var out types.CommandResponse
	resp, err := c.request(ctx).
		SetBody(types.CommandRequest{SessionID: sessionID, Command: command}).
		SetResult(&out).
		Post("/terminal/execute")
	if err != nil {
		return nil, err
	}

	switch {
	case resp.IsSuccess():
		return &out, nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		// Session failures carry the command body.
		if err := sonic.Unmarshal(resp.Body(), &out); err == nil && out.Error != nil {
			return &out, &APIError{StatusCode: resp.StatusCode(), Message: *out.Error, Kind: out.Kind}
		}
	}
	return nil, check(resp, nil)
}

// StartSession starts a session and waits until it is ready. An empty
// sessionID lets the server generate one.
func (c *Client) StartSession(ctx context.Context, sessionID string) (*terminal.SessionInfo, error) {
	var out terminal.SessionInfo
	resp, err := c.request(ctx).
		SetBody(types.StartSessionRequest{SessionID: sessionID}).
		SetResult(&out).
		Post("/terminal/sessions")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Terminate kills a session. Unknown sessions are not an error.
func (c *Client) Terminate(ctx context.Context, sessionID string) error {
	resp, err := c.request(ctx).
		SetPathParam("id", sessionID).
		Delete("/terminal/sessions/{id}")
	return check(resp, err)
}

// ListSessions returns every live session.
func (c *Client) ListSessions(ctx context.Context) ([]terminal.SessionInfo, error) {
	var out struct {
		Sessions []terminal.SessionInfo `json:"sessions"`
	}
	resp, err := c.request(ctx).SetResult(&out).Get("/terminal/sessions")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// GetSession returns one session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*terminal.SessionInfo, error) {
	var out terminal.SessionInfo
	resp, err := c.request(ctx).
		SetPathParam("id", sessionID).
		SetResult(&out).
		Get("/terminal/sessions/{id}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	resp, err := c.request(ctx).SetResult(&out).Get("/health")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}
