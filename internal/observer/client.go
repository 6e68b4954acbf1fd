package observer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	json "github.com/goccy/go-json"
	"io"
	"net/http"
	"parasited/internal/models"
	"strings"
	"time"
)

// ErrStateUnknown means the request may or may not have been applied. The
// caller keeps its cached state and does not retry on its own.
var ErrStateUnknown = errors.New("authority state unknown")

const defaultCallTimeout = 5 * time.Second

// RemoteError is an error-tagged response from the authority.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "authority: " + e.Message
}

type ClientInterface interface {
	Send(ctx context.Context, req models.Request) (models.Snapshot, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

// Send posts one request to /message and waits at most the call timeout
// for its response.
func (c *Client) Send(ctx context.Context, req models.Request) (models.Snapshot, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.Snapshot{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return models.Snapshot{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrStateUnknown, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrStateUnknown, err)
	}

	var out models.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: undecodable response (status %d)", ErrStateUnknown, resp.StatusCode)
	}
	switch {
	case out.Type == models.ResponseError:
		return models.Snapshot{}, &RemoteError{Message: out.Error}
	case out.Type == models.ResponseState && out.State != nil:
		return *out.State, nil
	}
	return models.Snapshot{}, fmt.Errorf("%w: unexpected response type %q", ErrStateUnknown, out.Type)
}
