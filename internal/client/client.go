// Package client calls a remote progress service on behalf of one student.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/realtime"
)

// Client talks to the progress HTTP API. Every call acts as the student
// given at construction. Calls are attempted once.
type Client struct {
	endpoint  string
	studentID int64
	http      *http.Client
	language  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLanguage sets the Accept-Language sent with every request.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// New creates a client for the service at endpoint.
func New(endpoint string, studentID int64, opts ...Option) *Client {
	c := &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		studentID: studentID,
		http:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StudentID returns the student the client acts for.
func (c *Client) StudentID() int64 {
	return c.studentID
}

// FetchAll returns every topic with the student's progress.
func (c *Client) FetchAll(ctx context.Context) ([]progress.TopicProgress, error) {
	const op = "fetch progress"

	q := url.Values{"student_id": {strconv.FormatInt(c.studentID, 10)}}
	var body struct {
		Topics []progress.TopicProgress `json:"topics"`
	}
	if err := c.do(ctx, op, http.MethodGet, "/progress?"+q.Encode(), nil, &body); err != nil {
		return nil, err
	}
	if body.Topics == nil {
		return []progress.TopicProgress{}, nil
	}
	return body.Topics, nil
}

// SetProgress writes the completed count for topicID. Any 2xx status is a
// successful write; the returned Result is zero when the server sends no
// JSON body.
func (c *Client) SetProgress(ctx context.Context, topicID, completed int) (progress.Result, error) {
	op := fmt.Sprintf("set progress for topic %d", topicID)

	req := map[string]any{
		"student_id":      c.studentID,
		"topic_id":        topicID,
		"completed_tasks": completed,
	}
	body, err := c.send(ctx, op, http.MethodPost, "/progress", req)
	if err != nil {
		return progress.Result{}, err
	}
	var res progress.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return progress.Result{}, nil
	}
	return res, nil
}

// Sections returns the theory sections of topicID.
func (c *Client) Sections(ctx context.Context, topicID int) ([]catalog.Section, error) {
	op := fmt.Sprintf("fetch sections for topic %d", topicID)

	var body struct {
		Sections []catalog.Section `json:"sections"`
	}
	if err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/topics/%d/sections", topicID), nil, &body); err != nil {
		return nil, err
	}
	if body.Sections == nil {
		return []catalog.Section{}, nil
	}
	return body.Sections, nil
}

// Export downloads the student's progress workbook into w.
func (c *Client) Export(ctx context.Context, w io.Writer) (int64, error) {
	const op = "export progress"

	q := url.Values{"student_id": {strconv.FormatInt(c.studentID, 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/progress/export.xlsx?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%s: create request: %w", op, err)
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: op, Err: err}
	}
	return n, nil
}

// Watch streams refresh hints for the student to fn until ctx is done or
// the connection drops. It returns nil when ctx is cancelled.
func (c *Client) Watch(ctx context.Context, fn func(realtime.Hint)) error {
	const op = "watch"

	u, err := url.Parse(c.endpoint + "/ws")
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"student_id": {strconv.FormatInt(c.studentID, 10)}}.Encode()

	// The HTTP client timeout bounds the handshake only; the stream itself
	// lives until ctx is done.
	hc := *c.http
	dialCtx := ctx
	if hc.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, hc.Timeout)
		defer cancel()
		hc.Timeout = 0
	}
	conn, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{HTTPClient: &hc})
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer conn.CloseNow()

	for {
		var hint realtime.Hint
		if err := wsjson.Read(ctx, conn, &hint); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			if websocket.CloseStatus(err) != -1 {
				return &TransportError{Op: op, Err: err}
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				return &DecodeError{Op: op, Err: err}
			}
			return &TransportError{Op: op, Err: err}
		}
		fn(hint)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	body, err := c.send(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// send performs the request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, op, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
