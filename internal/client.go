package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// OutgoingAttachment is a file the user attached to a message being sent
type OutgoingAttachment struct {
	Name string
	Kind string // "image" or "file", selects the multipart field
	Data []byte
}

// Client talks to the optimai backend HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. The http.Client carries no overall
// timeout because /api/assistant responses stream for an unbounded time;
// per-call deadlines come from the caller's context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// CreateThread asks the backend for a new thread id
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/createThread", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("createThread request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{Op: "createThread", Status: resp.StatusCode}
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse createThread response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("createThread returned empty id")
	}
	return payload.ID, nil
}

// ThreadMessages fetches the full persisted history of a thread
func (c *Client) ThreadMessages(ctx context.Context, threadID string) ([]*Message, error) {
	u := fmt.Sprintf("%s/api/getThreadMessages?id=%s", c.baseURL, url.QueryEscape(threadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getThreadMessages request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Op: "getThreadMessages", Status: resp.StatusCode}
	}

	var payload struct {
		Messages []*Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse getThreadMessages response: %w", err)
	}
	return payload.Messages, nil
}

// SendMessage posts a user message (plus attachments) to /api/assistant
// and returns the open response body for the caller to stream from. The
// caller owns closing the body. A non-2xx status is reported as a
// RequestError before any streaming begins.
func (c *Client) SendMessage(ctx context.Context, msg *Message, attachments []OutgoingAttachment) (io.ReadCloser, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := writer.WriteField("newMessage", string(msgJSON)); err != nil {
		return nil, fmt.Errorf("failed to write message field: %w", err)
	}

	for _, att := range attachments {
		field := "files"
		if att.Kind == MediaKindImage {
			field = "images"
		}
		part, err := writer.CreateFormFile(field, att.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file %s: %w", att.Name, err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", att.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assistant", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &RequestError{Op: "assistant", Status: resp.StatusCode}
	}

	return resp.Body, nil
}

// FetchFile downloads a generated file's raw bytes
func (c *Client) FetchFile(ctx context.Context, fileID, fileType string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/getFile/%s", c.baseURL, url.PathEscape(fileID))
	if fileType != "" {
		u += "?fileType=" + url.QueryEscape(fileType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getFile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Op: "getFile", Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return data, nil
}

// timeoutReader wraps a streaming response body and arms a deadline per
// Read, so a stalled stream surfaces as an error instead of hanging the
// session forever.
type timeoutReader struct {
	body    io.ReadCloser
	timeout time.Duration
}

// NewTimeoutReader wraps body with a per-read idle timeout. A timeout of
// zero disables the guard.
func NewTimeoutReader(body io.ReadCloser, timeout time.Duration) io.ReadCloser {
	if timeout <= 0 {
		return body
	}
	return &timeoutReader{body: body, timeout: timeout}
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := r.body.Read(p)
		ch <- result{n, err}
	}()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(r.timeout):
		r.body.Close()
		return 0, fmt.Errorf("stream read timed out after %v", r.timeout)
	}
}

func (r *timeoutReader) Close() error {
	return r.body.Close()
}
