package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Attachment is an inline file forwarded with a single turn. It is never
// stored as its own record; it only travels inside the outbound payload.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

// InvokeRequest is the payload for one call to the compute backend.
type InvokeRequest struct {
	Input          string      `json:"input"`
	ConversationID string      `json:"conversationId"`
	UserEmail      string      `json:"userEmail"`
	Attachment     *Attachment `json:"attachment,omitempty"`

	// UserIP is forwarded in the X-User-IP header, not the body.
	UserIP string `json:"-"`
}

// InvokeResponse is what a successful backend call returns.
type InvokeResponse struct {
	Response     string `json:"response"`
	DownloadLink string `json:"downloadLink,omitempty"`
}

// Error is a failed backend invocation: a non-2xx status, a network failure,
// or an unparseable body. Status is the upstream HTTP status when one was
// received, zero otherwise.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend request failed: %s", e.Message)
}

// Client invokes the compute backend. It performs no retries and imposes no
// timeout of its own; the injected http.Client owns that policy.
type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(url string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient, log: log}
}

// Invoke performs one synchronous call and translates every failure mode into
// *Error so the relay boundary can map it to a response.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to marshal payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.UserIP != "" {
		httpReq.Header.Set("X-User-IP", req.UserIP)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Surface the backend's own error text when the body carries one.
		var errBody struct {
			Error string `json:"error"`
		}
		msg := "Unknown error from backend"
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		} else if len(raw) > 0 {
			msg = string(raw)
		}
		c.log.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("backend returned error")
		return nil, &Error{Status: resp.StatusCode, Message: msg}
	}

	var result InvokeResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("malformed backend response: %v", err)}
	}

	return &result, nil
}
