package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"chatrelay/internal/core"
)

// Stream sends one turn and reads the relay's NDJSON response, invoking
// onChunk for every record in arrival order. Each line is decoded into the
// tagged StreamChunk type and checked before it reaches the callback; a
// malformed line aborts the stream rather than being silently skipped.
func (c *Client) Stream(ctx context.Context, req SendRequest, onChunk func(core.StreamChunk) error) error {
	encoded, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk core.StreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("malformed stream record: %w", err)
		}
		if chunk.UserMessageID == "" || chunk.AssistantMessageID == "" {
			return fmt.Errorf("stream record missing message ids")
		}

		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}
