package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/core"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"session-token"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
	assert.Equal(t, "session-token", c.Token)
}

func TestAPIErrorDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "user@example.com", "wrong")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestAuthorizedRequestsCarryToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Token = "session-token"
	_, err := c.ListChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer session-token", gotAuth)
}

func TestGetChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/chat-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "chat-1",
			"title": "carbon footprint",
			"visibility": "private",
			"messages": [
				{"id": "m1", "chat_id": "chat-1", "role": "user", "content": "hi"},
				{"id": "m2", "chat_id": "chat-1", "role": "assistant", "content": "hello"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	details, err := c.GetChat(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "carbon footprint", details.Title)
	require.Len(t, details.Messages, 2)
	assert.Equal(t, "hello", details.Messages[1].Content)
}

func TestStream_DeliversChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, word := range []string{"Hello ", "world "} {
			fmt.Fprintf(w, `{"result":%q,"userMessageId":"u1","assistantMessageId":"a1"}`+"\n", word)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Token = "session-token"

	var got []core.StreamChunk
	err := c.Stream(context.Background(), SendRequest{
		ChatID:   "chat-1",
		Messages: []core.TurnMessage{{Role: "user", Content: "hi"}},
	}, func(chunk core.StreamChunk) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Hello ", got[0].Result)
	assert.Equal(t, "world ", got[1].Result)
	assert.Equal(t, "a1", got[0].AssistantMessageID)
	assert.Equal(t, "u1", got[0].UserMessageID)
}

func TestStream_ErrorResponseBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No user message found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Stream(context.Background(), SendRequest{ChatID: "chat-1"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "No user message found", apiErr.Message)
}

func TestStream_RejectsMalformedRecords(t *testing.T) {
	t.Run("invalid json line", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json}\n"))
		}))
		defer srv.Close()

		err := New(srv.URL).Stream(context.Background(), SendRequest{ChatID: "chat-1"},
			func(core.StreamChunk) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed stream record")
	})

	t.Run("missing message ids", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"word "}` + "\n"))
		}))
		defer srv.Close()

		err := New(srv.URL).Stream(context.Background(), SendRequest{ChatID: "chat-1"},
			func(core.StreamChunk) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing message ids")
	})
}

func TestStream_CallbackErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, `{"result":"w%d ","userMessageId":"u1","assistantMessageId":"a1"}`+"\n", i)
		}
	}))
	defer srv.Close()

	seen := 0
	err := New(srv.URL).Stream(context.Background(), SendRequest{ChatID: "chat-1"},
		func(core.StreamChunk) error {
			seen++
			return fmt.Errorf("stop here")
		})
	require.EqualError(t, err, "stop here")
	assert.Equal(t, 1, seen)
}

func TestStream_SkipsBlankLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"one ","userMessageId":"u1","assistantMessageId":"a1"}` + "\n\n" +
			`{"result":"two ","userMessageId":"u1","assistantMessageId":"a1"}` + "\n"))
	}))
	defer srv.Close()

	var got []string
	err := New(srv.URL).Stream(context.Background(), SendRequest{ChatID: "chat-1"},
		func(chunk core.StreamChunk) error {
			got = append(got, chunk.Result)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two "}, got)
}
