package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

func TestFetchSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/42/mentions", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("since_id"))
		assert.Equal(t, "10", r.URL.Query().Get("max_results"))
		assert.Equal(t, "author_id", r.URL.Query().Get("expansions"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "102", "text": "@tipjarbot send 5 @bob", "author_id": "9001"},
				{"id": "101", "text": "hello", "author_id": "9002"}
			],
			"includes": {"users": [
				{"id": "9001", "username": "alice"},
				{"id": "9002", "username": "carol"}
			]},
			"meta": {"result_count": 2, "newest_id": "102"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:     srv.URL,
		BearerToken: "test-token",
		BotUserID:   "42",
	}, logger.NewNop())

	events, err := client.FetchSince(context.Background(), "100", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "102", events[0].ID)
	assert.Equal(t, "alice", events[0].AuthorHandle)
	assert.Equal(t, "carol", events[1].AuthorHandle)
}

func TestFetchSinceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title": "Too Many Requests"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, BearerToken: "t", BotUserID: "42"}, logger.NewNop())

	_, err := client.FetchSince(context.Background(), "", 10)
	var eerr *models.ExternalServiceError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "twitter", eerr.Service)
}

func TestReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "done!", body["text"])
		reply, ok := body["reply"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "555", reply["in_reply_to_tweet_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data": {"id": "556"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, BearerToken: "t", BotUserID: "42"}, logger.NewNop())
	require.NoError(t, client.Reply(context.Background(), "done!", "555"))
}
