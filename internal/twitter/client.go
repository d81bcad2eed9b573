// Package twitter implements the mention feed on the Twitter v2 API.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

// Config carries the API parameters for the mention feed client.
type Config struct {
	// BaseURL is the API origin, overridable for tests.
	BaseURL string
	// BearerToken authenticates every request.
	BearerToken string
	// BotUserID is the numeric id whose mention timeline is polled.
	BotUserID string
}

// Client talks to the Twitter v2 API. It implements models.MentionFeed.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logger.Logger
}

// NewClient creates a mention feed client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com"
	}
	return &Client{
		cfg:    cfg,
		logger: log,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type mentionsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		AuthorID string `json:"author_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id"`
	} `json:"meta"`
}

// FetchSince returns mentions of the bot newer than sinceID, newest first as
// the API delivers them, bounded by limit.
func (c *Client) FetchSince(ctx context.Context, sinceID string, limit int) ([]models.MentionEvent, error) {
	endpoint := fmt.Sprintf("%s/2/users/%s/mentions", c.cfg.BaseURL, c.cfg.BotUserID)

	q := url.Values{}
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")
	if limit > 0 {
		q.Set("max_results", strconv.Itoa(limit))
	}
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mentions request: %s", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "twitter", Err: fmt.Errorf("failed to fetch mentions: %s", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &models.ExternalServiceError{Service: "twitter", Err: fmt.Errorf(
			"unexpected status code %d: %s", resp.StatusCode, string(body))}
	}

	var payload mentionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &models.ExternalServiceError{Service: "twitter", Err: fmt.Errorf("failed to decode mentions response: %s", err)}
	}

	usernames := make(map[string]string, len(payload.Includes.Users))
	for _, u := range payload.Includes.Users {
		usernames[u.ID] = u.Username
	}

	events := make([]models.MentionEvent, 0, len(payload.Data))
	for _, m := range payload.Data {
		events = append(events, models.MentionEvent{
			ID:           m.ID,
			AuthorID:     m.AuthorID,
			AuthorHandle: usernames[m.AuthorID],
			Text:         m.Text,
		})
	}
	return events, nil
}

type replyRequest struct {
	Text  string `json:"text"`
	Reply struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
}

// Reply posts text as a reply to the given tweet.
func (c *Client) Reply(ctx context.Context, text, inReplyToID string) error {
	var body replyRequest
	body.Text = text
	body.Reply.InReplyToTweetID = inReplyToID

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/2/tweets", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build reply request: %s", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.ExternalServiceError{Service: "twitter", Err: fmt.Errorf("failed to post reply: %s", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &models.ExternalServiceError{Service: "twitter", Err: fmt.Errorf(
			"unexpected status code %d: %s", resp.StatusCode, string(raw))}
	}

	c.logger.Debug("posted reply to tweet ", inReplyToID)
	return nil
}
