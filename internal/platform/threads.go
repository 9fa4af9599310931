package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/buzz"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/httpretry"
)

const defaultThreadsBaseURL = "https://graph.threads.net/v1.0"

// ThreadsClient talks to the Threads Graph API. Publishing is the
// Graph two-step: create a media container, then publish it.
type ThreadsClient struct {
	http    httpretry.HTTPDoer
	baseURL string
	userID  string
}

// NewThreadsClient builds a Threads client for the given account.
func NewThreadsClient(ctx context.Context, accessToken, userID string) *ThreadsClient {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	base := oauth2.NewClient(ctx, ts)
	base.Timeout = 30 * time.Second
	return &ThreadsClient{
		http:    httpretry.NewRetryClient(base, 3),
		baseURL: defaultThreadsBaseURL,
		userID:  userID,
	}
}

func (c *ThreadsClient) Platform() domain.Platform { return domain.PlatformThreads }

type threadsSearchResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Username  string `json:"username"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

func (c *ThreadsClient) Search(ctx context.Context, query string, limit int) ([]domain.HarvestedPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("search_type", "TOP")
	params.Set("fields", "id,text,username,timestamp")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.call(ctx, http.MethodGet, "/keyword_search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var sr threadsSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("threads search: parse response: %w", err)
	}

	now := time.Now()
	out := make([]domain.HarvestedPost, 0, len(sr.Data))
	for _, th := range sr.Data {
		postedAt, err := time.Parse(time.RFC3339, th.Timestamp)
		if err != nil {
			postedAt = now
		}
		p := domain.HarvestedPost{
			Platform:     domain.PlatformThreads,
			ExternalID:   th.ID,
			AuthorHandle: th.Username,
			Content:      th.Text,
			PostedAt:     postedAt,
			CollectedAt:  now,
		}
		engagement, err := c.postInsights(ctx, th.ID)
		if err == nil {
			p.Likes = engagement.likes
			p.Reposts = engagement.reposts
			p.Replies = engagement.replies
			p.Quotes = engagement.quotes
		}
		score := buzz.Compute(p.Likes, p.Reposts, p.Replies, p.Quotes, p.PostedAt, now, p.FollowerCount)
		p.BuzzScore = score.BuzzScore
		p.Velocity = score.Velocity
		out = append(out, p)
	}
	return out, nil
}

func (c *ThreadsClient) Publish(ctx context.Context, content string) (string, error) {
	// Step 1: create the media container.
	params := url.Values{}
	params.Set("media_type", "TEXT")
	params.Set("text", content)
	body, err := c.call(ctx, http.MethodPost, "/"+c.userID+"/threads?"+params.Encode())
	if err != nil {
		return "", err
	}
	var container struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &container); err != nil {
		return "", fmt.Errorf("threads publish: parse container: %w", err)
	}
	if container.ID == "" {
		return "", fmt.Errorf("threads publish: response missing container id")
	}

	// Step 2: publish the container.
	pub := url.Values{}
	pub.Set("creation_id", container.ID)
	body, err = c.call(ctx, http.MethodPost, "/"+c.userID+"/threads_publish?"+pub.Encode())
	if err != nil {
		return "", err
	}
	var published struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &published); err != nil {
		return "", fmt.Errorf("threads publish: parse result: %w", err)
	}
	if published.ID == "" {
		return "", fmt.Errorf("threads publish: response missing post id")
	}
	return published.ID, nil
}

type threadsInsights struct {
	likes, reposts, replies, quotes, views int64
}

func (c *ThreadsClient) postInsights(ctx context.Context, postID string) (*threadsInsights, error) {
	body, err := c.call(ctx, http.MethodGet,
		"/"+postID+"/insights?metric=views,likes,replies,reposts,quotes")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("threads insights: parse response: %w", err)
	}

	ins := &threadsInsights{}
	for _, metric := range resp.Data {
		if len(metric.Values) == 0 {
			continue
		}
		v := metric.Values[0].Value
		switch metric.Name {
		case "likes":
			ins.likes = v
		case "reposts":
			ins.reposts = v
		case "replies":
			ins.replies = v
		case "quotes":
			ins.quotes = v
		case "views":
			ins.views = v
		}
	}
	return ins, nil
}

func (c *ThreadsClient) Impressions(ctx context.Context, externalID string) (int64, error) {
	ins, err := c.postInsights(ctx, externalID)
	if err != nil {
		return 0, err
	}
	return ins.views, nil
}

func (c *ThreadsClient) call(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("threads request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("threads api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("threads api: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("threads api: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}
