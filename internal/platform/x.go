package platform

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

	"golang.org/x/oauth2"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/buzz"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/httpretry"
)

const defaultXBaseURL = "https://api.twitter.com/2"

// XClient talks to the X v2 API with a bearer token.
type XClient struct {
	http    httpretry.HTTPDoer
	baseURL string
}

// NewXClient builds an X client. The token rides in an oauth2 transport
// so every request is authenticated; retries wrap the whole thing.
func NewXClient(ctx context.Context, bearerToken string) *XClient {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken})
	base := oauth2.NewClient(ctx, ts)
	base.Timeout = 30 * time.Second
	return &XClient{
		http:    httpretry.NewRetryClient(base, 3),
		baseURL: defaultXBaseURL,
	}
}

func (c *XClient) Platform() domain.Platform { return domain.PlatformX }

type xSearchResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		AuthorID      string    `json:"author_id"`
		Lang          string    `json:"lang"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int64 `json:"like_count"`
			RetweetCount int64 `json:"retweet_count"`
			ReplyCount   int64 `json:"reply_count"`
			QuoteCount   int64 `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			PublicMetrics struct {
				FollowersCount int64 `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
}

func (c *XClient) Search(ctx context.Context, query string, limit int) ([]domain.HarvestedPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	params := url.Values{}
	params.Set("query", query+" -is:retweet -is:reply")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("tweet.fields", "public_metrics,created_at,lang,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "public_metrics")

	body, err := c.get(ctx, "/tweets/search/recent?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var sr xSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("x search: parse response: %w", err)
	}

	type author struct {
		handle    string
		followers int64
	}
	authors := make(map[string]author, len(sr.Includes.Users))
	for _, u := range sr.Includes.Users {
		authors[u.ID] = author{handle: u.Username, followers: u.PublicMetrics.FollowersCount}
	}

	now := time.Now()
	out := make([]domain.HarvestedPost, 0, len(sr.Data))
	for _, tw := range sr.Data {
		a := authors[tw.AuthorID]
		p := domain.HarvestedPost{
			Platform:      domain.PlatformX,
			ExternalID:    tw.ID,
			AuthorHandle:  a.handle,
			FollowerCount: a.followers,
			Content:       tw.Text,
			Language:      tw.Lang,
			Likes:         tw.PublicMetrics.LikeCount,
			Reposts:       tw.PublicMetrics.RetweetCount,
			Replies:       tw.PublicMetrics.ReplyCount,
			Quotes:        tw.PublicMetrics.QuoteCount,
			PostedAt:      tw.CreatedAt,
			CollectedAt:   now,
		}
		score := buzz.Compute(p.Likes, p.Reposts, p.Replies, p.Quotes, p.PostedAt, now, p.FollowerCount)
		p.BuzzScore = score.BuzzScore
		p.Velocity = score.Velocity
		out = append(out, p)
	}
	return out, nil
}

func (c *XClient) Publish(ctx context.Context, content string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return "", fmt.Errorf("x publish: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("x publish: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("x publish: parse response: %w", err)
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("x publish: response missing tweet id")
	}
	return resp.Data.ID, nil
}

func (c *XClient) Impressions(ctx context.Context, externalID string) (int64, error) {
	body, err := c.get(ctx, "/tweets/"+externalID+"?tweet.fields=non_public_metrics,public_metrics")
	if err != nil {
		return 0, err
	}

	var resp struct {
		Data struct {
			NonPublicMetrics struct {
				ImpressionCount int64 `json:"impression_count"`
			} `json:"non_public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("x impressions: parse response: %w", err)
	}
	return resp.Data.NonPublicMetrics.ImpressionCount, nil
}

func (c *XClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("x request: %w", err)
	}
	return c.do(req)
}

func (c *XClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("x api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("x api: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("x api: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
