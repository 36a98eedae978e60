package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/config"
	"golang.org/x/time/rate"
)

const (
	twListCount            = "200"
	twMaxResponseBytes     = 8 << 20 // 8MB
	twClientTimeout        = 15 * time.Second
	twListStatusesResource = "/lists/statuses"
)

// TwitterListFetcher 通过 v1.1 API 拉取 list timeline。
// 每次拉取前先查询 /lists/statuses 的剩余额度，额度为 0 时直接返回 ErrRateLimitExhausted。
type TwitterListFetcher struct {
	BaseURL     string
	BearerToken string
	Client      *http.Client

	limiter *rate.Limiter
}

func NewTwitterListFetcher(baseURL, token string, rps float64) *TwitterListFetcher {
	if rps <= 0 {
		rps = 1
	}
	return &TwitterListFetcher{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		BearerToken: token,
		Client:      &http.Client{Timeout: twClientTimeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (t *TwitterListFetcher) Name() string {
	return "twitter_api"
}

type twRateLimitStatus struct {
	Resources struct {
		Lists map[string]struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"lists"`
	} `json:"resources"`
}

type twTweet struct {
	CreatedAt     string `json:"created_at"`
	Text          string `json:"text"`
	FullText      string `json:"full_text"`
	RetweetCount  int    `json:"retweet_count"`
	FavoriteCount int    `json:"favorite_count"`
	User          struct {
		Name                 string `json:"name"`
		ProfileImageURL      string `json:"profile_image_url"`
		ProfileImageURLHTTPS string `json:"profile_image_url_https"`
	} `json:"user"`
	Entities struct {
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
	ExtendedEntities struct {
		Media []struct {
			MediaURL      string `json:"media_url"`
			MediaURLHTTPS string `json:"media_url_https"`
		} `json:"media"`
	} `json:"extended_entities"`
}

func (t *TwitterListFetcher) FetchList(ctx context.Context, src config.Source) (*ListResult, error) {
	log.Printf("fetch twitter list %s...", src.Name())

	rl, err := t.rateLimit(ctx, src)
	if err != nil {
		return nil, err
	}
	if rl.Remaining <= 0 {
		return nil, newFetchError(src, KindRateLimit, &rl, ErrRateLimitExhausted)
	}

	q := url.Values{}
	q.Set("owner_screen_name", src.Owner)
	q.Set("slug", src.Slug)
	q.Set("count", twListCount)
	q.Set("include_entities", "true")
	q.Set("tweet_mode", "extended")

	resp, err := t.get(ctx, "/lists/statuses.json?"+q.Encode())
	if err != nil {
		return nil, newFetchError(src, kindOf(ctx, err), &rl, err)
	}
	defer resp.Body.Close()

	// 响应头里的额度比预查询更新
	if remaining, limit, ok := rateLimitFromHeader(resp.Header); ok {
		rl = RateLimit{Remaining: remaining, Limit: limit}
	}
	if err := statusError(resp); err != nil {
		return nil, newFetchError(src, kindOfStatus(resp.StatusCode), &rl, err)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, twMaxResponseBytes)).Decode(&items); err != nil {
		return nil, newFetchError(src, KindDecode, &rl, fmt.Errorf("twitter: decode list statuses: %w", err))
	}

	posts := make([]RawPost, 0, len(items))
	for i, raw := range items {
		var tw twTweet
		if err := json.Unmarshal(raw, &tw); err != nil {
			log.Printf("twitter: skip malformed tweet #%d in %s: %v", i, src.Name(), err)
			continue
		}
		posts = append(posts, tw.toRawPost())
	}

	return &ListResult{Posts: posts, RateLimit: &rl}, nil
}

func (tw twTweet) toRawPost() RawPost {
	p := RawPost{
		AuthorName:    tw.User.Name,
		AuthorAvatar:  firstNonEmpty(tw.User.ProfileImageURLHTTPS, tw.User.ProfileImageURL),
		Text:          firstNonEmpty(tw.FullText, tw.Text),
		CreatedAt:     tw.CreatedAt,
		RetweetCount:  tw.RetweetCount,
		FavoriteCount: tw.FavoriteCount,
	}
	for _, u := range tw.Entities.URLs {
		if u.ExpandedURL != "" {
			p.URLs = append(p.URLs, u.ExpandedURL)
		}
	}
	if len(tw.ExtendedEntities.Media) > 0 {
		m := tw.ExtendedEntities.Media[0]
		p.MediaURL = firstNonEmpty(m.MediaURLHTTPS, m.MediaURL)
	}
	return p
}

// rateLimit 查询 /lists/statuses 的额度
func (t *TwitterListFetcher) rateLimit(ctx context.Context, src config.Source) (RateLimit, error) {
	resp, err := t.get(ctx, "/application/rate_limit_status.json?resources=lists")
	if err != nil {
		return RateLimit{}, newFetchError(src, kindOf(ctx, err), nil, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return RateLimit{}, newFetchError(src, kindOfStatus(resp.StatusCode), nil, err)
	}

	var status twRateLimitStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, twMaxResponseBytes)).Decode(&status); err != nil {
		return RateLimit{}, newFetchError(src, KindDecode, nil, fmt.Errorf("twitter: decode rate limit status: %w", err))
	}
	res, ok := status.Resources.Lists[twListStatusesResource]
	if !ok {
		return RateLimit{}, newFetchError(src, KindDecode, nil, fmt.Errorf("twitter: rate limit status has no %s resource", twListStatusesResource))
	}
	return RateLimit{Remaining: res.Remaining, Limit: res.Limit}, nil
}

func (t *TwitterListFetcher) get(ctx context.Context, path string) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if t.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.BearerToken)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("twitter: status %d: %w", resp.StatusCode, ErrRateLimitExhausted)
	}
	return fmt.Errorf("twitter: unexpected status %d", resp.StatusCode)
}

func kindOfStatus(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimit
	default:
		return KindNetwork
	}
}

func kindOf(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}

func rateLimitFromHeader(h http.Header) (remaining, limit int, ok bool) {
	r, err1 := strconv.Atoi(h.Get("x-rate-limit-remaining"))
	l, err2 := strconv.Atoi(h.Get("x-rate-limit-limit"))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return r, l, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
