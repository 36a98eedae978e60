package collector

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const nitterRequestTimeout = 15 * time.Second

// NitterListFetcher 抓取 Nitter 实例上的 list 页面，作为没有 API 凭证时的备用数据源。
// Nitter 不返回限流信息，结果中的 RateLimit 为 nil。
type NitterListFetcher struct {
	BaseURL   string
	UserAgent string
}

func NewNitterListFetcher(baseURL string) *NitterListFetcher {
	return &NitterListFetcher{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "HeadlineHubBot/1.0",
	}
}

func (n *NitterListFetcher) Name() string {
	return "nitter"
}

func (n *NitterListFetcher) FetchList(ctx context.Context, src config.Source) (*ListResult, error) {
	log.Printf("fetch nitter list %s...", src.Name())

	if err := ctx.Err(); err != nil {
		return nil, newFetchError(src, kindOf(ctx, err), nil, err)
	}

	base, err := url.Parse(n.BaseURL)
	if err != nil {
		return nil, newFetchError(src, KindNetwork, nil, fmt.Errorf("nitter: bad base url: %w", err))
	}

	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname(), base.Host),
		colly.UserAgent(n.UserAgent),
	)
	timeout := nitterRequestTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	c.SetRequestTimeout(timeout)

	posts := make([]RawPost, 0, 50)
	c.OnHTML("div.timeline-item", func(e *colly.HTMLElement) {
		if e.DOM.Find("div.tweet-body").Length() == 0 {
			return
		}
		posts = append(posts, parseNitterItem(e))
	})

	status := 0
	c.OnError(func(r *colly.Response, _ error) {
		status = r.StatusCode
	})

	listURL := fmt.Sprintf("%s/%s/lists/%s", n.BaseURL, url.PathEscape(src.Owner), url.PathEscape(src.Slug))
	if err := c.Visit(listURL); err != nil {
		switch {
		case status == http.StatusTooManyRequests:
			return nil, newFetchError(src, KindRateLimit, nil, fmt.Errorf("nitter: status %d: %w", status, ErrRateLimitExhausted))
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, newFetchError(src, KindAuth, nil, fmt.Errorf("nitter: status %d", status))
		case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
			return nil, newFetchError(src, KindTimeout, nil, err)
		default:
			return nil, newFetchError(src, KindNetwork, nil, fmt.Errorf("nitter: visit %s: %w", listURL, err))
		}
	}

	if len(posts) == 0 {
		log.Printf("fetch nitter list %s got 0 items", src.Name())
	}
	return &ListResult{Posts: posts}, nil
}

// parseNitterItem 按当前 Nitter 的 DOM 结构“尽力而为”地解析，缺失的字段保持零值
func parseNitterItem(e *colly.HTMLElement) RawPost {
	p := RawPost{
		AuthorName: strings.TrimSpace(e.ChildText("a.fullname")),
		CreatedAt:  strings.TrimSpace(e.ChildAttr("span.tweet-date a", "title")),
	}
	if src := e.ChildAttr("img.avatar", "src"); src != "" {
		p.AuthorAvatar = e.Request.AbsoluteURL(src)
	}

	content := e.DOM.Find("div.tweet-content").First().Clone()
	content.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasPrefix(href, "http") {
			return
		}
		p.URLs = append(p.URLs, href)
		// 页面上展示的是缩短后的链接文本，替换成完整链接，后续统一剔除
		a.ReplaceWithHtml(html.EscapeString(href))
	})
	p.Text = strings.TrimSpace(content.Text())

	if src := e.ChildAttr("div.attachments img", "src"); src != "" {
		p.MediaURL = e.Request.AbsoluteURL(src)
	}

	e.ForEach("span.tweet-stat", func(_ int, s *colly.HTMLElement) {
		n := parseCount(s.Text)
		switch {
		case s.DOM.Find(".icon-retweet").Length() > 0:
			p.RetweetCount = n
		case s.DOM.Find(".icon-heart").Length() > 0:
			p.FavoriteCount = n
		}
	})
	return p
}

// parseCount 将 “1,204” “12.3K” “1M” 之类的文本解析为整数
func parseCount(text string) int {
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "k") || strings.HasSuffix(text, "K"):
		multiplier = 1000
		text = text[:len(text)-1]
	case strings.HasSuffix(text, "m") || strings.HasSuffix(text, "M"):
		multiplier = 1000000
		text = text[:len(text)-1]
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0
	}
	return int(f * multiplier)
}
