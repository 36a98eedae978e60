package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

// Headline 是对外输出的统一结构，字段名与旧版缓存文件保持一致
type Headline struct {
	ID                 string `json:"id"`
	SourceName         string `json:"source_name"`
	SourcePhoto        string `json:"source_photo"`
	ArticleLink        string `json:"article_link"`
	ArticlePhoto       string `json:"article_photo"`
	ArticleDescription string `json:"article_description"`
	Date               string `json:"date"`
	Timestamp          int64  `json:"timestamp"` // 毫秒，无法解析时为 0
	Score              int    `json:"score"`
	Category           string `json:"category"`
	CategoryBadge      string `json:"category_badge"`
	Tags               string `json:"tags"`
}

// Feed 一次完整聚合的快照
type Feed struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Headlines   []Headline            `json:"headlines"`
	Categories  map[string][]Headline `json:"categories"`
	RateLimit   *collector.RateLimit  `json:"rate_limit"`
}

var urlPattern = regexp.MustCompile(`(?:https?|ftp)://\S+`)

// cleanDescription 去掉正文里的链接并把 &amp; 换成 and
func cleanDescription(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&amp;", "and")
	return strings.TrimSpace(text)
}

// 抓取层可能给出的几种时间格式：Twitter API、RFC3339、RSS 风格、Nitter 页面
var createdAtLayouts = []string{
	time.RubyDate,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006 · 3:04 PM MST",
}

func parseCreatedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// hashKey 生成稳定的 sha1 标识，用于 headline ID 与去重键
func hashKey(parts ...string) string {
	h := sha1.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
