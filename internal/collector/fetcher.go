package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/LJTian/HeadlineHub/internal/config"
)

// RawPost 抓取层返回的原始帖子，只读
type RawPost struct {
	AuthorName    string
	AuthorAvatar  string
	URLs          []string // 展开后的链接
	MediaURL      string
	Text          string
	CreatedAt     string
	RetweetCount  int
	FavoriteCount int
}

// RateLimit 列表接口的限流快照
type RateLimit struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// ListResult 一次列表抓取的结果；数据源不提供限流信息时 RateLimit 为 nil
type ListResult struct {
	Posts     []RawPost
	RateLimit *RateLimit
}

// ListFetcher 抽象列表数据源
type ListFetcher interface {
	Name() string
	FetchList(ctx context.Context, src config.Source) (*ListResult, error)
}

// 错误类型
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindDecode    ErrorKind = "decode"
	KindTimeout   ErrorKind = "timeout"
)

// ErrRateLimitExhausted 表示额度耗尽，需要等待窗口重置后再抓
var ErrRateLimitExhausted = errors.New("rate limit exhausted")

// FetchError 单个来源的抓取失败。即使失败也尽量带上限流快照（未知时为 nil）
type FetchError struct {
	Source    string
	Kind      ErrorKind
	RateLimit *RateLimit
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(src config.Source, kind ErrorKind, rl *RateLimit, err error) *FetchError {
	return &FetchError{Source: src.Name(), Kind: kind, RateLimit: rl, Err: err}
}
