package processor

import (
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/rules"
)

// Aggregator 汇总多个来源的 headline。
// 全局列表保留所有通过过滤的条目；分类列表按正文去重，保留最早插入的那条。
// 不是并发安全的，由单个 goroutine 顺序写入。
type Aggregator struct {
	builder *Builder
	now     time.Time

	global     []Headline
	categories map[string][]Headline
	seen       map[string]map[string]struct{}
	rateLimit  *collector.RateLimit
}

// NewAggregator 预先创建 categoryNames 中的所有分类（包括默认的 News），即使最终为空
func NewAggregator(builder *Builder, categoryNames []string, now time.Time) *Aggregator {
	a := &Aggregator{
		builder:    builder,
		now:        now,
		categories: make(map[string][]Headline, len(categoryNames)+1),
		seen:       make(map[string]map[string]struct{}, len(categoryNames)+1),
	}
	a.ensureCategory(rules.DefaultCategory)
	for _, name := range categoryNames {
		a.ensureCategory(name)
	}
	return a
}

func (a *Aggregator) ensureCategory(name string) {
	if _, ok := a.categories[name]; ok {
		return
	}
	a.categories[name] = []Headline{}
	a.seen[name] = make(map[string]struct{})
}

// Add 处理一个来源的全部帖子，返回保留下来的条数
func (a *Aggregator) Add(filter *rules.SourceFilter, posts []collector.RawPost, rl *collector.RateLimit) int {
	a.ObserveRateLimit(rl)

	kept := 0
	for _, post := range posts {
		h, ok := a.builder.Build(post, filter, a.now)
		if !ok {
			continue
		}
		kept++
		a.global = append(a.global, h)

		a.ensureCategory(h.Category)
		key := identityKey(h)
		if _, dup := a.seen[h.Category][key]; dup {
			continue
		}
		a.seen[h.Category][key] = struct{}{}
		a.categories[h.Category] = append(a.categories[h.Category], h)
	}
	return kept
}

// ObserveRateLimit 记录最近一次看到的限流快照，后到的直接覆盖；nil 表示未知，忽略
func (a *Aggregator) ObserveRateLimit(rl *collector.RateLimit) {
	if rl == nil {
		return
	}
	snapshot := *rl
	a.rateLimit = &snapshot
}

func (a *Aggregator) Result() ([]Headline, map[string][]Headline, *collector.RateLimit) {
	global := a.global
	if global == nil {
		global = []Headline{}
	}
	return global, a.categories, a.rateLimit
}

// identityKey 分类内去重键：清洗后的正文完全相同视为同一条
func identityKey(h Headline) string {
	return hashKey(h.ArticleDescription)
}
