package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/LJTian/HeadlineHub/internal/rules"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State 流水线状态
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

var (
	ErrAlreadyRunning    = errors.New("pipeline: run already in progress")
	ErrNoSourceSucceeded = errors.New("pipeline: no source fetched successfully")
)

// FeedCache 缓存协作方，storage.Store 实现了它
type FeedCache interface {
	SaveFeed(ctx context.Context, feed *processor.Feed) error
	LoadFeed(ctx context.Context) (*processor.Feed, error)
}

// Warning 单个来源失败的记录，不影响其它来源
type Warning struct {
	Source  string              `json:"source"`
	Kind    collector.ErrorKind `json:"kind"`
	Message string              `json:"message"`
}

// Report 一次运行的结果。CacheErr 非空时 Feed 依然有效且已发布。
type Report struct {
	Feed      *processor.Feed
	Warnings  []Warning
	Succeeded int
	CacheErr  error
}

type Options struct {
	// 同时抓取的来源数，<=1 时按配置顺序逐个抓取
	Concurrency int
	// 单个来源的抓取超时，超时按该来源失败处理
	Timeout time.Duration
	Now     func() time.Time
}

// Pipeline 编排一次完整的聚合：抓取 → 构建/去重 → 排序 → 原子发布
type Pipeline struct {
	engine        *config.Engine
	fetcher       collector.ListFetcher
	cache         FeedCache
	builder       *processor.Builder
	filters       []*rules.SourceFilter
	categoryNames []string
	opts          Options

	state         atomic.Int32
	current       atomic.Pointer[processor.Feed]
	lastRateLimit atomic.Pointer[collector.RateLimit]
}

// NewPipeline 预编译所有规则；cache 可以为 nil
func NewPipeline(engine *config.Engine, fetcher collector.ListFetcher, cache FeedCache, opts Options) (*Pipeline, error) {
	if engine == nil || fetcher == nil {
		return nil, errors.New("pipeline: engine and fetcher are required")
	}

	classifier, err := rules.NewClassifier(engine.Categories)
	if err != nil {
		return nil, err
	}
	scorer, err := processor.ScorerFor(engine.Scoring)
	if err != nil {
		return nil, err
	}

	filters := make([]*rules.SourceFilter, 0, len(engine.Sources))
	for _, src := range engine.Sources {
		f, err := rules.NewSourceFilter(src)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Now == nil {
		opts.Now = config.Now
	}

	return &Pipeline{
		engine:        engine,
		fetcher:       fetcher,
		cache:         cache,
		builder:       processor.NewBuilder(classifier, scorer),
		filters:       filters,
		categoryNames: engine.CategoryNames(rules.DefaultCategory),
		opts:          opts,
	}, nil
}

// Current 返回最近一次完整发布的 feed，尚未生成时为 nil
func (p *Pipeline) Current() *processor.Feed {
	return p.current.Load()
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// RateLimit 最近一次观察到的限流快照（包括失败的来源），未知时为 nil
func (p *Pipeline) RateLimit() *collector.RateLimit {
	return p.lastRateLimit.Load()
}

// Warm 用缓存中的 feed 先顶上，刷新完成前对外提供旧数据；已有新 feed 时不覆盖
func (p *Pipeline) Warm(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	feed, err := p.cache.LoadFeed(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		log.Println("no cached feed, waiting for first run")
		return nil
	}
	if err != nil {
		return err
	}
	if p.current.CompareAndSwap(nil, feed) {
		if feed.RateLimit != nil {
			p.lastRateLimit.CompareAndSwap(nil, feed.RateLimit)
		}
		log.Printf("serving cached feed %s (%d headlines)", feed.RunID, len(feed.Headlines))
	}
	return nil
}

type fetchResult struct {
	res *collector.ListResult
	err error
}

// Run 执行一次完整聚合。只有所有来源都失败时才返回 ErrNoSourceSucceeded，此时旧 feed 保持不变。
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyRunning
	}
	defer p.state.Store(int32(StateIdle))

	now := p.opts.Now()
	log.Printf("start headline run, sources=%d", len(p.engine.Sources))

	results := p.fetchAll(ctx)

	// 抓取可以并发，聚合只在这里按配置顺序单线程写入
	agg := processor.NewAggregator(p.builder, p.categoryNames, now)
	report := &Report{}
	for i, src := range p.engine.Sources {
		r := results[i]
		if r.err != nil {
			w := Warning{Source: src.Name(), Kind: collector.KindNetwork, Message: r.err.Error()}
			var fe *collector.FetchError
			if errors.As(r.err, &fe) {
				w.Kind = fe.Kind
				agg.ObserveRateLimit(fe.RateLimit)
			}
			report.Warnings = append(report.Warnings, w)
			log.Printf("fetch %s error: %v", src.Name(), r.err)
			continue
		}

		report.Succeeded++
		kept := agg.Add(p.filters[i], r.res.Posts, r.res.RateLimit)
		log.Printf("%s done, fetched=%d kept=%d", src.Name(), len(r.res.Posts), kept)
	}

	global, categories, rl := agg.Result()
	if rl != nil {
		p.lastRateLimit.Store(rl)
	}

	if report.Succeeded == 0 {
		log.Printf("headline run failed, all %d sources failed", len(p.engine.Sources))
		return report, fmt.Errorf("%w: %d sources failed", ErrNoSourceSucceeded, len(report.Warnings))
	}

	global, categories = processor.RankFeed(global, categories, p.engine.Sort, p.engine.Cap)
	feed := &processor.Feed{
		RunID:       uuid.NewString(),
		GeneratedAt: now,
		Headlines:   global,
		Categories:  categories,
		RateLimit:   rl,
	}
	p.current.Store(feed)
	report.Feed = feed
	log.Printf("headline run %s done, headlines=%d categories=%d warnings=%d",
		feed.RunID, len(feed.Headlines), len(feed.Categories), len(report.Warnings))

	if p.cache != nil {
		if err := p.cache.SaveFeed(ctx, feed); err != nil {
			report.CacheErr = err
			log.Printf("save feed cache error: %v", err)
		}
	}
	return report, nil
}

// fetchAll 每个来源写自己的槽位，互不干扰
func (p *Pipeline) fetchAll(ctx context.Context) []fetchResult {
	sources := p.engine.Sources
	results := make([]fetchResult, len(sources))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = p.fetchOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) fetchOne(ctx context.Context, src config.Source) fetchResult {
	fctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	res, err := p.fetcher.FetchList(fctx, src)
	if err != nil {
		var fe *collector.FetchError
		if !errors.As(err, &fe) && errors.Is(fctx.Err(), context.DeadlineExceeded) {
			err = &collector.FetchError{Source: src.Name(), Kind: collector.KindTimeout, Err: err}
		}
		return fetchResult{err: err}
	}
	if res == nil {
		res = &collector.ListResult{}
	}
	return fetchResult{res: res}
}
