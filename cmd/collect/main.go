package main

import (
	"context"
	"log"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/joho/godotenv"
)

// 一个仅执行一次聚合的命令行入口：适合手动触发或外部定时任务
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	engine, err := config.LoadEngine(cfg.EngineFile)
	if err != nil {
		log.Fatalf("load engine file failed: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	var fetcher collector.ListFetcher
	if cfg.FetchBackend == "nitter" {
		fetcher = collector.NewNitterListFetcher(cfg.NitterBaseURL)
	} else {
		fetcher = collector.NewTwitterListFetcher(cfg.TwitterAPIBase, cfg.TwitterBearerToken, cfg.FetchRPS)
	}

	p, err := scheduler.NewPipeline(engine, fetcher, store, scheduler.Options{
		Concurrency: cfg.FetchConcurrency,
		Timeout:     cfg.FetchTimeout,
	})
	if err != nil {
		log.Fatalf("init pipeline failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 只执行一轮后退出
	report, err := p.Run(ctx)
	if report != nil {
		for _, w := range report.Warnings {
			log.Printf("warning: source=%s kind=%s: %s", w.Source, w.Kind, w.Message)
		}
	}
	if err != nil {
		log.Fatalf("collect failed: %v", err)
	}
	if report.CacheErr != nil {
		log.Printf("warn: feed not cached: %v", report.CacheErr)
	}
	if rl := p.RateLimit(); rl != nil {
		log.Printf("rate limit remaining %d/%d", rl.Remaining, rl.Limit)
	}
	log.Printf("collect done, run=%s headlines=%d categories=%d sources ok=%d",
		report.Feed.RunID, len(report.Feed.Headlines), len(report.Feed.Categories), report.Succeeded)
}
