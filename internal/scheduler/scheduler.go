package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline

	// StartupDelay 首轮采集的延迟，先用缓存顶上，避免和首屏请求争抢资源
	StartupDelay time.Duration
}

func New(spec string, p *Pipeline) (*Scheduler, error) {
	// 上一轮还没结束时跳过本轮
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	s := &Scheduler{
		cron:         c,
		pipeline:     p,
		StartupDelay: 5 * time.Second,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	time.AfterFunc(s.StartupDelay, func() {
		go s.runOnce()
	})
}

// Stop 停止调度，返回的 context 在正在执行的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	return s.pipeline.Run(ctx)
}

func (s *Scheduler) runOnce() {
	report, err := s.pipeline.Run(context.Background())
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		log.Println("skip collect job, previous run still in progress")
	case err != nil:
		log.Printf("collect job failed: %v", err)
	default:
		log.Printf("collect job done, headlines=%d warnings=%d", len(report.Feed.Headlines), len(report.Warnings))
	}
}
