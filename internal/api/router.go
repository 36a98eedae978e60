package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/LJTian/HeadlineHub/internal/rules"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/gin-gonic/gin"
)

const refreshTimeout = 2 * time.Minute

// FeedService 是 API 依赖的流水线能力，scheduler.Pipeline 实现了它
type FeedService interface {
	Current() *processor.Feed
	RateLimit() *collector.RateLimit
	State() scheduler.State
	Run(ctx context.Context) (*scheduler.Report, error)
}

type Server struct {
	feeds FeedService
}

func NewServer(feeds FeedService) *Server {
	return &Server{feeds: feeds}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/headlines", s.listHeadlines)
		v1.GET("/categories", s.listCategories)
		v1.GET("/rate-limit", s.rateLimit)
		v1.POST("/refresh", s.refresh)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pipeline": s.feeds.State().String()})
}

func (s *Server) currentFeed(c *gin.Context) *processor.Feed {
	feed := s.feeds.Current()
	if feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "not_ready",
			"message": "feed is not ready yet",
		})
	}
	return feed
}

// listHeadlines category 为空时返回全局列表
func (s *Server) listHeadlines(c *gin.Context) {
	feed := s.currentFeed(c)
	if feed == nil {
		return
	}

	items := feed.Headlines
	if category := c.Query("category"); category != "" {
		list, ok := feed.Categories[category]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "not_found",
				"message": "unknown category",
			})
			return
		}
		items = list
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err == nil && limit > 0 && limit < len(items) {
			items = items[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
		"meta": gin.H{
			"runId":       feed.RunID,
			"generatedAt": feed.GeneratedAt,
		},
	})
}

type categorySummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (s *Server) listCategories(c *gin.Context) {
	feed := s.currentFeed(c)
	if feed == nil {
		return
	}

	out := make([]categorySummary, 0, len(feed.Categories))
	for name, list := range feed.Categories {
		out = append(out, categorySummary{Name: name, Count: len(list)})
	}
	// 默认分类排最前，其余按名称
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == rules.DefaultCategory || out[j].Name == rules.DefaultCategory {
			return out[i].Name == rules.DefaultCategory
		}
		return out[i].Name < out[j].Name
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}

func (s *Server) rateLimit(c *gin.Context) {
	rl := s.feeds.RateLimit()
	if rl == nil {
		c.JSON(http.StatusOK, gin.H{
			"code":    "unknown",
			"message": "no rate limit observed yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    rl,
	})
}

func (s *Server) refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	report, err := s.feeds.Run(ctx)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "running",
			"message": "a refresh is already in progress",
		})
		return
	case errors.Is(err, scheduler.ErrNoSourceSucceeded):
		c.JSON(http.StatusBadGateway, gin.H{
			"code":     "fetch_failed",
			"message":  "no source could be fetched",
			"warnings": report.Warnings,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	data := gin.H{
		"runId":     report.Feed.RunID,
		"headlines": len(report.Feed.Headlines),
		"succeeded": report.Succeeded,
		"warnings":  report.Warnings,
	}
	if report.CacheErr != nil {
		data["cacheError"] = report.CacheErr.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}
