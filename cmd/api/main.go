package main

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/LJTian/HeadlineHub/internal/api"
	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 本地开发时从 .env 读取配置，文件不存在不算错误
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	engine, err := config.LoadEngine(cfg.EngineFile)
	if err != nil {
		log.Fatalf("load engine file failed: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	p, err := scheduler.NewPipeline(engine, newFetcher(cfg), store, scheduler.Options{
		Concurrency: cfg.FetchConcurrency,
		Timeout:     cfg.FetchTimeout,
	})
	if err != nil {
		log.Fatalf("init pipeline failed: %v", err)
	}

	// 先用上一轮缓存的 feed 对外服务
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := p.Warm(ctx); err != nil {
		log.Printf("warn: warm feed from cache: %v", err)
	}
	cancel()

	s, err := scheduler.New(cfg.CronSpec, p)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(p)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

func newFetcher(cfg *config.Config) collector.ListFetcher {
	switch cfg.FetchBackend {
	case "nitter":
		log.Printf("using nitter backend at %s", cfg.NitterBaseURL)
		return collector.NewNitterListFetcher(cfg.NitterBaseURL)
	case "twitter":
	default:
		log.Printf("warn: unknown fetch backend %q, falling back to twitter", cfg.FetchBackend)
	}
	if cfg.TwitterBearerToken == "" {
		log.Println("warn: TWITTER_BEARER_TOKEN is empty, list requests will be rejected")
	}
	return collector.NewTwitterListFetcher(cfg.TwitterAPIBase, cfg.TwitterBearerToken, cfg.FetchRPS)
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
