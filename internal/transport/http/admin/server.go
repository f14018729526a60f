// Package adminhttp serves the agent's small operator surface: health,
// prometheus metrics, the autopilot override, the dedup cursor and the
// recent audit trail.
package adminhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloneexec/internal/audit"
	"cloneexec/internal/dedup"
	"cloneexec/internal/logger"
	"cloneexec/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AutopilotControl 是本地 autopilot 覆盖的读写入口，*agent.Router 实现它。
type AutopilotControl interface {
	SetOverride(v *bool)
	Override() (autopilot bool, set bool)
}

// CursorControl 暴露 dedup 游标，*dedup.Guard 实现它。
type CursorControl interface {
	Cursor() dedup.Cursor
	Restore(ctx context.Context, c dedup.Cursor) error
}

// StatsSource 返回调度器的运行统计。
type StatsSource interface {
	Stats() scheduler.Stats
}

// Server 提供 admin HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 admin HTTP 服务依赖，除 Addr 外均可为空。
type ServerConfig struct {
	Addr      string
	CloneID   string
	Autopilot AutopilotControl
	Cursor    CursorControl
	Audit     audit.Reader
	Stats     StatsSource
	Gatherer  prometheus.Gatherer
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clone_id": cfg.CloneID})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	h := &handlers{cfg: cfg}
	h.Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}
}

// Handler 返回底层 http.Handler，测试中直接使用。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("Admin: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
