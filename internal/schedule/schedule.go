// 包 schedule：服务进程内的定时整体刷新
package schedule

import (
	"context"
	"log/slog"
	"time"

	"screening-map/internal/logger"

	"github.com/robfig/cron/v3"
)

// 文档注释：按 cron 表达式定时执行刷新
// 背景：上报数据每天由外勤录入，看板按固定节奏整体重载，不依赖有人打开页面。
// 约束：spec 为空时不启动并返回 nil；支持标准五段式与 @every/@daily 描述符；
// 上一次尚未结束时跳过本次触发；每次执行带 timeout 超时（<=0 时不设超时）。
func Start(spec string, timeout time.Duration, fn func(ctx context.Context)) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	l := logger.L()
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{l})))
	id, err := c.AddJob(spec, Job(timeout, fn))
	if err != nil {
		return nil, err
	}
	c.Start()
	l.Info("refresh_cron_started", "spec", spec, "next", c.Entry(id).Next)
	return c, nil
}

// Job：把刷新函数包装成 cron 任务
func Job(timeout time.Duration, fn func(ctx context.Context)) cron.Job {
	return cron.FuncJob(func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		logger.L().Info("refresh_cron_tick")
		fn(ctx)
		logger.L().Debug("refresh_cron_done", "ms", time.Since(start).Milliseconds())
	})
}

// Stop：停止调度并等待正在执行的任务结束
func Stop(c *cron.Cron) {
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// cronLogger：把 cron 内部日志接到 slog
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron_"+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron_"+msg, append([]any{"err", err}, kv...)...)
}
