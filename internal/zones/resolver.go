package zones

import (
	"context"
	"log/slog"
	"sync"

	"screening-map/internal/logger"
	"screening-map/internal/metrics"
)

// 文档注释：区名称解析器（一次性加载）
// 背景：首次 Load 读取几何源并构建索引，之后直接返回同一只读索引；显式刷新时通过 Reset 触发重新加载。
// 约束：读取或解析失败时返回空索引并记录告警，不向调用方返回错误；失败结果不缓存，下次 Load 会重试。
type Resolver struct {
	src  Source
	opts ParseOptions
	log  *slog.Logger

	mu     sync.Mutex
	loaded *Index
}

func NewResolver(src Source, opts ParseOptions, log *slog.Logger) *Resolver {
	if log == nil {
		log = logger.L()
	}
	return &Resolver{src: src, opts: opts.withDefaults(), log: log}
}

func (r *Resolver) Load(ctx context.Context) *Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded != nil {
		return r.loaded
	}
	if r.src == nil {
		return Empty()
	}
	b, err := r.src.ReadZones(ctx)
	if err != nil {
		metrics.SourceFailTotal.WithLabelValues("zones").Inc()
		r.log.Warn("zones_load_error", "err", err)
		return Empty()
	}
	ix, skipped, err := Parse(b, r.opts)
	if err != nil {
		metrics.SourceFailTotal.WithLabelValues("zones_parse").Inc()
		r.log.Warn("zones_parse_error", "err", err, "bytes", len(b))
		return Empty()
	}
	if skipped > 0 {
		r.log.Debug("zones_features_skipped", "count", skipped)
	}
	r.log.Info("zones_loaded", "zones", ix.Len())
	r.loaded = ix
	return ix
}

// Reset：丢弃已加载索引，下次 Load 重新读取数据源
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.loaded = nil
	r.mu.Unlock()
}
