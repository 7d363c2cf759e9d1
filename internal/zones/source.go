package zones

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"screening-map/internal/logger"
	"screening-map/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Source：几何数据源（静态文件或远端地址），返回原始 GeoJSON 字节
type Source interface {
	ReadZones(ctx context.Context) ([]byte, error)
}

// FileSource：从本地文件读取
type FileSource struct {
	Path string
}

func (s FileSource) ReadZones(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}

// 文档注释：HTTP 几何数据源
// 背景：几何文件通常由静态站点托管；设置超时避免加载阻塞刷新流程。
// 约束：非 200 视为不可用；响应体超过上限（默认 64MB）时返回 ErrGeometryTooLarge，不截断。
type HTTPSource struct {
	URL      string
	Client   *http.Client
	MaxBytes int64
}

const maxGeometryBytes = 64 << 20

var ErrGeometryTooLarge = errors.New("zones: geometry body exceeds size limit")

func (s HTTPSource) ReadZones(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zones: fetch %s: status %d", s.URL, resp.StatusCode)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = maxGeometryBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", s.URL, ErrGeometryTooLarge, limit)
	}
	return b, nil
}

// 文档注释：Redis 缓存包装的几何数据源
// 背景：几何文件是静态数据，多实例与重启时复用缓存可避免重复下载。
// 约束：Redis 不可用或未配置时直接透传到内层数据源；缓存写入失败只记录日志。
type CachedSource struct {
	Inner Source
	RC    *redis.Client
	Key   string
	TTL   time.Duration
}

func (s CachedSource) ReadZones(ctx context.Context) ([]byte, error) {
	if s.RC == nil {
		return s.Inner.ReadZones(ctx)
	}
	key := s.Key
	if key == "" {
		key = "zones:geojson"
	}
	if b, err := s.RC.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		metrics.ZonesCacheTotal.WithLabelValues("hit").Inc()
		return b, nil
	} else if err != nil && !errors.Is(err, redis.Nil) {
		logger.L().Debug("zones_cache_get_error", "key", key, "err", err)
	}
	metrics.ZonesCacheTotal.WithLabelValues("miss").Inc()
	b, err := s.Inner.ReadZones(ctx)
	if err != nil {
		return nil, err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.RC.Set(ctx, key, b, ttl).Err(); err != nil {
		logger.L().Debug("zones_cache_set_error", "key", key, "err", err)
	}
	return b, nil
}
