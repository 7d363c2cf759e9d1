package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"screening-map/internal/logger"
	"screening-map/internal/site"
	"screening-map/internal/zones"
)

// readInput：路径为 "-" 时读标准输入
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func readRecords(path string, stdin io.Reader) ([]site.RawRecord, error) {
	b, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}
	var recs []site.RawRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode records %s: %w", path, err)
	}
	return recs, nil
}

func readStats(path string) ([]site.NeighborhoodStat, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stats []site.NeighborhoodStat
	if err := json.Unmarshal(b, &stats); err != nil {
		return nil, fmt.Errorf("decode stats %s: %w", path, err)
	}
	return stats, nil
}

// readZones：与服务端共用 zones.Resolver，几何文件缺失或无法解析时记录告警并退化为空索引
func readZones(ctx context.Context, path string, opts zones.ParseOptions) *zones.Index {
	if path == "" {
		return zones.Empty()
	}
	return zones.NewResolver(zones.FileSource{Path: path}, opts, logger.L()).Load(ctx)
}
