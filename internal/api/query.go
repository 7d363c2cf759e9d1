package api

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"screening-map/internal/filter"
	"screening-map/internal/ranking"
)

var errUnknownPreset = errors.New("unknown preset")

// 文档注释：从查询参数构造过滤条件
// 背景：先取 preset（如有）作为基础，再用显式参数覆盖对应维度。
// 约束：
// - name / zona / loc / type 可重复出现，也可用逗号分隔
// - rank 优先于 rank_screened / rank_diagnosed / rank_yield 三个开关，开关按 筛查数 > 确诊数 > 检出率 收敛
// - 检出率区间非法时返回 filter.ErrYieldRange
func criteriaFromQuery(q url.Values, presets filter.Presets) (filter.Criteria, error) {
	c := filter.Default()
	if name := q.Get("preset"); name != "" {
		p, ok := presets.Get(name)
		if !ok {
			return c, fmt.Errorf("%w %q", errUnknownPreset, name)
		}
		c = p
	}
	if q.Has("name") {
		c.NameTokens = splitTokens(q["name"])
	}
	if q.Has("zona") {
		c.ZonaIDTokens = splitTokens(q["zona"])
	}
	if q.Has("loc") {
		c.LocationIDTokens = splitTokens(q["loc"])
	}
	if q.Has("type") {
		c.SelectedTypes = splitTokens(q["type"])
	}
	var err error
	if c.YieldMin, err = floatParam(q, "yield_min", c.YieldMin); err != nil {
		return c, err
	}
	if c.YieldMax, err = floatParam(q, "yield_max", c.YieldMax); err != nil {
		return c, err
	}
	switch {
	case q.Has("rank"):
		if c.Rank, err = ranking.ParseMode(q.Get("rank")); err != nil {
			return c, err
		}
	case q.Has("rank_screened") || q.Has("rank_diagnosed") || q.Has("rank_yield"):
		c.Rank = ranking.Resolve(ranking.Toggles{
			Screened:  boolParam(q, "rank_screened"),
			Diagnosed: boolParam(q, "rank_diagnosed"),
			Yield:     boolParam(q, "rank_yield"),
		})
	}
	return c, c.Validate()
}

func splitTokens(values []string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return filter.Tokens(parts...)
}

func floatParam(q url.Values, k string, def float64) (float64, error) {
	s := strings.TrimSpace(q.Get(k))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def, fmt.Errorf("%s: %w", k, filter.ErrYieldRange)
	}
	return v, nil
}

func boolParam(q url.Values, k string) bool {
	b, _ := strconv.ParseBool(q.Get(k))
	return b
}
