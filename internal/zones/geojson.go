package zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNotGeoJSON = errors.New("zones: not a geojson feature or feature collection")

// ParseOptions：要素属性中区编号与名称所在的字段名
type ParseOptions struct {
	IDProperty   string
	NameProperty string
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.IDProperty == "" {
		o.IDProperty = "zona_id"
	}
	if o.NameProperty == "" {
		o.NameProperty = "zone_name"
	}
	return o
}

// 文档注释：解析 GeoJSON FeatureCollection/Feature 为区名称索引
// 背景：几何源中区编号常以浮点存储，这里统一向下取整后作为键；名称取自要素属性。
// 约束：缺少编号的要素跳过；属性中没有编号时回退到要素的 id 字段；同一编号以第一个非空名称为准。
// 返回：索引与跳过的要素数；JSON 非法或顶层类型不符时返回错误。
func Parse(data []byte, opts ParseOptions) (*Index, int, error) {
	opts = opts.withDefaults()
	var gj map[string]any
	if err := json.Unmarshal(data, &gj); err != nil {
		return nil, 0, fmt.Errorf("zones: decode geojson: %w", err)
	}
	var features []map[string]any
	switch strings.ToLower(getStr(gj, "type")) {
	case "featurecollection":
		arr, ok := gj["features"].([]any)
		if !ok {
			return nil, 0, ErrNotGeoJSON
		}
		for _, it := range arr {
			if f, ok := it.(map[string]any); ok {
				features = append(features, f)
			}
		}
	case "feature":
		features = append(features, gj)
	default:
		return nil, 0, ErrNotGeoJSON
	}

	names := make(map[int64]string, len(features))
	skipped := 0
	for _, f := range features {
		props, _ := f["properties"].(map[string]any)
		raw, ok := props[opts.IDProperty]
		if !ok || raw == nil {
			raw = f["id"]
		}
		id, ok := toZoneID(raw)
		if !ok {
			skipped++
			continue
		}
		name := strings.TrimSpace(getStr(props, opts.NameProperty))
		if prev, exists := names[id]; exists && prev != "" {
			continue
		}
		names[id] = name
	}
	return &Index{names: names}, skipped, nil
}

func getStr(m map[string]any, k string) string {
	if v, ok := m[k].(string); ok {
		return v
	}
	return ""
}

// toZoneID：数值或数字文本向下取整；非有限值视为无效
func toZoneID(v any) (int64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Floor(f)), true
}
