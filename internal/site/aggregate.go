package site

import (
	"cmp"
	"maps"
	"slices"
)

// 文档注释：把原始记录合并为每个筛查点一条的规范条目
// 背景：每次加载都从完整原始集合重新计算，不对旧结果做增量修补，避免重复拉取时的重复累加。
// 约束：描述字段（区、坐标、类型、行政区）按“最后写入为准”；“最后”取自记录的规范顺序而非输入顺序，
// 因此任意排列的同一输入得到完全相同的结果。负数计数按 0 计入。
func Aggregate(raw []RawRecord) map[MarkerKey]Entry {
	ordered := slices.Clone(raw)
	slices.SortStableFunc(ordered, compareRaw)
	out := make(map[MarkerKey]Entry, len(ordered))
	for _, r := range ordered {
		k := KeyOf(r.ScreeningLocationID)
		e, ok := out[k]
		if !ok {
			e = Entry{Key: k, ScreeningID: r.ScreeningLocationID}
		}
		e.TotalScreened += nonNegative(r.Screened)
		e.TotalDiagnosed += nonNegative(r.Diagnosed)
		e.ZoneID = r.ZoneID
		e.Lat = r.Lat
		e.Lon = r.Lon
		e.SiteType = r.SiteType
		if r.District != "" {
			e.District = r.District
		}
		out[k] = e
	}
	return out
}

func compareRaw(a, b RawRecord) int {
	return cmp.Or(
		cmp.Compare(a.ScreeningLocationID, b.ScreeningLocationID),
		a.Period.Compare(b.Period),
		cmp.Compare(a.ZoneID, b.ZoneID),
		cmp.Compare(a.Lat, b.Lat),
		cmp.Compare(a.Lon, b.Lon),
		cmp.Compare(a.SiteType, b.SiteType),
		cmp.Compare(a.District, b.District),
		cmp.Compare(a.Screened, b.Screened),
		cmp.Compare(a.Diagnosed, b.Diagnosed),
	)
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// Sorted：按筛查点 ID 升序输出条目，作为过滤与排序的稳定输入顺序
func Sorted(m map[MarkerKey]Entry) []Entry {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.ScreeningID, b.ScreeningID), cmp.Compare(a.Key, b.Key))
	})
	return out
}

// Keys：当前已知的全部标记键
func Keys(m map[MarkerKey]Entry) []MarkerKey {
	out := slices.Collect(maps.Keys(m))
	slices.Sort(out)
	return out
}

// 文档注释：把街区统计按 ZoneID 关联到规范条目（返回新映射，不修改输入）
// 约束：同一 ZoneID 的多条统计按规范顺序取最后一条；统计中的行政区非空时覆盖原始记录携带的行政区。
func AttachStats(entries map[MarkerKey]Entry, stats []NeighborhoodStat) map[MarkerKey]Entry {
	ordered := slices.Clone(stats)
	slices.SortStableFunc(ordered, func(a, b NeighborhoodStat) int {
		return cmp.Or(
			cmp.Compare(a.ZoneID, b.ZoneID),
			cmp.Compare(a.District, b.District),
			cmp.Compare(a.Rank, b.Rank),
			cmp.Compare(a.PopulationMedian, b.PopulationMedian),
		)
	})
	byZone := make(map[int64]NeighborhoodStat, len(ordered))
	for _, s := range ordered {
		byZone[s.ZoneID] = s
	}
	out := make(map[MarkerKey]Entry, len(entries))
	for k, e := range entries {
		if s, ok := byZone[e.ZoneID]; ok {
			e.Rank = s.Rank
			e.PopulationMedian = s.PopulationMedian
			if s.District != "" {
				e.District = s.District
			}
		}
		out[k] = e
	}
	return out
}

// Districts：统计中出现的行政区（去重、去空、升序）
func Districts(stats []NeighborhoodStat) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range stats {
		if s.District == "" {
			continue
		}
		if _, ok := seen[s.District]; ok {
			continue
		}
		seen[s.District] = struct{}{}
		out = append(out, s.District)
	}
	slices.Sort(out)
	return out
}

// InDistrict：某行政区的街区统计，按 ZoneID 升序
func InDistrict(stats []NeighborhoodStat, district string) []NeighborhoodStat {
	var out []NeighborhoodStat
	for _, s := range stats {
		if s.District == district {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b NeighborhoodStat) int { return cmp.Compare(a.ZoneID, b.ZoneID) })
	return out
}
