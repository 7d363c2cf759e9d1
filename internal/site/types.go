// 包 site：筛查点原始记录与规范条目的数据结构，以及把多期原始记录合并为单一规范条目的聚合逻辑
package site

import (
	"strconv"
	"time"
)

// MarkerKey：物理筛查点的唯一标识，等于筛查点 ID 的十进制文本
type MarkerKey string

func KeyOf(screeningLocationID int64) MarkerKey {
	return MarkerKey(strconv.FormatInt(screeningLocationID, 10))
}

// RawRecord：一条按报告周期上报的原始记录；同一 ScreeningLocationID 可出现多次
type RawRecord struct {
	ZoneID              int64     `json:"zona_id"`
	ScreeningLocationID int64     `json:"screening_location_id"`
	Lat                 float64   `json:"lat"`
	Lon                 float64   `json:"lon"`
	SiteType            string    `json:"site_type"`
	District            string    `json:"district,omitempty"`
	Screened            int64     `json:"screened_count"`
	Diagnosed           int64     `json:"diagnosed_count"`
	Period              time.Time `json:"period,omitzero"`
}

// Entry：规范条目，每个物理筛查点一条；合计值为全部同键原始记录之和
type Entry struct {
	Key              MarkerKey `json:"key"`
	ZoneID           int64     `json:"zona_id"`
	Rank             int       `json:"rank"`
	ScreeningID      int64     `json:"screening_id"`
	PopulationMedian float64   `json:"population_median"`
	District         string    `json:"district"`
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	SiteType         string    `json:"site_type"`
	TotalScreened    int64     `json:"total_screened"`
	TotalDiagnosed   int64     `json:"total_diagnosed"`
}

// NeighborhoodStat：街区统计，按 ZoneID 关联到规范条目
type NeighborhoodStat struct {
	ZoneID           int64   `json:"zona_id"`
	Rank             int     `json:"rank"`
	PopulationMedian float64 `json:"population_median"`
	District         string  `json:"district"`
}

// YieldRatio：100 * 确诊 / 筛查；未筛查时为 0
func YieldRatio(e Entry) float64 {
	if e.TotalScreened <= 0 {
		return 0
	}
	return 100 * float64(e.TotalDiagnosed) / float64(e.TotalScreened)
}
