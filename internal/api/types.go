package api

import (
	"screening-map/internal/filter"
	"screening-map/internal/selection"
	"screening-map/internal/site"
)

// siteJSON：可见列表中的一行，附带区名称、颜色与选中状态
type siteJSON struct {
	Key              site.MarkerKey `json:"key"`
	ZonaID           int64          `json:"zona_id"`
	ZoneName         string         `json:"zone_name"`
	Color            string         `json:"color"`
	Rank             int            `json:"rank"`
	ScreeningID      int64          `json:"screening_id"`
	PopulationMedian float64        `json:"population_median"`
	District         string         `json:"district,omitempty"`
	Lat              float64        `json:"lat"`
	Lon              float64        `json:"lon"`
	SiteType         string         `json:"site_type"`
	TotalScreened    int64          `json:"total_screened"`
	TotalDiagnosed   int64          `json:"total_diagnosed"`
	Yield            float64        `json:"yield"`
	Selected         bool           `json:"selected"`
	Highlighted      bool           `json:"highlighted"`
}

type sitesResponse struct {
	Generation uint64          `json:"generation"`
	Count      int             `json:"count"`
	Criteria   filter.Criteria `json:"criteria"`
	Bounds     *[4]float64     `json:"bounds"`
	Sites      []siteJSON      `json:"sites"`
}

type zoneJSON struct {
	ZonaID int64  `json:"zona_id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

type refreshResponse struct {
	Generation uint64 `json:"generation"`
	Applied    bool   `json:"applied"`
	Sites      int    `json:"sites"`
	Zones      int    `json:"zones"`
}

type toggleResponse struct {
	Key      site.MarkerKey  `json:"key"`
	Selected bool            `json:"selected"`
	State    selection.State `json:"state"`
}
