// 包 api：集中注册 HTTP API 路由以解耦主入口
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"screening-map/internal/dashboard"
	"screening-map/internal/filter"
	"screening-map/internal/geoloc"
	"screening-map/internal/logger"
	"screening-map/internal/selection"
	"screening-map/internal/site"
)

type Deps struct {
	Dash    *dashboard.Dashboard
	Hub     *Hub
	Presets filter.Presets
	Log     *slog.Logger
}

// 构建并返回 API 路由：独立 ServeMux，在主入口挂载到 API_BASE 前缀下
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Log == nil {
		d.Log = logger.L()
	}
	if d.Hub == nil {
		d.Hub = NewHub(d.Dash.Selection(), d.Log)
	}
	h := &handlers{Deps: d}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites", h.sites)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("GET /zones", h.zones)
	mux.HandleFunc("GET /districts", h.districts)
	mux.HandleFunc("GET /districts/zones", h.districtZones)
	mux.HandleFunc("GET /selection", h.selection)
	mux.HandleFunc("POST /selection/toggle", h.toggle)
	mux.HandleFunc("POST /selection/confirm", h.confirm)
	mux.HandleFunc("POST /highlight", h.highlight)
	mux.HandleFunc("GET /presets", h.presets)
	mux.Handle("GET /events", d.Hub)
	return mux
}

type handlers struct {
	Deps
}

func (h *handlers) sites(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r.URL.Query(), h.Presets)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := h.Dash.Visible(c)
	st := h.Dash.Selection().State()
	out := sitesResponse{
		Generation: h.Dash.Snapshot().Generation,
		Count:      len(v.Entries),
		Criteria:   c,
		Sites:      make([]siteJSON, 0, len(v.Entries)),
	}
	if v.HasBBox {
		b := v.Bounds
		out.Bounds = &b
	}
	for _, e := range v.Entries {
		out.Sites = append(out.Sites, siteJSON{
			Key:              e.Key,
			ZonaID:           e.ZoneID,
			ZoneName:         v.Zones.Name(e.ZoneID),
			Color:            v.Colors[e.ZoneID],
			Rank:             e.Rank,
			ScreeningID:      e.ScreeningID,
			PopulationMedian: e.PopulationMedian,
			District:         e.District,
			Lat:              e.Lat,
			Lon:              e.Lon,
			SiteType:         e.SiteType,
			TotalScreened:    e.TotalScreened,
			TotalDiagnosed:   e.TotalDiagnosed,
			Yield:            site.YieldRatio(e),
			Selected:         st.IsSelected(e.Key),
			Highlighted:      st.Highlighted == e.Key,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	snap, applied := h.Dash.Refresh(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, refreshResponse{
		Generation: snap.Generation,
		Applied:    applied,
		Sites:      len(snap.Entries),
		Zones:      snap.Zones.Len(),
	})
}

func (h *handlers) zones(w http.ResponseWriter, r *http.Request) {
	snap := h.Dash.Snapshot()
	out := make([]zoneJSON, 0, snap.Zones.Len())
	for _, id := range snap.Zones.IDs() {
		out = append(out, zoneJSON{ZonaID: id, Name: snap.Zones.Name(id), Color: snap.Palette.Color(id)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": out})
}

func (h *handlers) districts(w http.ResponseWriter, r *http.Request) {
	ds := h.Dash.Districts()
	if ds == nil {
		ds = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"districts": ds})
}

func (h *handlers) districtZones(w http.ResponseWriter, r *http.Request) {
	d := strings.TrimSpace(r.URL.Query().Get("district"))
	if d == "" {
		writeError(w, http.StatusBadRequest, "district is required")
		return
	}
	stats := h.Dash.ZoneStats(d)
	if stats == nil {
		stats = []site.NeighborhoodStat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"district": d, "zones": stats})
}

func (h *handlers) selection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Dash.Selection().State())
}

func (h *handlers) toggle(w http.ResponseWriter, r *http.Request) {
	key := site.MarkerKey(strings.TrimSpace(r.URL.Query().Get("key")))
	if _, ok := h.Dash.Snapshot().Entries[key]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown site %q", key))
		return
	}
	sel := h.Dash.Selection()
	on := sel.Toggle(key)
	writeJSON(w, http.StatusOK, toggleResponse{Key: key, Selected: on, State: sel.State()})
}

func (h *handlers) highlight(w http.ResponseWriter, r *http.Request) {
	key := site.MarkerKey(strings.TrimSpace(r.URL.Query().Get("key")))
	sel := h.Dash.Selection()
	if !sel.SetHighlighted(key) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown site %q", key))
		return
	}
	writeJSON(w, http.StatusOK, sel.State())
}

func (h *handlers) confirm(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Dash.Confirm(r.Context())
	switch {
	case errors.Is(err, selection.ErrNothingToConfirm), errors.Is(err, selection.ErrConfirmInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, dashboard.ErrNoSink):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.Log.Error("confirm_error", "err", err)
		writeError(w, http.StatusBadGateway, "ticket write failed, selection kept")
		return
	}
	w.Header().Set("x-batch-id", rows[0].BatchID.String())
	w.Header().Set("x-ticket-count", fmt.Sprint(len(rows)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) presets(w http.ResponseWriter, r *http.Request) {
	p := h.Presets
	if p == nil {
		p = filter.Presets{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": p.Names(), "presets": p})
}

// ConfigJS：向前端暴露 API 基础路径与地图初始中心，避免硬编码
func ConfigJS(apiBase string, loc *geoloc.Locator, fallback [2]float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center, fromIP := fallback, false
		if loc != nil {
			center, fromIP = loc.Center(clientIP(r))
		}
		src := "default"
		if fromIP {
			src = "ip"
		}
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		fmt.Fprintf(w, "window.__API_BASE__='%s'\n", apiBase)
		fmt.Fprintf(w, "window.__MAP_CENTER__=[%g,%g]\n", center[0], center[1])
		fmt.Fprintf(w, "window.__MAP_CENTER_SOURCE__='%s'\n", src)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
