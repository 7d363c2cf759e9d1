// 包 dashboard：串联数据读取、聚合、过滤排序与选中协调，是 HTTP 与 CLI 共用的边界层
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"screening-map/internal/filter"
	"screening-map/internal/logger"
	"screening-map/internal/metrics"
	"screening-map/internal/selection"
	"screening-map/internal/site"
	"screening-map/internal/zones"

	"golang.org/x/sync/errgroup"
)

// RecordStore：全量快照读取，不约定分页
type RecordStore interface {
	ReadSiteRecords(ctx context.Context) ([]site.RawRecord, error)
	ReadNeighborhoodStats(ctx context.Context) ([]site.NeighborhoodStat, error)
}

// ZoneLoader：*zones.Resolver 满足该接口
type ZoneLoader interface {
	Load(ctx context.Context) *zones.Index
	Reset()
}

// Snapshot：一次刷新得到的完整派生数据，发布后只读
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time
	Entries    map[site.MarkerKey]site.Entry
	Sorted     []site.Entry
	Stats      []site.NeighborhoodStat
	Zones      *zones.Index
	Palette    *zones.Palette
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Entries: map[site.MarkerKey]site.Entry{},
		Zones:   zones.Empty(),
		Palette: zones.NewPalette(nil, nil),
	}
}

type Options struct {
	Store  RecordStore
	Zones  ZoneLoader
	Sel    *selection.Coordinator
	Sink   selection.TicketSink
	Colors []string
	Log    *slog.Logger
}

// 文档注释：看板
// 背景：每次刷新并行读取三个边界数据源，随后整体重算派生数据并原子替换快照。
// 约束：
// - 任一数据源失败只让该源为空并记录告警，刷新本身不失败
// - 后发起的刷新优先：较早发起但较晚完成的刷新结果被丢弃，不会覆盖更新的快照
// - 快照替换后立即按新键集合修剪选中状态
type Dashboard struct {
	store  RecordStore
	zones  ZoneLoader
	sel    *selection.Coordinator
	sink   selection.TicketSink
	colors []string
	log    *slog.Logger

	issued atomic.Uint64

	mu   sync.RWMutex
	snap *Snapshot
}

func New(o Options) *Dashboard {
	if o.Log == nil {
		o.Log = logger.L()
	}
	if o.Sel == nil {
		o.Sel = selection.NewCoordinator(selection.DefaultPulse(), o.Log)
	}
	return &Dashboard{
		store:  o.Store,
		zones:  o.Zones,
		sel:    o.Sel,
		sink:   o.Sink,
		colors: o.Colors,
		log:    o.Log,
		snap:   emptySnapshot(),
	}
}

func (d *Dashboard) Selection() *selection.Coordinator { return d.sel }

func (d *Dashboard) Snapshot() *Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Refresh：整体重新加载；返回当前生效的快照以及本次结果是否被采用
func (d *Dashboard) Refresh(ctx context.Context) (*Snapshot, bool) {
	gen := d.issued.Add(1)
	start := time.Now()
	metrics.RefreshTotal.Inc()

	var (
		raw   []site.RawRecord
		stats []site.NeighborhoodStat
		ix    *zones.Index
	)
	var g errgroup.Group
	g.Go(func() error {
		if d.store == nil {
			return nil
		}
		r, err := d.store.ReadSiteRecords(ctx)
		if err != nil {
			metrics.SourceFailTotal.WithLabelValues("records").Inc()
			d.log.Warn("records_load_error", "err", err)
			return nil
		}
		raw = r
		return nil
	})
	g.Go(func() error {
		if d.store == nil {
			return nil
		}
		s, err := d.store.ReadNeighborhoodStats(ctx)
		if err != nil {
			metrics.SourceFailTotal.WithLabelValues("stats").Inc()
			d.log.Warn("stats_load_error", "err", err)
			return nil
		}
		stats = s
		return nil
	})
	g.Go(func() error {
		if d.zones == nil {
			ix = zones.Empty()
			return nil
		}
		d.zones.Reset()
		ix = d.zones.Load(ctx)
		return nil
	})
	_ = g.Wait()

	entries := site.AttachStats(site.Aggregate(raw), stats)
	next := &Snapshot{
		Generation: gen,
		LoadedAt:   time.Now(),
		Entries:    entries,
		Sorted:     site.Sorted(entries),
		Stats:      stats,
		Zones:      ix,
		Palette:    zones.NewPalette(ix.IDs(), d.colors),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen < d.snap.Generation {
		metrics.RefreshStaleTotal.Inc()
		d.log.Info("refresh_stale", "gen", gen, "current", d.snap.Generation)
		return d.snap, false
	}
	d.snap = next
	d.sel.Reconcile(site.Keys(entries))
	metrics.SitesCanonical.Set(float64(len(entries)))
	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RefreshDurationMs.Observe(ms)
	d.log.Info("refresh_done", "gen", gen, "raw", len(raw), "sites", len(entries), "zones", ix.Len(), "ms", ms)
	return next, true
}

// View：可见列表以及地图需要的附属信息
type View struct {
	Entries []site.Entry
	Bounds  [4]float64
	HasBBox bool
	Colors  map[int64]string
	Zones   *zones.Index
}

// Visible：在当前快照上过滤并排序
func (d *Dashboard) Visible(c filter.Criteria) View {
	snap := d.Snapshot()
	start := time.Now()
	list := filter.Apply(snap.Sorted, c, snap.Zones)
	metrics.VisibleTotal.Inc()
	metrics.VisibleDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)

	colors := make(map[int64]string)
	for _, e := range list {
		colors[e.ZoneID] = snap.Palette.Color(e.ZoneID)
	}
	b, ok := site.Bounds(list)
	return View{Entries: list, Bounds: b, HasBBox: ok, Colors: colors, Zones: snap.Zones}
}

func (d *Dashboard) Districts() []string {
	return site.Districts(d.Snapshot().Stats)
}

func (d *Dashboard) ZoneStats(district string) []site.NeighborhoodStat {
	return site.InDistrict(d.Snapshot().Stats, district)
}

var ErrNoSink = errors.New("dashboard: no ticket sink configured")

// Confirm：按当前快照解析选中键并写入工单
func (d *Dashboard) Confirm(ctx context.Context) ([]selection.PendingInsert, error) {
	if d.sink == nil {
		return nil, ErrNoSink
	}
	return d.sel.Confirm(ctx, d.Snapshot().Entries, d.sink)
}
