// 包 selection：列表视图与地图视图共享的选中/高亮状态
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"screening-map/internal/logger"
	"screening-map/internal/metrics"
	"screening-map/internal/site"

	"github.com/google/uuid"
)

var (
	ErrNothingToConfirm  = errors.New("selection: no selected site resolves to a current entry")
	ErrConfirmInProgress = errors.New("selection: another confirm is still writing")
)

// PendingInsert：确认后写入工单表的一行；同一次确认共享 BatchID
type PendingInsert struct {
	ScreeningLocationID int64     `json:"screening_location_id"`
	BatchID             uuid.UUID `json:"batch_id"`
}

// TicketSink：工单写入端
type TicketSink interface {
	Insert(ctx context.Context, rows []PendingInsert) error
}

// State：某一时刻的选中集合（升序）与高亮点
type State struct {
	Selected    []site.MarkerKey `json:"selected"`
	Highlighted site.MarkerKey   `json:"highlighted,omitempty"`
}

func (s State) IsSelected(k site.MarkerKey) bool {
	_, ok := slices.BinarySearch(s.Selected, k)
	return ok
}

// Listener：状态变化回调。在协调器锁内调用，不得同步回调协调器。
type Listener func(State)

// 文档注释：列表视图的行动画
// 背景：高亮变化时先滚动到对应行一次，再闪烁固定次数，最后通知结束。
// 约束：在协调器锁内调用，实现必须非阻塞且不得同步回调协调器。
type RowAnimator interface {
	ScrollIntoView(key site.MarkerKey)
	Pulse(key site.MarkerKey, cycle int)
	PulseEnd(key site.MarkerKey)
}

type PulseConfig struct {
	Cycles   int
	Interval time.Duration
}

func DefaultPulse() PulseConfig {
	return PulseConfig{Cycles: 3, Interval: 450 * time.Millisecond}
}

// 文档注释：选中协调器
// 背景：两个视图不各自保存高亮，一切点击都经由同一个协调器，再由它广播给所有订阅者。
// 约束：
// - 选中集合始终是已知键集合的子集；未知键的切换被忽略
// - 同一时刻至多一个闪烁序列；新的高亮、清除高亮、卸载列表都会取消进行中的序列
// - 被取消的序列不会再调用任何动画方法
type Coordinator struct {
	log   *slog.Logger
	pulse PulseConfig

	mu          sync.Mutex
	known       map[site.MarkerKey]struct{}
	selected    map[site.MarkerKey]struct{}
	highlighted site.MarkerKey
	listeners   map[int]Listener
	nextID      int
	animator    RowAnimator
	pulseGen    uint64
	pulseCancel context.CancelFunc
	confirming  bool
	closed      bool
	wg          sync.WaitGroup
}

func NewCoordinator(cfg PulseConfig, log *slog.Logger) *Coordinator {
	if log == nil {
		log = logger.L()
	}
	if cfg.Cycles < 0 {
		cfg.Cycles = 0
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPulse().Interval
	}
	return &Coordinator{
		log:       log,
		pulse:     cfg,
		known:     map[site.MarkerKey]struct{}{},
		selected:  map[site.MarkerKey]struct{}{},
		listeners: map[int]Listener{},
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	sel := make([]site.MarkerKey, 0, len(c.selected))
	for k := range c.selected {
		sel = append(sel, k)
	}
	slices.Sort(sel)
	return State{Selected: sel, Highlighted: c.highlighted}
}

func (c *Coordinator) publishLocked() {
	if len(c.listeners) == 0 {
		return
	}
	st := c.stateLocked()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		c.listeners[id](st)
	}
}

// Subscribe：注册监听并立即推送当前状态；返回取消订阅函数
func (c *Coordinator) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	fn(c.stateLocked())
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Toggle：切换选中；连续两次调用恢复原状。返回切换后是否选中，未知键返回 false 且不改变状态。
func (c *Coordinator) Toggle(key site.MarkerKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.known[key]; !ok {
		c.log.Debug("selection_toggle_unknown", "key", key)
		return false
	}
	_, on := c.selected[key]
	if on {
		delete(c.selected, key)
	} else {
		c.selected[key] = struct{}{}
	}
	c.publishLocked()
	return !on
}

// SetHighlighted：设置唯一高亮点；空键等价于 ClearHighlight。未知键被忽略并返回 false。
// 重复高亮同一键时重启滚动与闪烁序列。
func (c *Coordinator) SetHighlighted(key site.MarkerKey) bool {
	if key == "" {
		c.ClearHighlight()
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.known[key]; !ok {
		return false
	}
	if c.highlighted == key {
		// 状态不变不广播，只重新滚动并闪烁，列表已滚走时再次点击仍有反馈
		c.startPulseLocked(key)
		return true
	}
	c.highlighted = key
	c.startPulseLocked(key)
	c.publishLocked()
	return true
}

func (c *Coordinator) ClearHighlight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highlighted == "" {
		return
	}
	c.highlighted = ""
	c.cancelPulseLocked()
	c.publishLocked()
}

// AttachList：列表视图挂载
func (c *Coordinator) AttachList(a RowAnimator) {
	c.mu.Lock()
	c.animator = a
	c.mu.Unlock()
}

// DetachList：列表视图卸载，无条件取消进行中的闪烁
func (c *Coordinator) DetachList() {
	c.mu.Lock()
	c.animator = nil
	c.cancelPulseLocked()
	c.mu.Unlock()
}

// 文档注释：按当前规范条目键集合修剪状态
// 背景：刷新后部分站点可能消失，选中和高亮不能指向不存在的条目。
// 约束：known 为刷新后的全部键；状态有变化时才广播。
func (c *Coordinator) Reconcile(known []site.MarkerKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known = make(map[site.MarkerKey]struct{}, len(known))
	for _, k := range known {
		c.known[k] = struct{}{}
	}
	changed := false
	for k := range c.selected {
		if _, ok := c.known[k]; !ok {
			delete(c.selected, k)
			changed = true
		}
	}
	if c.highlighted != "" {
		if _, ok := c.known[c.highlighted]; !ok {
			c.highlighted = ""
			c.cancelPulseLocked()
			changed = true
		}
	}
	if changed {
		c.log.Info("selection_pruned", "selected", len(c.selected))
		c.publishLocked()
	}
}

// 文档注释：确认选中站点并写入工单
// 背景：每个仍能在 entries 中解析到的选中键生成一行插入；已失效的键静默跳过。
// 约束：
// - 写入期间不持锁，写入成功后只清除确认时快照里的键，期间新选中的键保留
// - 写入失败时选中集合保持不变，便于重试
// - 没有任何可解析的键时返回 ErrNothingToConfirm，不调用写入端
// - 同一时刻只允许一次确认在写入；重叠的确认返回 ErrConfirmInProgress，不调用写入端
func (c *Coordinator) Confirm(ctx context.Context, entries map[site.MarkerKey]site.Entry, sink TicketSink) ([]PendingInsert, error) {
	c.mu.Lock()
	if c.confirming {
		c.mu.Unlock()
		metrics.ConfirmTotal.WithLabelValues("busy").Inc()
		return nil, ErrConfirmInProgress
	}
	c.confirming = true
	snap := c.stateLocked().Selected
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.confirming = false
		c.mu.Unlock()
	}()

	batch := uuid.New()
	rows := make([]PendingInsert, 0, len(snap))
	for _, k := range snap {
		e, ok := entries[k]
		if !ok {
			continue
		}
		rows = append(rows, PendingInsert{ScreeningLocationID: e.ScreeningID, BatchID: batch})
	}
	if len(rows) == 0 {
		metrics.ConfirmTotal.WithLabelValues("empty").Inc()
		return nil, ErrNothingToConfirm
	}
	if err := sink.Insert(ctx, rows); err != nil {
		metrics.ConfirmTotal.WithLabelValues("error").Inc()
		c.log.Warn("selection_confirm_error", "batch", batch, "rows", len(rows), "err", err)
		return nil, fmt.Errorf("confirm selection: %w", err)
	}
	metrics.ConfirmTotal.WithLabelValues("ok").Inc()
	c.log.Info("selection_confirmed", "batch", batch, "rows", len(rows), "stale", len(snap)-len(rows))

	c.mu.Lock()
	for _, k := range snap {
		delete(c.selected, k)
	}
	c.publishLocked()
	c.mu.Unlock()
	return rows, nil
}

// Close：取消闪烁并等待后台协程退出；之后的高亮不再触发动画
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.animator = nil
	c.cancelPulseLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) cancelPulseLocked() {
	c.pulseGen++
	if c.pulseCancel != nil {
		c.pulseCancel()
		c.pulseCancel = nil
	}
}

func (c *Coordinator) startPulseLocked(key site.MarkerKey) {
	c.cancelPulseLocked()
	if c.closed || c.animator == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pulseCancel = cancel
	gen := c.pulseGen
	metrics.PulseTotal.WithLabelValues("started").Inc()
	c.wg.Add(1)
	go c.runPulse(ctx, gen, key)
}

// step：仅当序列仍是当前序列且列表仍挂载时执行一次动画调用
func (c *Coordinator) step(ctx context.Context, gen uint64, fn func(RowAnimator)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil || gen != c.pulseGen || c.animator == nil {
		return false
	}
	fn(c.animator)
	return true
}

func (c *Coordinator) runPulse(ctx context.Context, gen uint64, key site.MarkerKey) {
	defer c.wg.Done()
	canceled := func() {
		metrics.PulseTotal.WithLabelValues("canceled").Inc()
		c.log.Debug("pulse_canceled", "key", key)
	}
	if !c.step(ctx, gen, func(a RowAnimator) { a.ScrollIntoView(key) }) {
		canceled()
		return
	}
	t := time.NewTicker(c.pulse.Interval)
	defer t.Stop()
	for i := 0; i < c.pulse.Cycles; i++ {
		if !c.step(ctx, gen, func(a RowAnimator) { a.Pulse(key, i) }) {
			canceled()
			return
		}
		select {
		case <-ctx.Done():
			canceled()
			return
		case <-t.C:
		}
	}
	if !c.step(ctx, gen, func(a RowAnimator) { a.PulseEnd(key) }) {
		canceled()
		return
	}
	metrics.PulseTotal.WithLabelValues("completed").Inc()
}
