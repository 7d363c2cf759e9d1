package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"screening-map/internal/logger"
	"screening-map/internal/selection"
	"screening-map/internal/site"
)

// Event：推送给浏览器视图的一条 SSE 消息
type Event struct {
	Type string
	Data any
}

// 文档注释：SSE 推送中心
// 背景：浏览器里的列表视图和地图视图都订阅同一个事件流；协调器的状态变化与行动画经由这里广播。
// 约束：
// - 有连接时挂载为协调器的列表动画端，最后一个连接断开即卸载，进行中的闪烁随之取消
// - 发送不阻塞：客户端缓冲区满时丢弃该客户端的本条消息
// - 动画与状态回调在协调器锁内执行，这里只取自身的锁
type Hub struct {
	sel  *selection.Coordinator
	log  *slog.Logger
	ping time.Duration

	mountMu sync.Mutex

	mu      sync.Mutex
	clients map[chan Event]struct{}
	last    selection.State
	unsub   func()
}

func NewHub(sel *selection.Coordinator, log *slog.Logger) *Hub {
	if log == nil {
		log = logger.L()
	}
	h := &Hub{sel: sel, log: log, ping: 25 * time.Second, clients: map[chan Event]struct{}{}}
	h.unsub = sel.Subscribe(h.onState)
	return h
}

// onState：选中集合变化推送 selection，高亮变化推送 highlight
func (h *Hub) onState(s selection.State) {
	h.mu.Lock()
	prev := h.last
	h.last = s
	h.mu.Unlock()
	if !slices.Equal(prev.Selected, s.Selected) {
		h.broadcast(Event{Type: "selection", Data: s})
	}
	if prev.Highlighted != s.Highlighted {
		h.broadcast(Event{Type: "highlight", Data: map[string]any{"key": s.Highlighted}})
	}
}

func (h *Hub) ScrollIntoView(key site.MarkerKey) {
	h.broadcast(Event{Type: "scroll", Data: map[string]any{"key": key}})
}

func (h *Hub) Pulse(key site.MarkerKey, cycle int) {
	h.broadcast(Event{Type: "pulse", Data: map[string]any{"key": key, "cycle": cycle}})
}

func (h *Hub) PulseEnd(key site.MarkerKey) {
	h.broadcast(Event{Type: "pulse_end", Data: map[string]any{"key": key}})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.log.Debug("sse_drop", "type", ev.Type)
		}
	}
}

func (h *Hub) subscribe() (chan Event, func()) {
	ch := make(chan Event, 32)
	h.mountMu.Lock()
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	first := len(h.clients) == 1
	h.mu.Unlock()
	if first {
		h.sel.AttachList(h)
	}
	h.mountMu.Unlock()
	return ch, func() {
		h.mountMu.Lock()
		h.mu.Lock()
		delete(h.clients, ch)
		last := len(h.clients) == 0
		h.mu.Unlock()
		if last {
			h.sel.DetachList()
		}
		h.mountMu.Unlock()
	}
}

// Clients：当前连接数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close：退订协调器
func (h *Hub) Close() {
	if h.unsub != nil {
		h.unsub()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("content-type", "text/event-stream")
	w.Header().Set("cache-control", "no-store")
	w.Header().Set("connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch, done := h.subscribe()
	defer done()
	h.log.Debug("sse_open", "clients", h.Clients())

	// 新连接先收到当前状态
	st := h.sel.State()
	writeEvent(w, Event{Type: "selection", Data: st})
	fl.Flush()

	t := time.NewTicker(h.ping)
	defer t.Stop()
	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("sse_close")
			return
		case ev := <-ch:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			fl.Flush()
		case <-t.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			fl.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	b, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b)
	return err
}
