package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screening-map/internal/logger"
	"screening-map/internal/site"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type event struct {
	kind  string
	key   site.MarkerKey
	cycle int
}

type recorder struct{ ch chan event }

func newRecorder() *recorder { return &recorder{ch: make(chan event, 64)} }

func (r *recorder) ScrollIntoView(k site.MarkerKey) { r.ch <- event{kind: "scroll", key: k} }
func (r *recorder) Pulse(k site.MarkerKey, i int)   { r.ch <- event{kind: "pulse", key: k, cycle: i} }
func (r *recorder) PulseEnd(k site.MarkerKey)       { r.ch <- event{kind: "end", key: k} }

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for animation event")
	}
	return event{}
}

func (r *recorder) drained() []event {
	var out []event
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func newTestCoordinator(t *testing.T, cfg PulseConfig, known ...site.MarkerKey) *Coordinator {
	t.Helper()
	c := NewCoordinator(cfg, logger.Discard())
	c.Reconcile(known)
	t.Cleanup(c.Close)
	return c
}

func TestToggleInvolution(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "A", "B")
	require.True(t, c.Toggle("A"))
	before := c.State()

	assert.True(t, c.Toggle("B"))
	assert.False(t, c.Toggle("B"))
	assert.Equal(t, before, c.State())
	assert.True(t, c.State().IsSelected("A"))
	assert.False(t, c.State().IsSelected("B"))
}

func TestToggleIgnoresUnknownKeys(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "A")
	assert.False(t, c.Toggle("Z"))
	assert.Empty(t, c.State().Selected)
	assert.False(t, c.SetHighlighted("Z"))
	assert.Empty(t, c.State().Highlighted)
}

func TestHighlightIsSharedByAllSubscribers(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "A", "B")
	var mu sync.Mutex
	seen := map[string][]site.MarkerKey{}
	for _, view := range []string{"list", "map"} {
		c.Subscribe(func(s State) {
			mu.Lock()
			seen[view] = append(seen[view], s.Highlighted)
			mu.Unlock()
		})
	}

	// 地图点击与列表点击走同一入口
	c.SetHighlighted("B")
	c.SetHighlighted("A")
	c.SetHighlighted("A")
	c.ClearHighlight()

	want := []site.MarkerKey{"", "B", "A", ""}
	assert.Equal(t, want, seen["list"])
	assert.Equal(t, want, seen["map"])
}

func TestUnsubscribe(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "A")
	n := 0
	stop := c.Subscribe(func(State) { n++ })
	c.Toggle("A")
	stop()
	c.Toggle("A")
	assert.Equal(t, 2, n)
}

func TestPulseSequence(t *testing.T) {
	c := newTestCoordinator(t, PulseConfig{Cycles: 3, Interval: time.Millisecond}, "A")
	r := newRecorder()
	c.AttachList(r)

	c.SetHighlighted("A")
	got := []event{}
	for i := 0; i < 5; i++ {
		got = append(got, r.next(t))
	}
	assert.Equal(t, []event{
		{kind: "scroll", key: "A"},
		{kind: "pulse", key: "A", cycle: 0},
		{kind: "pulse", key: "A", cycle: 1},
		{kind: "pulse", key: "A", cycle: 2},
		{kind: "end", key: "A"},
	}, got)
	c.Close()
	assert.Empty(t, r.drained())
}

func TestNewHighlightCancelsPulse(t *testing.T) {
	c := newTestCoordinator(t, PulseConfig{Cycles: 3, Interval: time.Hour}, "A", "B")
	r := newRecorder()
	c.AttachList(r)

	c.SetHighlighted("A")
	assert.Equal(t, event{kind: "scroll", key: "A"}, r.next(t))
	assert.Equal(t, event{kind: "pulse", key: "A"}, r.next(t))

	c.SetHighlighted("B")
	assert.Equal(t, event{kind: "scroll", key: "B"}, r.next(t))
	assert.Equal(t, event{kind: "pulse", key: "B"}, r.next(t))

	c.Close()
	for _, ev := range r.drained() {
		assert.NotEqual(t, site.MarkerKey("A"), ev.key)
	}
}

func TestRehighlightSameKeyRestartsPulse(t *testing.T) {
	c := newTestCoordinator(t, PulseConfig{Cycles: 3, Interval: time.Hour}, "A")
	r := newRecorder()
	c.AttachList(r)
	published := 0
	c.Subscribe(func(State) { published++ })

	c.SetHighlighted("A")
	assert.Equal(t, event{kind: "scroll", key: "A"}, r.next(t))
	assert.Equal(t, event{kind: "pulse", key: "A"}, r.next(t))

	assert.True(t, c.SetHighlighted("A"))
	assert.Equal(t, event{kind: "scroll", key: "A"}, r.next(t))
	assert.Equal(t, event{kind: "pulse", key: "A"}, r.next(t))

	c.Close()
	assert.Empty(t, r.drained())
	assert.Equal(t, 2, published)
}

func TestDetachCancelsPulse(t *testing.T) {
	c := newTestCoordinator(t, PulseConfig{Cycles: 3, Interval: time.Hour}, "A")
	r := newRecorder()
	c.AttachList(r)

	c.SetHighlighted("A")
	r.next(t)
	r.next(t)
	c.DetachList()
	c.Close()
	assert.Empty(t, r.drained())
	assert.Equal(t, site.MarkerKey("A"), c.State().Highlighted)
}

func TestHighlightWithoutListDoesNotAnimate(t *testing.T) {
	c := newTestCoordinator(t, PulseConfig{Cycles: 1, Interval: time.Millisecond}, "A")
	c.SetHighlighted("A")
	r := newRecorder()
	c.AttachList(r)
	c.Close()
	assert.Empty(t, r.drained())
}

func TestReconcilePrunes(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "A", "B", "C")
	c.Toggle("A")
	c.Toggle("C")
	c.SetHighlighted("C")

	c.Reconcile([]site.MarkerKey{"A", "B"})
	assert.Equal(t, State{Selected: []site.MarkerKey{"A"}}, c.State())
}

type fakeSink struct {
	err  error
	rows [][]PendingInsert
}

func (f *fakeSink) Insert(_ context.Context, rows []PendingInsert) error {
	f.rows = append(f.rows, rows)
	return f.err
}

func entries(ids ...int64) map[site.MarkerKey]site.Entry {
	out := map[site.MarkerKey]site.Entry{}
	for _, id := range ids {
		k := site.KeyOf(id)
		out[k] = site.Entry{Key: k, ScreeningID: id}
	}
	return out
}

func TestConfirmSkipsStaleAndClears(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "101", "202", "303")
	c.Toggle("101")
	c.Toggle("303")
	sink := &fakeSink{}

	// 303 在确认前已从数据中消失
	rows, err := c.Confirm(context.Background(), entries(101, 202), sink)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(101), rows[0].ScreeningLocationID)
	assert.NotEqual(t, uuid.Nil, rows[0].BatchID)
	assert.Equal(t, [][]PendingInsert{rows}, sink.rows)
	assert.Empty(t, c.State().Selected)
}

func TestConfirmSharesBatchID(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "101", "202")
	c.Toggle("101")
	c.Toggle("202")
	rows, err := c.Confirm(context.Background(), entries(101, 202), &fakeSink{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].BatchID, rows[1].BatchID)
}

func TestConfirmFailureKeepsSelection(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "101")
	c.Toggle("101")
	boom := errors.New("connection refused")

	_, err := c.Confirm(context.Background(), entries(101), &fakeSink{err: boom})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []site.MarkerKey{"101"}, c.State().Selected)
}

// gatedSink 在 Insert 中阻塞，直到 release 关闭
type gatedSink struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	rows    int
}

func (g *gatedSink) Insert(ctx context.Context, rows []PendingInsert) error {
	g.entered <- struct{}{}
	<-g.release
	g.mu.Lock()
	g.rows += len(rows)
	g.mu.Unlock()
	return nil
}

func TestOverlappingConfirmWritesOnce(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "101", "202")
	c.Toggle("101")
	c.Toggle("202")
	sink := &gatedSink{entered: make(chan struct{}, 1), release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := c.Confirm(context.Background(), entries(101, 202), sink)
		done <- err
	}()
	<-sink.entered

	_, err := c.Confirm(context.Background(), entries(101, 202), sink)
	require.ErrorIs(t, err, ErrConfirmInProgress)

	close(sink.release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, sink.rows)
	assert.Empty(t, c.State().Selected)

	_, err = c.Confirm(context.Background(), entries(101, 202), sink)
	assert.ErrorIs(t, err, ErrNothingToConfirm)
}

func TestConfirmRetryAfterFailure(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "101")
	c.Toggle("101")

	_, err := c.Confirm(context.Background(), entries(101), &fakeSink{err: errors.New("timeout")})
	require.Error(t, err)
	rows, err := c.Confirm(context.Background(), entries(101), &fakeSink{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestConfirmNothingResolves(t *testing.T) {
	c := newTestCoordinator(t, DefaultPulse(), "101")
	c.Toggle("101")
	sink := &fakeSink{}

	_, err := c.Confirm(context.Background(), entries(202), sink)
	require.ErrorIs(t, err, ErrNothingToConfirm)
	assert.Empty(t, sink.rows)
	assert.Equal(t, []site.MarkerKey{"101"}, c.State().Selected)
}
