package ranking

import (
	"encoding/json"
	"testing"

	"screening-map/internal/site"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(entries []site.Entry) []site.MarkerKey {
	out := make([]site.MarkerKey, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

func entry(key string, screened, diagnosed int64) site.Entry {
	return site.Entry{Key: site.MarkerKey(key), TotalScreened: screened, TotalDiagnosed: diagnosed}
}

func TestRankScenario(t *testing.T) {
	a := entry("A", 15, 3)
	b := entry("B", 0, 0)
	assert.Equal(t, []site.MarkerKey{"A", "B"}, keys(Rank([]site.Entry{a, b}, ByScreened)))
	assert.Equal(t, []site.MarkerKey{"A", "B"}, keys(Rank([]site.Entry{b, a}, ByScreened)))
}

func TestRankModes(t *testing.T) {
	in := []site.Entry{
		entry("low", 10, 1),  // 10%
		entry("none", 0, 0),  // 0%
		entry("high", 4, 2),  // 50%
		entry("big", 100, 5), // 5%
	}
	tests := []struct {
		mode Mode
		want []site.MarkerKey
	}{
		{None, []site.MarkerKey{"low", "none", "high", "big"}},
		{ByScreened, []site.MarkerKey{"big", "low", "high", "none"}},
		{ByDiagnosed, []site.MarkerKey{"big", "high", "low", "none"}},
		{ByYield, []site.MarkerKey{"high", "low", "big", "none"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, keys(Rank(in, tt.mode)))
		})
	}
	// 输入不被修改
	assert.Equal(t, []site.MarkerKey{"low", "none", "high", "big"}, keys(in))
}

func TestRankIsStable(t *testing.T) {
	in := []site.Entry{
		entry("first", 5, 1),
		entry("other", 9, 0),
		entry("second", 5, 1),
		entry("zero-a", 0, 0),
		entry("third", 5, 1),
		entry("zero-b", 0, 0),
	}
	assert.Equal(t,
		[]site.MarkerKey{"other", "first", "second", "third", "zero-a", "zero-b"},
		keys(Rank(in, ByScreened)))
	assert.Equal(t,
		[]site.MarkerKey{"first", "second", "third", "other", "zero-a", "zero-b"},
		keys(Rank(in, ByYield)))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in   Toggles
		want Mode
	}{
		{Toggles{}, None},
		{Toggles{Yield: true}, ByYield},
		{Toggles{Diagnosed: true, Yield: true}, ByDiagnosed},
		{Toggles{Screened: true, Diagnosed: true, Yield: true}, ByScreened},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.in))
	}
}

func TestParseModeAndText(t *testing.T) {
	for _, s := range []string{"", "none", "by_screened", "Screened", "by_diagnosed", "yield"} {
		_, err := ParseMode(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseMode("alphabetical")
	assert.Error(t, err)

	b, err := json.Marshal(struct {
		Rank Mode `json:"rank"`
	}{ByYield})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rank":"by_yield"}`, string(b))

	var got struct {
		Rank Mode `json:"rank"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"rank":"by_diagnosed"}`), &got))
	assert.Equal(t, ByDiagnosed, got.Rank)
}
