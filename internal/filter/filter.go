// 包 filter：规范条目的多维过滤（维度之间为与，维度内部为或）
package filter

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"screening-map/internal/ranking"
	"screening-map/internal/site"
)

var ErrYieldRange = errors.New("filter: yield range must satisfy 0 <= min <= max <= 100")

// Names：区名称查询，*zones.Index 满足该接口
type Names interface {
	Name(zoneID int64) string
}

// 文档注释：过滤条件
// 背景：名称、区编号、点编号三类文本令牌，类型多选，检出率区间，以及单一排序模式。
// 约束：任一令牌集合为空时该维度视为恒真；检出率区间两端闭合，取值 0..100。
type Criteria struct {
	NameTokens       []string     `json:"name_tokens,omitempty" yaml:"name_tokens"`
	ZonaIDTokens     []string     `json:"zona_id_tokens,omitempty" yaml:"zona_id_tokens"`
	LocationIDTokens []string     `json:"location_id_tokens,omitempty" yaml:"location_id_tokens"`
	SelectedTypes    []string     `json:"selected_types,omitempty" yaml:"selected_types"`
	YieldMin         float64      `json:"yield_min" yaml:"yield_min"`
	YieldMax         float64      `json:"yield_max" yaml:"yield_max"`
	Rank             ranking.Mode `json:"rank" yaml:"-"`
}

// Default：不排除任何条目的条件
func Default() Criteria {
	return Criteria{YieldMin: 0, YieldMax: 100}
}

func (c Criteria) Validate() error {
	if c.YieldMin < 0 || c.YieldMax > 100 || c.YieldMin > c.YieldMax {
		return ErrYieldRange
	}
	return nil
}

// Normalize：令牌去空白去重，检出率区间裁剪到 0..100 并保证 min <= max
func (c Criteria) Normalize() Criteria {
	c.NameTokens = Tokens(c.NameTokens...)
	c.ZonaIDTokens = Tokens(c.ZonaIDTokens...)
	c.LocationIDTokens = Tokens(c.LocationIDTokens...)
	c.SelectedTypes = Tokens(c.SelectedTypes...)
	c.YieldMin = clamp(c.YieldMin)
	c.YieldMax = clamp(c.YieldMax)
	if c.YieldMin > c.YieldMax {
		c.YieldMin, c.YieldMax = c.YieldMax, c.YieldMin
	}
	return c
}

// ActiveCount：生效的令牌维度数（名称/区编号/点编号），用于界面徽标
func (c Criteria) ActiveCount() int {
	n := 0
	for _, ts := range [][]string{c.NameTokens, c.ZonaIDTokens, c.LocationIDTokens} {
		if len(ts) > 0 {
			n++
		}
	}
	return n
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Tokens：去除首尾空白、丢弃空串、按首次出现去重
func Tokens(values ...string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Matches：五个维度同时通过才匹配
func Matches(e site.Entry, c Criteria, names Names) bool {
	return MatchName(e, c.NameTokens, names) &&
		MatchZonaID(e, c.ZonaIDTokens) &&
		MatchLocationID(e, c.LocationIDTokens) &&
		MatchType(e, c.SelectedTypes) &&
		MatchYield(e, c.YieldMin, c.YieldMax)
}

// MatchName：任一令牌不区分大小写地包含于区名称
func MatchName(e site.Entry, tokens []string, names Names) bool {
	if len(tokens) == 0 {
		return true
	}
	var name string
	if names != nil {
		name = strings.ToLower(names.Name(e.ZoneID))
	}
	for _, t := range tokens {
		if strings.Contains(name, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// MatchZonaID：任一令牌是区编号十进制文本的前缀
func MatchZonaID(e site.Entry, tokens []string) bool {
	return anyPrefix(strconv.FormatInt(e.ZoneID, 10), tokens)
}

// MatchLocationID：任一令牌是筛查点编号十进制文本的前缀
func MatchLocationID(e site.Entry, tokens []string) bool {
	return anyPrefix(strconv.FormatInt(e.ScreeningID, 10), tokens)
}

func anyPrefix(s string, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	for _, t := range tokens {
		if strings.HasPrefix(s, t) {
			return true
		}
	}
	return false
}

func MatchType(e site.Entry, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if e.SiteType == t {
			return true
		}
	}
	return false
}

// MatchYield：检出率落在闭区间内
func MatchYield(e site.Entry, lo, hi float64) bool {
	y := site.YieldRatio(e)
	return y >= lo && y <= hi
}

// Filter：保留匹配条目，不改变相对顺序
func Filter(entries []site.Entry, c Criteria, names Names) []site.Entry {
	out := make([]site.Entry, 0, len(entries))
	for _, e := range entries {
		if Matches(e, c, names) {
			out = append(out, e)
		}
	}
	return out
}

// Apply：过滤后按条件中的排序模式排序，得到可见列表
func Apply(entries []site.Entry, c Criteria, names Names) []site.Entry {
	return ranking.Rank(Filter(entries, c, names), c.Rank)
}
