// 包 ranking：可见列表的排序模式与稳定排序
package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"screening-map/internal/site"
)

// Mode：互斥的排序模式，同一时刻只有一个生效
type Mode int

const (
	None Mode = iota
	ByScreened
	ByDiagnosed
	ByYield
)

func (m Mode) String() string {
	switch m {
	case ByScreened:
		return "by_screened"
	case ByDiagnosed:
		return "by_diagnosed"
	case ByYield:
		return "by_yield"
	}
	return "none"
}

// ParseMode：接受 by_screened / screened 等写法，空串为 None
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "by_screened", "screened":
		return ByScreened, nil
	case "by_diagnosed", "diagnosed":
		return ByDiagnosed, nil
	case "by_yield", "yield":
		return ByYield, nil
	}
	return None, fmt.Errorf("ranking: unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Toggles：界面上三个独立开关的原始状态
type Toggles struct {
	Screened  bool
	Diagnosed bool
	Yield     bool
}

// 文档注释：把可同时打开的开关收敛为单一模式
// 约束：优先级固定为 筛查数 > 确诊数 > 检出率；在边界层调用，排序本身只接受单一模式。
func Resolve(t Toggles) Mode {
	switch {
	case t.Screened:
		return ByScreened
	case t.Diagnosed:
		return ByDiagnosed
	case t.Yield:
		return ByYield
	}
	return None
}

// Rank：稳定排序，键相同的条目保持输入相对顺序；返回新切片
func Rank(entries []site.Entry, mode Mode) []site.Entry {
	out := slices.Clone(entries)
	var key func(site.Entry) float64
	switch mode {
	case ByScreened:
		key = func(e site.Entry) float64 { return float64(e.TotalScreened) }
	case ByDiagnosed:
		key = func(e site.Entry) float64 { return float64(e.TotalDiagnosed) }
	case ByYield:
		key = site.YieldRatio
	default:
		return out
	}
	slices.SortStableFunc(out, func(a, b site.Entry) int {
		return cmp.Compare(key(b), key(a))
	})
	return out
}
