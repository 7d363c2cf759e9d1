package zones

import "slices"

// DefaultColors：区着色的调色板，循环使用
var DefaultColors = []string{"red", "blue", "green", "purple", "orange", "pink", "teal"}

// 文档注释：区颜色表（构建后不可变）
// 背景：按区编号升序依次分配调色板颜色，同一组区在每次刷新后颜色不变。
// 约束：未登记的区按编号取模得到颜色，结果同样稳定。
type Palette struct {
	colors []string
	byZone map[int64]string
}

func NewPalette(zoneIDs []int64, colors []string) *Palette {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	ids := slices.Clone(zoneIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	p := &Palette{colors: slices.Clone(colors), byZone: make(map[int64]string, len(ids))}
	for i, id := range ids {
		p.byZone[id] = p.colors[i%len(p.colors)]
	}
	return p
}

func (p *Palette) Color(zoneID int64) string {
	if p == nil {
		return DefaultColors[0]
	}
	if c, ok := p.byZone[zoneID]; ok {
		return c
	}
	n := int64(len(p.colors))
	return p.colors[((zoneID%n)+n)%n]
}
