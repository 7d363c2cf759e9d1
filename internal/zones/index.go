// 包 zones：区编号到显示名称的只读索引，由几何数据源一次性构建
package zones

import (
	"maps"
	"slices"
)

// Unknown：索引中缺失名称时的占位文本
const Unknown = "Unknown"

// 文档注释：区名称索引（构建后不可变）
// 背景：替代前端模块级缓存；显式构建后注入到过滤与展示环节。
// 约束：键为向下取整后的区编号；nil 索引等价于空索引。
type Index struct {
	names map[int64]string
}

// NewIndex：复制输入映射构建索引
func NewIndex(names map[int64]string) *Index {
	return &Index{names: maps.Clone(names)}
}

// Empty：空索引，所有查询返回 Unknown
func Empty() *Index { return &Index{} }

// Name：查询显示名称，缺失时回退到 Unknown
func (ix *Index) Name(zoneID int64) string {
	if ix == nil {
		return Unknown
	}
	if n, ok := ix.names[zoneID]; ok && n != "" {
		return n
	}
	return Unknown
}

// Lookup：与 Name 相同，但区分是否命中
func (ix *Index) Lookup(zoneID int64) (string, bool) {
	if ix == nil {
		return "", false
	}
	n, ok := ix.names[zoneID]
	return n, ok
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.names)
}

// IDs：全部区编号，升序
func (ix *Index) IDs() []int64 {
	if ix == nil {
		return nil
	}
	out := slices.Collect(maps.Keys(ix.names))
	slices.Sort(out)
	return out
}
