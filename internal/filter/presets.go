package filter

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"screening-map/internal/ranking"

	"gopkg.in/yaml.v3"
)

// 文档注释：命名过滤预设（YAML）
// 背景：外勤团队常用的固定筛选组合，供 CLI 与接口按名称引用。
// 约束：文件格式为 presets 列表；名称唯一且不区分大小写；未写检出率区间时默认 0..100，区间非法时报错。
//
//	presets:
//	  - name: high-yield-markets
//	    selected_types: [Large Market]
//	    yield_min: 10
//	    rank: by_yield
type Preset struct {
	Name             string   `yaml:"name"`
	NameTokens       []string `yaml:"name_tokens"`
	ZonaIDTokens     []string `yaml:"zona_id_tokens"`
	LocationIDTokens []string `yaml:"location_id_tokens"`
	SelectedTypes    []string `yaml:"selected_types"`
	YieldMin         *float64 `yaml:"yield_min"`
	YieldMax         *float64 `yaml:"yield_max"`
	Rank             string   `yaml:"rank"`
}

func (p Preset) criteria() (Criteria, error) {
	mode, err := ranking.ParseMode(p.Rank)
	if err != nil {
		return Criteria{}, err
	}
	c := Default()
	c.NameTokens = p.NameTokens
	c.ZonaIDTokens = p.ZonaIDTokens
	c.LocationIDTokens = p.LocationIDTokens
	c.SelectedTypes = p.SelectedTypes
	if p.YieldMin != nil {
		c.YieldMin = *p.YieldMin
	}
	if p.YieldMax != nil {
		c.YieldMax = *p.YieldMax
	}
	c.Rank = mode
	c.NameTokens = Tokens(c.NameTokens...)
	c.ZonaIDTokens = Tokens(c.ZonaIDTokens...)
	c.LocationIDTokens = Tokens(c.LocationIDTokens...)
	c.SelectedTypes = Tokens(c.SelectedTypes...)
	return c, c.Validate()
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Presets：按名称索引的预设集合
type Presets map[string]Criteria

func ParsePresets(data []byte) (Presets, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("filter: decode presets: %w", err)
	}
	out := make(Presets, len(f.Presets))
	for i, p := range f.Presets {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("filter: preset #%d has no name", i+1)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("filter: duplicate preset %q", p.Name)
		}
		c, err := p.criteria()
		if err != nil {
			return nil, fmt.Errorf("filter: preset %q: %w", p.Name, err)
		}
		out[name] = c
	}
	return out, nil
}

// LoadPresets：读取预设文件；路径为空时返回空集合
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return Presets{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePresets(b)
}

func (p Presets) Get(name string) (Criteria, bool) {
	c, ok := p[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names：预设名称，升序
func (p Presets) Names() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
