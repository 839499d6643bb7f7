// 包 overlay：区域图层生命周期。独占地图表面、图层开关控件与图例的增删，保证任意时刻只呈现当前区域的图层
package overlay

import (
	"errors"
	"sync"

	"cdi-map/internal/colorscale"

	"github.com/paulmach/orb"
)

var (
	ErrDuplicateRegistration = errors.New("overlay: layer already registered")
	ErrNotRegistered         = errors.New("overlay: layer not registered")
)

// 文档注释：地图表面（外部渲染组件的最小契约）
// 约束：仅由 Manager 在持有自身互斥锁时调用；实现方需自行保证与快照读取之间的并发安全。
type Surface interface {
	SetView(center orb.Point, zoom int)
	FitBounds(b orb.Bound, padding int) error
	AddLayer(o *Overlay) error
	RemoveLayer(o *Overlay) error
	AttachControl(c *ToggleControl) error
	DetachControl(c *ToggleControl) error
	SetLegend(l Legend)
}

// BaseLayer：底图瓦片
type BaseLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

// DefaultBaseLayer：浅色底图
var DefaultBaseLayer = BaseLayer{
	Name:        "Light",
	URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
	Attribution: "&copy; OpenStreetMap & CARTO",
	MaxZoom:     19,
}

// ControlEntry：开关控件中的一项注册
type ControlEntry struct {
	Name    string
	Overlay *Overlay
}

// 文档注释：图层开关控件
// 背景：底图固定，叠加图层按注册顺序排列；同一图层对象只能注册一次。
type ToggleControl struct {
	mu      sync.RWMutex
	id      uint64
	base    BaseLayer
	entries []ControlEntry
}

func NewToggleControl(id uint64, base BaseLayer) *ToggleControl {
	return &ToggleControl{id: id, base: base}
}

func (c *ToggleControl) ID() uint64      { return c.id }
func (c *ToggleControl) Base() BaseLayer { return c.base }

// AddOverlay：注册叠加图层，重复注册返回 ErrDuplicateRegistration
func (c *ToggleControl) AddOverlay(o *Overlay, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Overlay == o {
			return ErrDuplicateRegistration
		}
	}
	c.entries = append(c.entries, ControlEntry{Name: name, Overlay: o})
	return nil
}

// RemoveOverlay：注销叠加图层，未注册返回 ErrNotRegistered
func (c *ToggleControl) RemoveOverlay(o *Overlay) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.Overlay == o {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotRegistered
}

// Entries：注册项副本
func (c *ToggleControl) Entries() []ControlEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ControlEntry(nil), c.entries...)
}

// Names：注册名称（按顺序）
func (c *ToggleControl) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Name)
	}
	return out
}

// Legend：图例
type Legend struct {
	Title    string    `json:"title"`
	Scale    Scale     `json:"scale"`
	Swatches []string  `json:"swatches"`
	Ticks    []float64 `json:"ticks,omitempty"`
}

// DefaultLegendTitle：没有活动图层时图例的标题
const DefaultLegendTitle = "CDI"

// legendSwatchSteps：发散色带图例的色块数
const legendSwatchSteps = 9

// LegendFor：按图层色阶生成图例
func LegendFor(scale Scale, column string) Legend {
	if column == "" {
		column = DefaultLegendTitle
	}
	if scale == ScaleQuantile {
		return Legend{Title: column, Scale: scale, Swatches: append([]string(nil), colorscale.Palette...)}
	}
	return Legend{
		Title:    column,
		Scale:    ScaleDiverging,
		Swatches: colorscale.DivergingSwatches(legendSwatchSteps),
		Ticks:    append([]float64(nil), colorscale.DivergingTicks...),
	}
}

// 文档注释：地图会话（进程内唯一）
// 背景：承载地图表面、当前开关控件与图例；启动时创建一次，此后只经 Manager 修改。
// 约束：自身不加锁，调用方（Manager）负责串行化。
type Session struct {
	surface     Surface
	base        BaseLayer
	control     *ToggleControl
	legend      Legend
	nextControl uint64
}

// NewSession：创建会话并挂载仅含底图的开关控件与默认图例
func NewSession(s Surface, base BaseLayer) (*Session, error) {
	if base.Name == "" {
		base = DefaultBaseLayer
	}
	ss := &Session{surface: s, base: base}
	ss.control = ss.newControl()
	if err := s.AttachControl(ss.control); err != nil {
		return nil, err
	}
	ss.legend = LegendFor(ScaleDiverging, "")
	s.SetLegend(ss.legend)
	return ss, nil
}

func (s *Session) newControl() *ToggleControl {
	s.nextControl++
	return NewToggleControl(s.nextControl, s.base)
}

func (s *Session) Surface() Surface        { return s.surface }
func (s *Session) Base() BaseLayer         { return s.base }
func (s *Session) Control() *ToggleControl { return s.control }
func (s *Session) Legend() Legend          { return s.legend }

func (s *Session) setLegend(l Legend) {
	s.legend = l
	s.surface.SetLegend(l)
}
