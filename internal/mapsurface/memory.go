// 包 mapsurface：进程内地图表面。记录视野、图层、控件与图例，并以 JSON 快照交给浏览器端渲染
package mapsurface

import (
	"errors"
	"math"
	"sync"

	"cdi-map/internal/overlay"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrLayerPresent    = errors.New("mapsurface: layer already on map")
	ErrLayerAbsent     = errors.New("mapsurface: layer not on map")
	ErrControlAttached = errors.New("mapsurface: control already attached")
	ErrControlDetached = errors.New("mapsurface: control not attached")
	ErrInvalidBounds   = errors.New("mapsurface: invalid bounds")
)

// Memory：overlay.Surface 的内存实现，并发安全
type Memory struct {
	Notifier
	mu       sync.RWMutex
	center   orb.Point
	zoom     int
	fit      *orb.Bound
	padding  int
	layers   []*overlay.Overlay
	controls []*overlay.ToggleControl
	legend   overlay.Legend
}

func NewMemory(center orb.Point, zoom int) *Memory {
	return &Memory{center: center, zoom: zoom}
}

// changed：释放写锁并通知订阅者
func (m *Memory) changed() {
	m.mu.Unlock()
	m.Notify()
}

func (m *Memory) SetView(center orb.Point, zoom int) {
	m.mu.Lock()
	defer m.changed()
	m.center, m.zoom = center, zoom
	m.fit = nil
}

// FitBounds：记录适配范围；包含非有限坐标或最小角大于最大角时拒绝并保持原视野
func (m *Memory) FitBounds(b orb.Bound, padding int) error {
	for _, v := range []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidBounds
		}
	}
	if b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() {
		return ErrInvalidBounds
	}
	m.mu.Lock()
	defer m.changed()
	bb := b
	m.fit = &bb
	m.padding = padding
	m.center = b.Center()
	return nil
}

func (m *Memory) AddLayer(o *overlay.Overlay) error {
	m.mu.Lock()
	defer m.changed()
	for _, l := range m.layers {
		if l == o {
			return ErrLayerPresent
		}
	}
	m.layers = append(m.layers, o)
	return nil
}

func (m *Memory) RemoveLayer(o *overlay.Overlay) error {
	m.mu.Lock()
	defer m.changed()
	for i, l := range m.layers {
		if l == o {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return nil
		}
	}
	return ErrLayerAbsent
}

func (m *Memory) AttachControl(c *overlay.ToggleControl) error {
	m.mu.Lock()
	defer m.changed()
	for _, x := range m.controls {
		if x == c {
			return ErrControlAttached
		}
	}
	m.controls = append(m.controls, c)
	return nil
}

func (m *Memory) DetachControl(c *overlay.ToggleControl) error {
	m.mu.Lock()
	defer m.changed()
	for i, x := range m.controls {
		if x == c {
			m.controls = append(m.controls[:i], m.controls[i+1:]...)
			return nil
		}
	}
	return ErrControlDetached
}

func (m *Memory) SetLegend(l overlay.Legend) {
	m.mu.Lock()
	defer m.changed()
	m.legend = l
}

// Layers：地图上的图层（按加入顺序）
func (m *Memory) Layers() []*overlay.Overlay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*overlay.Overlay(nil), m.layers...)
}

// Controls：已挂载的控件
func (m *Memory) Controls() []*overlay.ToggleControl {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*overlay.ToggleControl(nil), m.controls...)
}

// View：视野快照；中心点按 [纬度, 经度] 输出
type View struct {
	Center  [2]float64     `json:"center"`
	Zoom    int            `json:"zoom"`
	Bounds  *[2][2]float64 `json:"bounds,omitempty"`
	Padding int            `json:"padding,omitempty"`
}

// LayerView：单个图层快照
type LayerView struct {
	ID     uint64                     `json:"id"`
	Name   string                     `json:"name"`
	Region string                     `json:"region"`
	Scale  overlay.Scale              `json:"scale"`
	Column string                     `json:"column"`
	Styles []overlay.Style            `json:"styles,omitempty"`
	Data   *geojson.FeatureCollection `json:"data,omitempty"`
}

// ControlView：开关控件快照
type ControlView struct {
	ID       uint64            `json:"id"`
	Base     overlay.BaseLayer `json:"base"`
	Overlays []string          `json:"overlays"`
}

// Snapshot：整张地图的快照
type Snapshot struct {
	View     View           `json:"view"`
	Layers   []LayerView    `json:"layers"`
	Controls []ControlView  `json:"controls"`
	Legend   overlay.Legend `json:"legend"`
}

// 文档注释：生成快照
// 约束：withData=false 时省略几何与样式，仅用于列表与状态展示
func (m *Memory) Snapshot(withData bool) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		View:   View{Center: [2]float64{m.center.Lat(), m.center.Lon()}, Zoom: m.zoom},
		Layers: make([]LayerView, 0, len(m.layers)),
		Legend: m.legend,
	}
	if m.fit != nil {
		s.View.Bounds = &[2][2]float64{
			{m.fit.Min.Lat(), m.fit.Min.Lon()},
			{m.fit.Max.Lat(), m.fit.Max.Lon()},
		}
		s.View.Padding = m.padding
	}
	for _, o := range m.layers {
		lv := LayerView{ID: o.ID, Name: o.Name, Region: o.Region, Scale: o.Scale, Column: o.Column}
		if withData {
			lv.Styles = o.Styles
			lv.Data = o.Data
		}
		s.Layers = append(s.Layers, lv)
	}
	for _, c := range m.controls {
		s.Controls = append(s.Controls, ControlView{ID: c.ID(), Base: c.Base(), Overlays: c.Names()})
	}
	return s
}
