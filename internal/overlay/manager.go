package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cdi-map/internal/catalog"
	"cdi-map/internal/geo"
	"cdi-map/internal/logger"
	"cdi-map/internal/metrics"
	"cdi-map/internal/source"
)

// ErrSuperseded：激活已被更新的一次激活（或重置）取代，其结果被丢弃
var ErrSuperseded = errors.New("overlay: activation superseded")

// fitPadding：首个图层加载后适配视野的像素留白
const fitPadding = 20

// 文档注释：图层生命周期管理器
// 背景：每次激活递增代数并取消上一次激活的上下文；异步拉取返回后先比对代数，过期结果直接丢弃，
// 因此快速切换区域时只有最后一次激活能修改地图表面与开关控件。
// 约束：地图表面、开关控件、图例只允许经由本类型修改；所有修改在 mu 内完成。
type Manager struct {
	mu       sync.Mutex
	session  *Session
	fetcher  source.Fetcher
	log      *slog.Logger
	gen      uint64
	cancel   context.CancelFunc
	active   string
	overlays []*Overlay
}

func NewManager(session *Session, f source.Fetcher, l *slog.Logger) *Manager {
	if l == nil {
		l = logger.L()
	}
	return &Manager{session: session, fetcher: f, log: l}
}

// 文档注释：激活区域
// 背景：先完整拆除当前图层集合（地图表面、开关控件注册、重建仅含底图的控件、图例复位），再按声明顺序逐个加载图层；
// 单个图层失败只记录日志并跳过；首个成功加入的图层用于适配视野，适配失败忽略。
// 返回：被更新的激活取代时返回 ErrSuperseded；其余情况返回 nil（图层失败不向上传播）。
func (m *Manager) ActivateRegion(ctx context.Context, def catalog.RegionDefinition) error {
	return m.Begin(ctx, def)()
}

// 文档注释：激活的同步阶段
// 背景：递增代数、取消上一次激活、拆除并定位视野后立即返回，图层加载由返回的函数执行。
// 约束：调用方按导航顺序调用 Begin，代数顺序即导航顺序；返回的函数可放到后台执行，且只能调用一次。
func (m *Manager) Begin(ctx context.Context, def catalog.RegionDefinition) func() error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	if m.cancel != nil {
		m.cancel()
	}
	actx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.teardownLocked()
	m.active = def.Slug
	m.session.surface.SetView(def.Center.Point(), def.Zoom)
	m.mu.Unlock()

	metrics.ActivationsTotal.Inc()
	m.log.Info("region_activate_begin", "slug", def.Slug, "gen", gen, "layers", len(def.Layers))
	return func() error {
		defer cancel()
		return m.load(actx, gen, def)
	}
}

// load：按顺序加载区域的全部图层
func (m *Manager) load(ctx context.Context, gen uint64, def catalog.RegionDefinition) error {
	added := 0
	for i, ld := range def.Layers {
		t0 := time.Now()
		o, err := buildOverlay(ctx, m.fetcher, def.Slug, gen, ld)
		metrics.LayerLoadDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
		if !m.isCurrent(gen) {
			metrics.StaleResultsTotal.Inc()
			m.log.Debug("activation_stale_drop", "slug", def.Slug, "gen", gen, "layer", ld.Name)
			return ErrSuperseded
		}
		if err != nil {
			metrics.LayerLoadsTotal.WithLabelValues(failureLabel(err)).Inc()
			m.log.Error("layer_load_error", "slug", def.Slug, "layer", ld.Name, "index", i, "err", err)
			continue
		}
		if err := m.install(gen, o, added == 0); err != nil {
			if errors.Is(err, ErrSuperseded) {
				metrics.StaleResultsTotal.Inc()
				return err
			}
			metrics.LayerLoadsTotal.WithLabelValues("add_error").Inc()
			m.log.Error("layer_add_error", "slug", def.Slug, "layer", ld.Name, "err", err)
			continue
		}
		added++
		metrics.LayerLoadsTotal.WithLabelValues("ok").Inc()
		if o.Join != nil {
			m.log.Info("layer_load_ok", "slug", def.Slug, "layer", ld.Name, "features", len(o.Data.Features),
				"matched", o.Join.Matched, "unmatched", o.Join.Unmatched)
		} else {
			m.log.Info("layer_load_ok", "slug", def.Slug, "layer", ld.Name, "features", len(o.Data.Features))
		}
	}
	m.log.Info("region_activate_done", "slug", def.Slug, "gen", gen, "added", added)
	return nil
}

func failureLabel(err error) string {
	switch {
	case source.IsKind(err, source.KindGeometry):
		return "geometry_error"
	case source.IsKind(err, source.KindTable):
		return "table_error"
	}
	return "error"
}

// install：代数仍为当前时把图层加入地图表面、注册到控件并追加到集合
func (m *Manager) install(gen uint64, o *Overlay, first bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return ErrSuperseded
	}
	s := m.session
	if err := s.surface.AddLayer(o); err != nil {
		return err
	}
	if err := s.control.AddOverlay(o, o.Name); err != nil {
		m.log.Error("layer_register_error", "layer", o.Name, "err", err)
	}
	m.overlays = append(m.overlays, o)
	s.setLegend(LegendFor(o.Scale, o.Column))
	if first {
		m.fitLocked(o)
	}
	return nil
}

// fitLocked：视野适配到图层范围；空几何或表面拒绝时保持原视野
func (m *Manager) fitLocked(o *Overlay) {
	if !o.HasBounds {
		m.log.Debug("fit_bounds_skip", "layer", o.Name, "err", geo.ErrEmptyBounds)
		return
	}
	if err := m.session.surface.FitBounds(o.Bounds, fitPadding); err != nil {
		m.log.Debug("fit_bounds_skip", "layer", o.Name, "err", err)
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// Reset：拆除到空集合并使所有进行中的激活失效（返回首页时使用）
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.teardownLocked()
	m.active = ""
	m.log.Debug("overlay_reset", "gen", m.gen)
}

// 文档注释：拆除当前图层集合
// 约束：每一步独立容错，单步失败只记录并计数，后续步骤照常执行；结束时集合必为空。
func (m *Manager) teardownLocked() {
	s := m.session
	for _, o := range m.overlays {
		if err := s.surface.RemoveLayer(o); err != nil {
			metrics.TeardownErrorsTotal.WithLabelValues("remove_layer").Inc()
			m.log.Warn("teardown_remove_layer_error", "layer", o.Name, "err", err)
		}
		if err := s.control.RemoveOverlay(o); err != nil {
			metrics.TeardownErrorsTotal.WithLabelValues("unregister").Inc()
			m.log.Warn("teardown_unregister_error", "layer", o.Name, "err", err)
		}
	}
	m.overlays = nil
	if err := s.surface.DetachControl(s.control); err != nil {
		metrics.TeardownErrorsTotal.WithLabelValues("detach_control").Inc()
		m.log.Warn("teardown_detach_control_error", "control", s.control.ID(), "err", err)
	}
	s.control = s.newControl()
	if err := s.surface.AttachControl(s.control); err != nil {
		metrics.TeardownErrorsTotal.WithLabelValues("attach_control").Inc()
		m.log.Warn("teardown_attach_control_error", "control", s.control.ID(), "err", err)
	}
	s.setLegend(LegendFor(ScaleDiverging, ""))
}

// Overlays：当前图层集合快照（按加入顺序）
func (m *Manager) Overlays() []*Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Overlay(nil), m.overlays...)
}

// ActiveRegion：最近一次激活的区域 slug，重置后为空
func (m *Manager) ActiveRegion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Control：当前开关控件
func (m *Manager) Control() *ToggleControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.control
}

// Legend：当前图例
func (m *Manager) Legend() Legend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.legend
}
