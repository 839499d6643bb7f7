// 包 router：视图状态机。导航令牌决定处于首页还是某个区域，进入区域时驱动图层生命周期管理器
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"cdi-map/internal/catalog"
	"cdi-map/internal/logger"
	"cdi-map/internal/metrics"
	"cdi-map/internal/overlay"
)

// Kind：视图状态类型
type Kind string

const (
	KindLanding Kind = "landing"
	KindRegion  Kind = "region"
)

// State：Landing 或 Region(slug)
type State struct {
	Kind Kind   `json:"kind"`
	Slug string `json:"slug,omitempty"`
}

func Landing() State           { return State{Kind: KindLanding} }
func Region(slug string) State { return State{Kind: KindRegion, Slug: slug} }
func (s State) IsRegion() bool { return s.Kind == KindRegion }

// Token：状态对应的规范导航令牌
func (s State) Token() string {
	if s.Kind == KindRegion {
		return "#/region/" + url.PathEscape(s.Slug)
	}
	return "#/"
}

// View：两个视图的可见性与标题栏文案
type View struct {
	LandingVisible bool   `json:"landingVisible"`
	RegionVisible  bool   `json:"regionVisible"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Breadcrumb     string `json:"breadcrumb"`
}

// DefaultTitle：首页标题
const DefaultTitle = "Car Dependency Index"

// 区域路径前缀；city 为旧链接
var regionPrefixes = []string{"region/", "city/"}

// 文档注释：解析导航令牌
// 背景：接受 "#/"、"/"、空串（首页）以及 "#/region/<slug>"、"region/<slug>"、"/region/<slug>"、"#/city/<slug>"；
// slug 取前缀后的第一段并做路径反转义，其余无法识别的令牌一律视为首页。
func ParseToken(token string) State {
	t := strings.TrimSpace(token)
	t = strings.TrimPrefix(t, "#")
	t = strings.TrimPrefix(t, "/")
	for _, p := range regionPrefixes {
		if !strings.HasPrefix(t, p) {
			continue
		}
		seg := strings.TrimPrefix(t, p)
		if i := strings.IndexAny(seg, "/?#"); i >= 0 {
			seg = seg[:i]
		}
		if s, err := url.PathUnescape(seg); err == nil {
			seg = s
		}
		if seg == "" {
			return Landing()
		}
		return Region(seg)
	}
	return Landing()
}

// Activator：进入区域时的图层激活入口（overlay.Manager 实现）
// 约束：Begin 同步完成拆除并返回加载函数，加载函数可在后台执行
type Activator interface {
	Begin(ctx context.Context, def catalog.RegionDefinition) func() error
}

// Options：路由器可选项
type Options struct {
	// Title：首页标题，空则为 DefaultTitle
	Title string
	// OnEnter：确认进入区域后回调（统计用），在独立的后台 goroutine 中执行，不阻塞图层加载
	OnEnter func(ctx context.Context, def catalog.RegionDefinition)
	// OnEnterTimeout：单次 OnEnter 的超时，<=0 时为 DefaultOnEnterTimeout
	OnEnterTimeout time.Duration
}

const DefaultOnEnterTimeout = 5 * time.Second

// 文档注释：视图路由器
// 背景：状态只由 Navigate 改变；进入区域时先同步开始激活（保证代数与导航顺序一致），再在后台加载图层；
// 回到首页不清空图层集合，下次进入区域时才拆除。
type Router struct {
	mu      sync.Mutex
	ctx     context.Context
	cat     *catalog.Catalog
	act     Activator
	log     *slog.Logger
	title   string
	onEnter func(context.Context, catalog.RegionDefinition)
	enterTO time.Duration
	state   State
	view    View
	wg      sync.WaitGroup
}

// New：以首页状态创建路由器；ctx 为所有后台激活的父上下文
func New(ctx context.Context, cat *catalog.Catalog, act Activator, l *slog.Logger, opts Options) *Router {
	if cat == nil {
		cat = catalog.Empty()
	}
	if l == nil {
		l = logger.L()
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.OnEnterTimeout <= 0 {
		opts.OnEnterTimeout = DefaultOnEnterTimeout
	}
	r := &Router{ctx: ctx, cat: cat, act: act, log: l, title: opts.Title, onEnter: opts.OnEnter,
		enterTO: opts.OnEnterTimeout, state: Landing()}
	r.view = r.landingView()
	return r
}

func (r *Router) landingView() View {
	return View{LandingVisible: true, Title: r.title}
}

func regionView(def catalog.RegionDefinition) View {
	return View{RegionVisible: true, Title: "Region • " + def.Slug, Subtitle: def.Name, Breadcrumb: def.Name}
}

// 文档注释：处理一次导航
// 背景：目标与当前状态相同时不做任何事；未知区域记录日志后转到首页，不返回错误。
// 返回：处理后的当前状态
func (r *Router) Navigate(token string) State {
	target := ParseToken(token)
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == r.state {
		return r.state
	}
	if target.IsRegion() {
		def, err := r.cat.Resolve(target.Slug)
		if err == nil {
			r.enterRegionLocked(def)
			return r.state
		}
		r.log.Warn("navigate_unknown_region", "slug", target.Slug, "err", err)
		metrics.NavigationsTotal.WithLabelValues("unknown").Inc()
		if r.state.Kind == KindLanding {
			return r.state
		}
	}
	r.state = Landing()
	r.view = r.landingView()
	metrics.NavigationsTotal.WithLabelValues(string(KindLanding)).Inc()
	r.log.Debug("navigate_landing")
	return r.state
}

func (r *Router) enterRegionLocked(def catalog.RegionDefinition) {
	r.state = Region(def.Slug)
	r.view = regionView(def)
	metrics.NavigationsTotal.WithLabelValues(string(KindRegion)).Inc()
	r.log.Info("navigate_region", "slug", def.Slug)
	if r.onEnter != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(r.ctx, r.enterTO)
			defer cancel()
			r.onEnter(ctx, def)
		}()
	}
	if r.act == nil {
		return
	}
	run := r.act.Begin(r.ctx, def)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := run(); err != nil {
			if errors.Is(err, overlay.ErrSuperseded) {
				r.log.Debug("region_activation_superseded", "slug", def.Slug)
				return
			}
			r.log.Error("region_activation_error", "slug", def.Slug, "err", err)
		}
	}()
}

// State：当前状态
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// View：当前视图
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Catalog：路由器使用的区域目录
func (r *Router) Catalog() *catalog.Catalog { return r.cat }

// Wait：等待所有后台激活结束（测试与停机使用）
func (r *Router) Wait() { r.wg.Wait() }
