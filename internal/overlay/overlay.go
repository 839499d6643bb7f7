package overlay

import (
	"context"
	"math"
	"sync/atomic"

	"cdi-map/internal/catalog"
	"cdi-map/internal/colorscale"
	"cdi-map/internal/geo"
	"cdi-map/internal/source"
	"cdi-map/internal/tabular"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Scale：图层色阶类型
type Scale string

const (
	ScaleDiverging Scale = "diverging"
	ScaleQuantile  Scale = "quantile"
)

// 要素样式常量：无描边、固定填充透明度
const (
	strokeColor = "transparent"
	strokeWidth = 0
	fillOpacity = 0.65
)

// Style：单个要素的渲染样式
type Style struct {
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
	FillColor   string  `json:"fillColor"`
}

func styleFor(fill string) Style {
	return Style{Color: strokeColor, Weight: strokeWidth, FillOpacity: fillOpacity, FillColor: fill}
}

// 文档注释：已构建的叠加图层
// 约束：构建完成后只读；Styles 与 Data.Features 一一对应。
type Overlay struct {
	ID         uint64
	Name       string
	Region     string
	Generation uint64
	Scale      Scale
	Column     string
	Data       *geojson.FeatureCollection
	Styles     []Style
	Bounds     orb.Bound
	HasBounds  bool
	Join       *tabular.JoinStats
}

var overlaySeq atomic.Uint64

// BuildLayer：脱离地图会话单独构建图层（离线校验使用），代数为 0
func BuildLayer(ctx context.Context, f source.Fetcher, region string, ld catalog.LayerDefinition) (*Overlay, error) {
	return buildOverlay(ctx, f, region, 0, ld)
}

// 文档注释：加载并构建单个图层（拉取几何 → 连接或统计 → 逐要素设色）
// 异常：几何失败返回 KindGeometry 的 LoadError，表格失败返回 KindTable 的 LoadError。
func buildOverlay(ctx context.Context, f source.Fetcher, region string, gen uint64, ld catalog.LayerDefinition) (*Overlay, error) {
	b, err := source.Load(ctx, f, source.KindGeometry, ld.GeometryURL)
	if err != nil {
		return nil, err
	}
	fc, err := geo.ParseFeatureCollection(b)
	if err != nil {
		return nil, source.Wrap(source.KindGeometry, ld.GeometryURL, err)
	}
	o := &Overlay{
		ID:         overlaySeq.Add(1),
		Name:       ld.Name,
		Region:     region,
		Generation: gen,
		Column:     ld.ColorColumn(),
		Data:       fc,
	}
	var color func(float64) string
	if ld.Join != nil {
		recs, err := tabular.Load(ctx, f, ld.Join.TableURL, ld.Join.TableKeyColumn, ld.Join.ValueColumn)
		if err != nil {
			return nil, err
		}
		st := tabular.Join(fc, recs, ld.Join.GeometryKeyColumn, ld.Join.ValueColumn)
		o.Join = &st
		o.Scale = ScaleDiverging
		color = colorscale.Seismic
	} else {
		vals := make([]float64, 0, len(fc.Features))
		for _, ft := range fc.Features {
			if v := geo.Number(ft.Properties, ld.ValueProperty); !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
		o.Scale = ScaleQuantile
		color = colorscale.NewQuantile(vals, colorscale.DefaultBuckets).Color
	}
	o.Styles = make([]Style, len(fc.Features))
	for i, ft := range fc.Features {
		o.Styles[i] = styleFor(color(geo.Number(ft.Properties, o.Column)))
	}
	if bd, err := geo.Bounds(fc); err == nil {
		o.Bounds, o.HasBounds = bd, true
	}
	return o, nil
}
