// 包 catalog：区域目录。启动时由清单构建一次，此后只读
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"cdi-map/internal/geo"
	"cdi-map/internal/logger"
	"cdi-map/internal/source"

	"github.com/paulmach/orb"
)

// ErrUnknownRegion：目录中不存在该 slug
var ErrUnknownRegion = errors.New("catalog: unknown region")

var (
	// DefaultCenter：清单未给出中心点时的大陆级视野（纬度, 经度）
	DefaultCenter = LatLon{42.5, 12.5}
	DefaultZoom   = 9
)

// 默认图层：六边形网格 + CDI 指标表
const (
	DefaultLayerName    = "CDI (hex grid)"
	DefaultTableKey     = "hexagon_id"
	DefaultGeometryKey  = "id"
	DefaultValueColumn  = "CDI"
	defaultGeometryPath = "data/%s/hexes.geojson"
	defaultTablePath    = "data/%s/cdi.csv"
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// LatLon：清单坐标顺序为 [纬度, 经度]
type LatLon [2]float64

func (c LatLon) Lat() float64 { return c[0] }
func (c LatLon) Lon() float64 { return c[1] }

// Point：转为 orb 点（经度在前）
func (c LatLon) Point() orb.Point { return orb.Point{c[1], c[0]} }

// JoinSpec：表格连接配置
type JoinSpec struct {
	TableURL          string `json:"tableUrl"`
	TableKeyColumn    string `json:"tableKeyColumn"`
	GeometryKeyColumn string `json:"geometryKeyColumn"`
	ValueColumn       string `json:"valueColumn"`
}

// 文档注释：图层定义
// 约束：Join 非空时使用发散色带；否则按 ValueProperty 计算分位数色阶。
type LayerDefinition struct {
	Name          string    `json:"name"`
	GeometryURL   string    `json:"geometryUrl"`
	Join          *JoinSpec `json:"join,omitempty"`
	ValueProperty string    `json:"valueProperty,omitempty"`
}

// ColorColumn：图层着色所用的属性名
func (l LayerDefinition) ColorColumn() string {
	if l.Join != nil {
		return l.Join.ValueColumn
	}
	return l.ValueProperty
}

// RegionDefinition：一个可独立寻址的地图上下文
type RegionDefinition struct {
	Slug   string            `json:"slug"`
	Name   string            `json:"name"`
	Center LatLon            `json:"center"`
	Zoom   int               `json:"zoom"`
	Layers []LayerDefinition `json:"layers"`
}

// Catalog：区域目录（只读）
type Catalog struct {
	regions []RegionDefinition
	bySlug  map[string]int
	centers *kdNode
}

// manifestEntry：清单条目，除 slug 外均可缺省
type manifestEntry struct {
	Slug   string          `json:"slug"`
	Name   string          `json:"name"`
	Center *LatLon         `json:"center"`
	Zoom   int             `json:"zoom"`
	Layers []manifestLayer `json:"layers"`
}

type manifestLayer struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Join      *manifestJoin `json:"join"`
	ValueProp string        `json:"valueProp"`
}

type manifestJoin struct {
	CSV         string `json:"csv"`
	CSVID       string `json:"csvId"`
	GeoID       string `json:"geoId"`
	ValueColumn string `json:"valueColumn"`
}

// 文档注释：拉取并解析区域清单
// 异常：拉取或 JSON 解析失败返回 KindManifest 的 LoadError，调用方应保留空目录继续运行。
func Load(ctx context.Context, f source.Fetcher, manifestURL string) (*Catalog, error) {
	b, err := source.Load(ctx, f, source.KindManifest, manifestURL)
	if err != nil {
		return Empty(), err
	}
	c, err := Parse(b)
	if err != nil {
		return Empty(), source.Wrap(source.KindManifest, manifestURL, err)
	}
	logger.L().Info("manifest_load_ok", "url", manifestURL, "regions", len(c.regions))
	return c, nil
}

// Empty：空目录
func Empty() *Catalog { return &Catalog{bySlug: map[string]int{}} }

// 文档注释：由清单 JSON 构建目录
// 约束：slug 非法或重复的条目跳过并记录日志；名称缺省为首字母大写的 slug；中心/缩放缺省为大陆视野。
func Parse(b []byte) (*Catalog, error) {
	var entries []manifestEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("catalog: bad manifest: %w", err)
	}
	c := Empty()
	for i, e := range entries {
		slug := strings.TrimSpace(e.Slug)
		if !slugPattern.MatchString(slug) {
			logger.L().Warn("manifest_entry_skipped", "index", i, "slug", e.Slug, "reason", "invalid_slug")
			continue
		}
		if _, dup := c.bySlug[slug]; dup {
			logger.L().Warn("manifest_entry_skipped", "index", i, "slug", slug, "reason", "duplicate_slug")
			continue
		}
		c.bySlug[slug] = len(c.regions)
		c.regions = append(c.regions, buildRegion(slug, e))
	}
	c.centers = buildCenterIndex(c.regions)
	return c, nil
}

func buildRegion(slug string, e manifestEntry) RegionDefinition {
	r := RegionDefinition{Slug: slug, Name: strings.TrimSpace(e.Name), Center: DefaultCenter, Zoom: e.Zoom}
	if r.Name == "" {
		r.Name = capitalize(slug)
	}
	if e.Center != nil {
		r.Center = *e.Center
	}
	if r.Zoom == 0 {
		r.Zoom = DefaultZoom
	}
	if len(e.Layers) == 0 {
		r.Layers = []LayerDefinition{DefaultLayer(slug)}
		return r
	}
	for _, ml := range e.Layers {
		ld := LayerDefinition{Name: ml.Name, GeometryURL: ml.URL, ValueProperty: ml.ValueProp}
		if ld.GeometryURL == "" {
			ld.GeometryURL = fmt.Sprintf(defaultGeometryPath, slug)
		}
		if ld.Name == "" {
			ld.Name = DefaultLayerName
		}
		if ml.Join != nil {
			ld.Join = &JoinSpec{
				TableURL:          orDefault(ml.Join.CSV, fmt.Sprintf(defaultTablePath, slug)),
				TableKeyColumn:    orDefault(ml.Join.CSVID, DefaultTableKey),
				GeometryKeyColumn: orDefault(ml.Join.GeoID, DefaultGeometryKey),
				ValueColumn:       orDefault(ml.Join.ValueColumn, DefaultValueColumn),
			}
			ld.ValueProperty = ""
		}
		r.Layers = append(r.Layers, ld)
	}
	return r
}

// DefaultLayer：按约定路径为 slug 生成的默认连接图层
func DefaultLayer(slug string) LayerDefinition {
	return LayerDefinition{
		Name:        DefaultLayerName,
		GeometryURL: fmt.Sprintf(defaultGeometryPath, slug),
		Join: &JoinSpec{
			TableURL:          fmt.Sprintf(defaultTablePath, slug),
			TableKeyColumn:    DefaultTableKey,
			GeometryKeyColumn: DefaultGeometryKey,
			ValueColumn:       DefaultValueColumn,
		},
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// clone：深拷贝 Layers 与 Join，目录内的定义不随调用方修改而改变
func (r RegionDefinition) clone() RegionDefinition {
	if r.Layers == nil {
		return r
	}
	ls := make([]LayerDefinition, len(r.Layers))
	for i, l := range r.Layers {
		if l.Join != nil {
			j := *l.Join
			l.Join = &j
		}
		ls[i] = l
	}
	r.Layers = ls
	return r
}

// Len：区域数量
func (c *Catalog) Len() int { return len(c.regions) }

// Regions：按清单顺序返回全部区域（深拷贝）
func (c *Catalog) Regions() []RegionDefinition {
	out := make([]RegionDefinition, len(c.regions))
	for i, r := range c.regions {
		out[i] = r.clone()
	}
	return out
}

// Lookup：按 slug 查找
func (c *Catalog) Lookup(slug string) (RegionDefinition, bool) {
	i, ok := c.bySlug[slug]
	if !ok {
		return RegionDefinition{}, false
	}
	return c.regions[i].clone(), true
}

// Resolve：按 slug 查找，不存在时返回 ErrUnknownRegion
func (c *Catalog) Resolve(slug string) (RegionDefinition, error) {
	r, ok := c.Lookup(slug)
	if !ok {
		return r, fmt.Errorf("%w: %q", ErrUnknownRegion, slug)
	}
	return r, nil
}

// Search：名称包含过滤词（忽略大小写与首尾空白）的区域，空过滤词返回全部
func (c *Catalog) Search(filter string) []RegionDefinition {
	q := strings.ToLower(strings.TrimSpace(filter))
	var out []RegionDefinition
	for _, r := range c.regions {
		if q == "" || strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, r.clone())
		}
	}
	return out
}

// Bounds：全部区域中心点的外包围盒，四周各扩 20%，供首页地图定位
func (c *Catalog) Bounds() (orb.Bound, error) {
	pts := make([]orb.Point, 0, len(c.regions))
	for _, r := range c.regions {
		pts = append(pts, r.Center.Point())
	}
	b, err := geo.BoundOfPoints(pts)
	if err != nil {
		return b, err
	}
	return geo.PadRatio(b, 0.2), nil
}

// LayerLabel：首页列表中的图层数量文案
func LayerLabel(n int) string {
	if n == 1 {
		return "1 layer"
	}
	return fmt.Sprintf("%d layers", n)
}
