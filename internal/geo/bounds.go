package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：计算要素集合的外包围盒
// 约束：跳过空几何；全部为空时返回 ErrEmptyBounds
func Bounds(fc *geojson.FeatureCollection) (orb.Bound, error) {
	var b orb.Bound
	found := false
	if fc == nil {
		return b, ErrEmptyBounds
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		gb := f.Geometry.Bound()
		if !found {
			b = gb
			found = true
			continue
		}
		b = b.Union(gb)
	}
	if !found {
		return orb.Bound{}, ErrEmptyBounds
	}
	return b, nil
}

// BoundOfPoints：点集外包围盒（地标视野用），空集返回 ErrEmptyBounds
func BoundOfPoints(pts []orb.Point) (orb.Bound, error) {
	if len(pts) == 0 {
		return orb.Bound{}, ErrEmptyBounds
	}
	b := orb.Bound{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b = b.Extend(p)
	}
	return b, nil
}

// PadRatio：按边长比例向四周扩展包围盒（ratio=0.2 即每侧扩 20%）
func PadRatio(b orb.Bound, ratio float64) orb.Bound {
	dx := (b.Max.X() - b.Min.X()) * ratio
	dy := (b.Max.Y() - b.Min.Y()) * ratio
	return orb.Bound{
		Min: orb.Point{b.Min.X() - dx, b.Min.Y() - dy},
		Max: orb.Point{b.Max.X() + dx, b.Max.Y() + dy},
	}
}
