package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：点入面判定（Even-Odd）
// 背景：面几何第一环为外环，其余为洞；命中外环且不在任何洞内视为命中。
// 约束：坐标为 WGS84 经纬度；仅 Polygon/MultiPolygon 参与判定，其余几何类型不命中。
func Contains(g orb.Geometry, pt orb.Point) bool {
	switch x := g.(type) {
	case orb.Polygon:
		return polygonContains(x, pt)
	case orb.MultiPolygon:
		for _, p := range x {
			if polygonContains(p, pt) {
				return true
			}
		}
	case orb.Collection:
		for _, c := range x {
			if Contains(c, pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p orb.Polygon, pt orb.Point) bool {
	if len(p) == 0 || !p[0].Bound().Contains(pt) {
		return false
	}
	if !ringContains(p[0], pt) {
		return false
	}
	for _, hole := range p[1:] {
		if ringContains(hole, pt) {
			return false
		}
	}
	return true
}

// 射线法判定点是否在环内
func ringContains(ring orb.Ring, pt orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.X(), pt.Y()
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X(), ring[i].Y()
		xj, yj := ring[j].X(), ring[j].Y()
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi {
			inside = !inside
		}
	}
	return inside
}

// FeaturesAt：返回集合中包含该点的要素（保持原顺序）
func FeaturesAt(fc *geojson.FeatureCollection, pt orb.Point) []*geojson.Feature {
	if fc == nil {
		return nil
	}
	var out []*geojson.Feature
	for _, f := range fc.Features {
		if f != nil && f.Geometry != nil && Contains(f.Geometry, pt) {
			out = append(out, f)
		}
	}
	return out
}
