package tabular

import (
	"cdi-map/internal/geo"
	"cdi-map/internal/metrics"

	"github.com/paulmach/orb/geojson"
)

// JoinStats：一次连接的计数
type JoinStats struct {
	Matched   int
	Unmatched int
	NoKey     int
}

// Coverage：命中率（无要素时为 0）
func (s JoinStats) Coverage() float64 {
	total := s.Matched + s.Unmatched + s.NoKey
	if total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(total)
}

// 文档注释：把键值表并入要素属性（原地修改）
// 背景：要素的 geometryKeyColumn 属性转为文本后查表，命中且指标非缺失时写入 properties[valueColumn]。
// 约束：未命中的要素不写入该属性（不是写 0）；调用方若在别处持有同一集合，需自行保证无并发读写。
func Join(fc *geojson.FeatureCollection, recs Records, geometryKeyColumn, valueColumn string) JoinStats {
	var st JoinStats
	if fc == nil {
		return st
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		k, ok := geo.Value(f.Properties, geometryKeyColumn)
		if !ok {
			st.NoKey++
			continue
		}
		v, hit := recs[geo.KeyString(k)]
		if !hit || v == nil {
			st.Unmatched++
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties[valueColumn] = v
		st.Matched++
	}
	metrics.JoinFeaturesTotal.WithLabelValues("matched").Add(float64(st.Matched))
	metrics.JoinFeaturesTotal.WithLabelValues("unmatched").Add(float64(st.Unmatched))
	metrics.JoinFeaturesTotal.WithLabelValues("no_key").Add(float64(st.NoKey))
	return st
}
