package overlay

import (
	"fmt"
	"math"
	"strconv"

	"cdi-map/internal/geo"

	"github.com/paulmach/orb"
)

// FeatureInfo：点选要素的弹窗内容
type FeatureInfo struct {
	Layer      string         `json:"layer"`
	Column     string         `json:"column"`
	Value      string         `json:"value"`
	Properties map[string]any `json:"properties"`
}

// hiddenProps：弹窗属性表中不展示的内部标识
var hiddenProps = map[string]bool{"uid": true, "id": true}

// 文档注释：查询某点命中的要素
// 背景：对每个当前图层做点入面判定；连接图层的值保留三位小数，分位数图层按原值输出，非有限值显示 n/a。
func (m *Manager) Inspect(pt orb.Point) []FeatureInfo {
	var out []FeatureInfo
	for _, o := range m.Overlays() {
		for _, f := range geo.FeaturesAt(o.Data, pt) {
			v := geo.Number(f.Properties, o.Column)
			info := FeatureInfo{Layer: o.Name, Column: o.Column, Value: formatValue(v, o.Scale), Properties: map[string]any{}}
			for k, pv := range f.Properties {
				if !hiddenProps[k] {
					info.Properties[k] = pv
				}
			}
			out = append(out, info)
		}
	}
	return out
}

func formatValue(v float64, scale Scale) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	if scale == ScaleDiverging {
		return fmt.Sprintf("%.3f", v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
