// 包 geo：要素集合与属性包的最小封装（基于 orb/geojson），以及包围盒与点面判定
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// ErrEmptyBounds：要素集合没有任何几何，无法计算视野范围
var ErrEmptyBounds = errors.New("geo: empty geometry bounds")

// 文档注释：解析 GeoJSON 要素集合
// 背景：兼容上游直接给出单个 Feature 的情况，包装为只含一个要素的集合；属性为空的要素补齐空属性包。
// 约束：仅接受 FeatureCollection / Feature；其余类型返回错误。
func ParseFeatureCollection(b []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err == nil && strings.EqualFold(fc.Type, "FeatureCollection") {
		normalize(fc)
		return fc, nil
	}
	f, ferr := geojson.UnmarshalFeature(b)
	if ferr == nil && strings.EqualFold(f.Type, "Feature") {
		out := geojson.NewFeatureCollection()
		out.Append(f)
		normalize(out)
		return out, nil
	}
	if err == nil {
		err = errors.New("geo: not a feature collection")
	}
	return nil, err
}

func normalize(fc *geojson.FeatureCollection) {
	kept := fc.Features[:0]
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		kept = append(kept, f)
	}
	fc.Features = kept
}

// Value：读取属性，区分“不存在”和“值为 null”
// 约束：null 视为不存在
func Value(p geojson.Properties, key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// 文档注释：按数值语义读取属性
// 背景：色阶只接受数值；缺失属性必须按非有限值传递（NaN），不能当作 0。
// 约束：字符串按十进制解析，空串与非法文本均为 NaN；布尔值按 1/0。
func Number(p geojson.Properties, key string) float64 {
	v, ok := Value(p, key)
	if !ok {
		return math.NaN()
	}
	return toFloat(v)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// KeyString：将属性值规范化为连接键文本；数值取最短十进制表示
func KeyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
