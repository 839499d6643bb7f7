package colorscale

import (
	"math"
	"sort"
)

// DefaultBuckets：分位数分级默认档数
const DefaultBuckets = 7

// Palette：顺序型 7 色色板（浅 → 深）
var Palette = []string{"#f1eef6", "#d4b9da", "#c994c7", "#df65b0", "#e7298a", "#ce1256", "#91003f"}

// Quantile：按样本分位数分档的颜色函数
// 约束：构造后只读，可在多个请求间共享
type Quantile struct {
	n      int
	breaks []float64
}

// 文档注释：构建分位数色阶
// 背景：过滤非有限样本后排序，在秩 i/n 处取 n+1 个断点，索引为 floor(i·(count−1)/n)，并截断到最后一个有效索引。
// 约束：n <= 0 时使用 DefaultBuckets；样本为空时得到恒为 Neutral 的色阶。
func NewQuantile(values []float64, n int) *Quantile {
	if n <= 0 {
		n = DefaultBuckets
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	q := &Quantile{n: n}
	if len(sorted) == 0 {
		return q
	}
	sort.Float64s(sorted)
	last := len(sorted) - 1
	q.breaks = make([]float64, n+1)
	for i := 0; i <= n; i++ {
		idx := i * last / n
		if idx > last {
			idx = last
		}
		q.breaks[i] = sorted[idx]
	}
	return q
}

// Breaks：返回断点副本
func (q *Quantile) Breaks() []float64 {
	return append([]float64(nil), q.breaks...)
}

// Bucket：返回值所在档位；空色阶或非有限值返回 -1
func (q *Quantile) Bucket(v float64) int {
	if len(q.breaks) == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	for i := 0; i < q.n; i++ {
		if v <= q.breaks[i+1] {
			return i
		}
	}
	return q.n - 1
}

// Color：档位映射到色板；档数多于色板长度时超出部分取最后一个颜色
func (q *Quantile) Color(v float64) string {
	b := q.Bucket(v)
	if b < 0 {
		return Neutral
	}
	if b >= len(Palette) {
		b = len(Palette) - 1
	}
	return Palette[b]
}
