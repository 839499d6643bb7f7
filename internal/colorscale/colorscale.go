// 包 colorscale：分级设色的颜色函数（发散型 seismic 与分位数型），纯函数、无副作用
package colorscale

import (
	"fmt"
	"math"
)

// Neutral：缺失值或非有限值使用的中性色
const Neutral = "#cccccc"

type stop struct {
	pos float64
	rgb [3]float64
}

// seismicStops：发散色带控制点（深蓝 → 浅蓝 → 白 → 浅红 → 深红）
var seismicStops = []stop{
	{0.00, [3]float64{0x00, 0x00, 0x4C}},
	{0.25, [3]float64{0x6E, 0x8B, 0xC6}},
	{0.50, [3]float64{0xFF, 0xFF, 0xFF}},
	{0.75, [3]float64{0xD6, 0x83, 0x83}},
	{1.00, [3]float64{0x80, 0x00, 0x00}},
}

// DivergingTicks：发散色带图例的固定刻度（自上而下）
var DivergingTicks = []float64{1, 0.5, 0, -0.5, -1}

// 文档注释：发散色带取色
// 背景：输入为 [-1,1] 的有符号归一化指数，先映射到 [0,1]，再在相邻两个控制点之间逐分量线性插值。
// 约束：超出范围的值截断到边界；NaN/Inf 返回 Neutral；控制点按位置顺序扫描，取第一个包含该位置的区间。
func Seismic(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Neutral
	}
	t := math.Max(-1, math.Min(1, v))
	x := (t + 1) / 2
	lower, upper := seismicStops[0], seismicStops[len(seismicStops)-1]
	for i := 0; i < len(seismicStops)-1; i++ {
		if x >= seismicStops[i].pos && x <= seismicStops[i+1].pos {
			lower, upper = seismicStops[i], seismicStops[i+1]
			break
		}
	}
	u := (x - lower.pos) / (upper.pos - lower.pos)
	var rgb [3]float64
	for c := 0; c < 3; c++ {
		rgb[c] = lerp(lower.rgb[c], upper.rgb[c], u)
	}
	return toHex(rgb)
}

// DivergingSwatches：从 -1 到 1 等距取 steps 个颜色，用于图例色块
func DivergingSwatches(steps int) []string {
	if steps < 2 {
		steps = 2
	}
	out := make([]string, steps)
	for i := range out {
		out[i] = Seismic(float64(i)/float64(steps-1)*2 - 1)
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// toHex：分量按“半数进位”取整后编码为 #rrggbb
func toHex(rgb [3]float64) string {
	var b [3]uint8
	for i, v := range rgb {
		r := math.Floor(v + 0.5)
		if r < 0 {
			r = 0
		}
		if r > 255 {
			r = 255
		}
		b[i] = uint8(r)
	}
	return fmt.Sprintf("#%02x%02x%02x", b[0], b[1], b[2])
}
