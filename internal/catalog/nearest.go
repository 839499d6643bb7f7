package catalog

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// 文档注释：区域中心点 KD-Tree（最近区域查询）
// 背景：首页按用户位置推荐最近的区域；中心点先转为单位球面上的三维坐标，弦长与球面距离单调一致，
// 轴向差值是弦长的下界，剪枝不会漏掉更近的点。
// 约束：按 x/y/z 轮换分割，中位数原地选择；目录只读，构建后不再修改。
type kdNode struct {
	p   [3]float64
	idx int
	ax  int
	l   *kdNode
	r   *kdNode
}

type centerRef struct {
	p   [3]float64
	idx int
}

func unitVector(pt orb.Point) [3]float64 {
	lat := pt.Lat() * math.Pi / 180
	lon := pt.Lon() * math.Pi / 180
	return [3]float64{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
}

func buildCenterIndex(regions []RegionDefinition) *kdNode {
	refs := make([]centerRef, len(regions))
	for i, r := range regions {
		refs[i] = centerRef{p: unitVector(r.Center.Point()), idx: i}
	}
	return buildKD(refs, 0)
}

func buildKD(a []centerRef, depth int) *kdNode {
	if len(a) == 0 {
		return nil
	}
	ax := depth % 3
	mid := len(a) / 2
	selectNth(a, mid, ax)
	return &kdNode{
		p:   a[mid].p,
		idx: a[mid].idx,
		ax:  ax,
		l:   buildKD(a[:mid], depth+1),
		r:   buildKD(a[mid+1:], depth+1),
	}
}

// selectNth：原地选择第 n 小元素（按 ax 轴）
func selectNth(a []centerRef, n, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(a []centerRef, lo, hi, pivot, ax int) int {
	pv := a[pivot].p[ax]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j].p[ax] < pv {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func chord2(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

// 文档注释：距离给定点最近的区域
// 返回：区域、以千米计的球面距离；目录为空时 ok=false
func (c *Catalog) Nearest(pt orb.Point) (RegionDefinition, float64, bool) {
	if c.centers == nil {
		return RegionDefinition{}, 0, false
	}
	q := unitVector(pt)
	best, bestD := -1, math.MaxFloat64
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := chord2(q, n.p); d < bestD || (d == bestD && n.idx < best) {
			best, bestD = n.idx, d
		}
		diff := q[n.ax] - n.p[n.ax]
		first, second := n.l, n.r
		if diff >= 0 {
			first, second = n.r, n.l
		}
		dfs(first)
		if diff*diff <= bestD {
			dfs(second)
		}
	}
	dfs(c.centers)
	r := c.regions[best].clone()
	return r, geo.DistanceHaversine(pt, r.Center.Point()) / 1000, true
}
