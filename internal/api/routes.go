// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"cdi-map/internal/catalog"
	"cdi-map/internal/logger"
	"cdi-map/internal/mapsurface"
	"cdi-map/internal/overlay"
	"cdi-map/internal/router"
	"cdi-map/internal/store"

	"github.com/paulmach/orb"
)

// Purger：可清空的数据缓存
type Purger interface {
	Purge()
}

// Deps：路由依赖；Store 与 Cache 可为空
type Deps struct {
	Router     *router.Router
	Manager    *overlay.Manager
	Surface    *mapsurface.Memory
	Store      *store.Store
	Cache      Purger
	AdminToken string
}

// regionItem：首页列表中的一项
type regionItem struct {
	Slug   string     `json:"slug"`
	Name   string     `json:"name"`
	Layers string     `json:"layers"`
	Center [2]float64 `json:"center"`
	Zoom   int        `json:"zoom"`
}

// navResult：导航结果，token 为规范化后的令牌
type navResult struct {
	State router.State `json:"state"`
	Token string       `json:"token"`
	View  router.View  `json:"view"`
}

type viewResult struct {
	navResult
	ActiveRegion string              `json:"activeRegion"`
	Generation   uint64              `json:"generation"`
	Map          mapsurface.Snapshot `json:"map"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parsePoint：读取 lat/lon 查询参数
func parsePoint(r *http.Request) (orb.Point, bool) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return orb.Point{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

func currentNav(rt *router.Router) navResult {
	st := rt.State()
	return navResult{State: st, Token: st.Token(), View: rt.View()}
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	apiMux := http.NewServeMux()
	var nav mapsurface.Notifier

	apiMux.HandleFunc("/regions", func(w http.ResponseWriter, r *http.Request) {
		cat := d.Router.Catalog()
		items := []regionItem{}
		for _, def := range cat.Search(r.URL.Query().Get("q")) {
			items = append(items, regionItem{
				Slug:   def.Slug,
				Name:   def.Name,
				Layers: catalog.LayerLabel(len(def.Layers)),
				Center: [2]float64{def.Center.Lat(), def.Center.Lon()},
				Zoom:   def.Zoom,
			})
		}
		res := map[string]any{"regions": items, "bounds": nil}
		if b, err := cat.Bounds(); err == nil {
			res["bounds"] = [2][2]float64{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}}
		}
		writeJSON(w, http.StatusOK, res)
	})

	apiMux.HandleFunc("/regions/nearest", func(w http.ResponseWriter, r *http.Request) {
		pt, ok := parsePoint(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
			return
		}
		def, km, found := d.Router.Catalog().Nearest(pt)
		if !found {
			writeError(w, http.StatusNotFound, "no regions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slug": def.Slug, "name": def.Name, "distanceKm": km})
	})

	apiMux.HandleFunc("/navigate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		d.Router.Navigate(r.URL.Query().Get("to"))
		nav.Notify()
		writeJSON(w, http.StatusOK, currentNav(d.Router))
	})

	apiMux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		withData := r.URL.Query().Get("data") != "0"
		writeJSON(w, http.StatusOK, viewResult{
			navResult:    currentNav(d.Router),
			ActiveRegion: d.Manager.ActiveRegion(),
			Generation:   d.Manager.Generation(),
			Map:          d.Surface.Snapshot(withData),
		})
	})

	apiMux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		pt, ok := parsePoint(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
			return
		}
		infos := d.Manager.Inspect(pt)
		if infos == nil {
			infos = []overlay.FeatureInfo{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"features": infos})
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			writeError(w, http.StatusNotFound, "stats disabled")
			return
		}
		t, err := d.Store.RegionTotals(r.Context())
		if err != nil {
			logger.L().Error("stats_read_error", "err", err)
			writeError(w, http.StatusInternalServerError, "stats unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"regions": t})
	})

	// 数据文件更新后清空拉取缓存；需 x-admin-token
	apiMux.HandleFunc("/purge-cache", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		t := strings.TrimSpace(r.Header.Get("x-admin-token"))
		if d.AdminToken == "" || t != d.AdminToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if d.Cache != nil {
			d.Cache.Purge()
		}
		logger.L().Info("fetch_cache_purged")
		w.WriteHeader(http.StatusNoContent)
	})

	apiMux.HandleFunc("/ws", d.serveWS(&nav))

	return apiMux
}
