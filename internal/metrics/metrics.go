package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdimap_fetch_total",
		Help: "Total upstream fetches by kind and outcome",
	}, []string{"kind", "status"})
	FetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cdimap_fetch_duration_ms",
		Help:    "Upstream fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"kind"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdimap_cache_hits_total",
		Help: "Fetch cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdimap_cache_misses_total",
		Help: "Fetch cache misses across all tiers",
	})
	ActivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdimap_activations_total",
		Help: "Total region activations started",
	})
	StaleResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdimap_stale_results_total",
		Help: "Layer results dropped because a newer activation superseded them",
	})
	LayerLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdimap_layer_loads_total",
		Help: "Layer loads by outcome",
	}, []string{"status"})
	LayerLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cdimap_layer_load_duration_ms",
		Help:    "Layer load (fetch, join, style) duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	JoinFeaturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdimap_join_features_total",
		Help: "Features processed by the tabular join by result",
	}, []string{"result"})
	TeardownErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdimap_teardown_errors_total",
		Help: "Tolerated failures during overlay teardown by step",
	}, []string{"step"})
	NavigationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdimap_navigations_total",
		Help: "View router transitions by target state",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(ActivationsTotal)
	prometheus.MustRegister(StaleResultsTotal)
	prometheus.MustRegister(LayerLoadsTotal)
	prometheus.MustRegister(LayerLoadDurationMs)
	prometheus.MustRegister(JoinFeaturesTotal)
	prometheus.MustRegister(TeardownErrorsTotal)
	prometheus.MustRegister(NavigationsTotal)
}

// 文档注释：返回 Prometheus 指标处理器，由主入口挂载到 API_BASE/metrics
func Handler() http.Handler { return promhttp.Handler() }
