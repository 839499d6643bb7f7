// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"cdi-map/internal/api"
	"cdi-map/internal/catalog"
	"cdi-map/internal/logger"
	"cdi-map/internal/mapsurface"
	"cdi-map/internal/metrics"
	"cdi-map/internal/middleware"
	"cdi-map/internal/migrate"
	"cdi-map/internal/overlay"
	"cdi-map/internal/router"
	"cdi-map/internal/source"
	"cdi-map/internal/store"
	"cdi-map/internal/utils"

	"github.com/joho/godotenv"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiBase := envOr("API_BASE", "/api")
	ui := envOr("UI_DIST", filepath.Join("ui", "dist"))
	title := envOr("APP_TITLE", router.DefaultTitle)
	l.Debug("config_api_base", "base", apiBase)
	l.Debug("config_ui_dir", "dir", ui)

	// 数据源：HTTP 或本地目录，外层包一层 LRU（可选 Redis）缓存
	upstream, err := source.NewFromEnv()
	if err != nil {
		l.Error("source_init_error", "err", err)
		os.Exit(1)
	}
	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}
	fetcher := source.NewCachedFetcher(upstream, source.CacheOptionsFromEnv(rc))

	// 区域目录：清单失败时保留空目录继续服务，首页显示为空
	manifest := envOr("MANIFEST_PATH", filepath.ToSlash(filepath.Join("data", "index.json")))
	cat, err := catalog.Load(ctx, fetcher, manifest)
	if err != nil {
		l.Error("manifest_load_error", "path", manifest, "err", err)
	} else {
		l.Info("manifest_load_ok", "path", manifest, "regions", cat.Len())
	}

	base := overlay.DefaultBaseLayer
	if u := os.Getenv("BASE_TILE_URL"); u != "" {
		base.URL = u
		base.Attribution = os.Getenv("BASE_TILE_ATTRIBUTION")
	}
	surface := mapsurface.NewMemory(catalog.DefaultCenter.Point(), catalog.DefaultZoom)
	session, err := overlay.NewSession(surface, base)
	if err != nil {
		l.Error("map_session_error", "err", err)
		os.Exit(1)
	}
	mgr := overlay.NewManager(session, fetcher, l)

	// 可选：区域浏览统计（仅运营分析）
	var st *store.Store
	opts := router.Options{Title: title}
	if utils.EnvBool("STATS_DB_ENABLE") {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		opts.OnEnter = func(ctx context.Context, def catalog.RegionDefinition) {
			if err := st.IncrRegionView(ctx, def.Slug); err != nil {
				l.Warn("stats_incr_error", "slug", def.Slug, "err", err)
			}
		}
	} else {
		l.Info("stats_db_disabled")
	}
	rt := router.New(ctx, cat, mgr, l, opts)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(api.Deps{
		Router:     rt,
		Manager:    mgr,
		Surface:    surface,
		Store:      st,
		Cache:      fetcher,
		AdminToken: os.Getenv("ADMIN_TOKEN"),
	})
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/config.js", api.ConfigScript(apiBase, title, base))
	if os.Getenv("DATA_BASE_URL") == "" {
		dataDir := envOr("DATA_DIR", ".")
		mux.Handle("/data/", http.FileServer(http.Dir(dataDir)))
		l.Debug("config_data_dir", "dir", dataDir)
	}
	mux.Handle("/", http.FileServer(http.Dir(ui)))

	addr := envOr("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout())
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if utils.EnvBool("TLS_ENABLE") {
		certPath := envOr("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := envOr("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "cdi-map.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
	}
	rt.Wait()
	l.Info("shutdown_done")
}

// shutdownTimeout：SHUTDOWN_TIMEOUT_S，默认 10 秒
func shutdownTimeout() time.Duration {
	if s := os.Getenv("SHUTDOWN_TIMEOUT_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 10 * time.Second
}
