// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"screening-map/internal/api"
	"screening-map/internal/config"
	"screening-map/internal/dashboard"
	"screening-map/internal/filter"
	"screening-map/internal/geoloc"
	"screening-map/internal/logger"
	"screening-map/internal/metrics"
	"screening-map/internal/middleware"
	"screening-map/internal/migrate"
	"screening-map/internal/schedule"
	"screening-map/internal/selection"
	"screening-map/internal/store"
	"screening-map/internal/utils"
	"screening-map/internal/zones"
)

func main() {
	config.LoadDotenv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.FromEnv()
	l.Debug("config_api_base", "base", cfg.APIBase)

	db, driver, err := utils.OpenFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok", "driver", driver)
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	if err := migrate.EnsureSchema(context.Background(), db, driver); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db, driver)

	// 几何源：优先 ZONES_URL，其次本地文件；开启 Redis 时加一层缓存
	var src zones.Source = zones.FileSource{Path: cfg.ZonesPath}
	if cfg.ZonesURL != "" {
		src = zones.HTTPSource{URL: cfg.ZonesURL}
	}
	if rc := utils.OpenRedisFromEnv(); rc != nil {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
			src = zones.CachedSource{Inner: src, RC: rc, TTL: cfg.ZonesCacheTTL}
		}
		defer rc.Close()
	} else {
		l.Info("redis_disabled")
	}
	resolver := zones.NewResolver(src, zones.ParseOptions{
		IDProperty:   cfg.ZonesIDProperty,
		NameProperty: cfg.ZonesNameProperty,
	}, l)

	presets, err := filter.LoadPresets(cfg.PresetsPath)
	if err != nil {
		l.Error("presets_load_error", "path", cfg.PresetsPath, "err", err)
		presets = filter.Presets{}
	}

	sel := selection.NewCoordinator(selection.PulseConfig{Cycles: cfg.PulseCycles, Interval: cfg.PulseInterval}, l)
	defer sel.Close()
	dash := dashboard.New(dashboard.Options{Store: st, Zones: resolver, Sel: sel, Sink: st, Log: l})
	{
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RefreshTimeout)
		dash.Refresh(ctx)
		cancel()
	}

	cr, err := schedule.Start(cfg.RefreshCron, cfg.RefreshTimeout, func(ctx context.Context) { dash.Refresh(ctx) })
	if err != nil {
		l.Error("refresh_cron_error", "spec", cfg.RefreshCron, "err", err)
	}
	defer schedule.Stop(cr)

	loc, err := geoloc.Open(cfg.GeoIPPath, cfg.MapCenter)
	if err != nil {
		l.Error("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
		loc = nil
	} else {
		defer loc.Close()
	}

	hub := api.NewHub(sel, l)
	defer hub.Close()
	apiMux := api.BuildRoutes(api.Deps{Dash: dash, Hub: hub, Presets: presets, Log: l})

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.UIDir)))
	mux.HandleFunc("/config.js", api.ConfigJS(cfg.APIBase, loc, cfg.MapCenter))

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		l.Info("shutdown_begin")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "screening-map.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		if cfg.TLSRedirectAddr != "" {
			go redirectToHTTPS(cfg.TLSRedirectAddr, cfg.Addr)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		if err := s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil && err != http.ErrServerClosed {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		l.Error("server_error", "err", err)
	}
}

// redirectToHTTPS：HTTP 重定向到 HTTPS 服务端口
func redirectToHTTPS(from, httpsAddr string) {
	l := logger.L()
	port := strings.TrimPrefix(httpsAddr, ":")
	m := http.NewServeMux()
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		if port != "" && port != "443" {
			host += ":" + port
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
	l.Info("http_redirect_listening", "addr", from, "to", "https"+httpsAddr)
	if err := http.ListenAndServe(from, logger.AccessMiddleware(l)(m)); err != nil {
		l.Error("http_redirect_error", "err", err)
	}
}
