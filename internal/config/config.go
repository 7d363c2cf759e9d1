// 包 config：进程配置，来自 .env 与环境变量
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv：依次加载 ./.env 与 data/env/.env；文件缺失时忽略，已存在的环境变量不被覆盖
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// 文档注释：服务配置
// 背景：数据库与 Redis 连接参数仍由 utils 直接读取 PG_* / REDIS_*，这里只收拢服务自身的开关。
// 约束：所有字段都有默认值，非法数值回退到默认值。
type Config struct {
	Addr    string
	APIBase string
	UIDir   string

	ZonesPath         string
	ZonesURL          string
	ZonesIDProperty   string
	ZonesNameProperty string
	ZonesCacheTTL     time.Duration

	PresetsPath string

	PulseCycles   int
	PulseInterval time.Duration

	RefreshCron    string
	RefreshTimeout time.Duration

	GeoIPPath string
	MapCenter [2]float64

	TLSEnable       bool
	TLSCertPath     string
	TLSKeyPath      string
	TLSRedirectAddr string
}

// DefaultMapCenter：利马北部（lat, lon）
var DefaultMapCenter = [2]float64{-12.05, -77.05}

func FromEnv() Config {
	c := Config{
		Addr:              env("ADDR", ":8080"),
		APIBase:           strings.TrimRight(env("API_BASE", "/api"), "/"),
		UIDir:             env("UI_DIST", filepath.Join("ui", "dist")),
		ZonesPath:         env("ZONES_PATH", filepath.Join("data", "residential_zones.geojson")),
		ZonesURL:          os.Getenv("ZONES_URL"),
		ZonesIDProperty:   env("ZONES_ID_PROPERTY", "zona_id"),
		ZonesNameProperty: env("ZONES_NAME_PROPERTY", "zone_name"),
		ZonesCacheTTL:     time.Duration(envInt("ZONES_CACHE_TTL_S", 86400)) * time.Second,
		PresetsPath:       os.Getenv("PRESETS_PATH"),
		PulseCycles:       envInt("PULSE_CYCLES", 3),
		PulseInterval:     time.Duration(envInt("PULSE_INTERVAL_MS", 450)) * time.Millisecond,
		RefreshCron:       os.Getenv("REFRESH_CRON"),
		RefreshTimeout:    time.Duration(envInt("REFRESH_TIMEOUT_S", 30)) * time.Second,
		GeoIPPath:         os.Getenv("GEOIP_PATH"),
		MapCenter:         DefaultMapCenter,
		TLSEnable:         os.Getenv("TLS_ENABLE") == "true",
		TLSCertPath:       env("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:        env("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		TLSRedirectAddr:   os.Getenv("TLS_REDIRECT_ADDR"),
	}
	if c.APIBase == "" {
		c.APIBase = "/api"
	}
	if v := os.Getenv("MAP_CENTER"); v != "" {
		if p, err := ParseCenter(v); err == nil {
			c.MapCenter = p
		}
	}
	return c
}

// ParseCenter：解析 "lat,lon"
func ParseCenter(s string) ([2]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return [2]float64{}, fmt.Errorf("map center %q: want \"lat,lon\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("map center %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("map center %q: %w", s, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return [2]float64{}, fmt.Errorf("map center %q: out of range", s)
	}
	return [2]float64{lat, lon}, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
