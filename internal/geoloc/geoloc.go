// 包 geoloc：按访客 IP 估计地图初始中心
package geoloc

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// 文档注释：基于 GeoLite2/GeoIP2 City 库的定位器
// 背景：外勤人员分布在多个区，首次打开地图时以访客所在城市为中心，查不到时使用配置的默认中心。
// 约束：零值与 nil 定位器始终返回默认中心；私有地址与坐标为 (0,0) 的结果视为未命中。
type Locator struct {
	mu       sync.RWMutex
	reader   *geoip2.Reader
	fallback [2]float64
}

// Open：path 为空时返回只有默认中心的定位器
func Open(path string, fallback [2]float64) (*Locator, error) {
	l := &Locator{fallback: fallback}
	if path == "" {
		return l, nil
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	l.reader = r
	return l, nil
}

// Center：返回 (lat, lon) 以及是否来自 IP 定位
func (l *Locator) Center(ip string) ([2]float64, bool) {
	if l == nil {
		return [2]float64{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	addr := net.ParseIP(ip)
	if l.reader == nil || addr == nil || addr.IsPrivate() || addr.IsLoopback() {
		return l.fallback, false
	}
	rec, err := l.reader.City(addr)
	if err != nil {
		return l.fallback, false
	}
	lat, lon := rec.Location.Latitude, rec.Location.Longitude
	if lat == 0 && lon == 0 {
		return l.fallback, false
	}
	return [2]float64{lat, lon}, true
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}
