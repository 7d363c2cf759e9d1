package site

import "math"

// 文档注释：可见条目的包围盒，供地图视图缩放定位
// 返回：[minLon, minLat, maxLon, maxLat]；没有有效坐标时 ok=false。
// 约束：非有限值与 (0,0) 视为缺失坐标并跳过。
func Bounds(entries []Entry) (b [4]float64, ok bool) {
	b = [4]float64{180, 90, -180, -90}
	for _, e := range entries {
		if !validCoord(e.Lat, e.Lon) {
			continue
		}
		ok = true
		b[0] = math.Min(b[0], e.Lon)
		b[1] = math.Min(b[1], e.Lat)
		b[2] = math.Max(b[2], e.Lon)
		b[3] = math.Max(b[3], e.Lat)
	}
	if !ok {
		return [4]float64{}, false
	}
	return b, true
}

func validCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
