package shop

import "math"

const (
	earthRadius = 6371e3 // m
	// DefaultWalkingSpeed：步行速度，单位 m/分
	DefaultWalkingSpeed = 50.0
)

// Distance：两点间大圆距离（米，haversine）
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// WalkingMinutes：步行所需分钟数，向上取整；speed<=0 时用默认速度
func WalkingMinutes(meters, speed float64) int {
	if speed <= 0 {
		speed = DefaultWalkingSpeed
	}
	return int(math.Ceil(meters / speed))
}

// DistanceFrom：店铺到给定坐标的距离
func (s Shop) DistanceFrom(lat, lng float64) float64 {
	return Distance(lat, lng, s.Lat, s.Lng)
}
