// Package walkmatrix 计算并缓存起点/车站/终点之间的步行时长与距离
package walkmatrix

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/sirupsen/logrus"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
)

var log = logrus.StandardLogger().WithField("module", "walkmatrix")

const EARTH_RADIUS_METERS = 6371010.0

// Point 带编号的经纬度点
type Point struct {
	ID  int32
	Lat float64
	Lon float64
}

// Provider 外部距离/时间服务
// 配置（速度、API key等）由构造时显式注入，核心逻辑不读环境变量
type Provider interface {
	TimeDist(from, to Point) (seconds int, meters float64, err error)
}

// ManhattanProvider 曼哈顿度量的内置距离服务
// 两点间步行距离取纬向与经向两段大圆距离之和
type ManhattanProvider struct {
	SpeedMPS float64
}

func NewManhattanProvider(speedMPS float64) ManhattanProvider {
	if speedMPS <= 0 {
		speedMPS = engine.DEFAULT_WALK_SPEED
	}
	return ManhattanProvider{SpeedMPS: speedMPS}
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EARTH_RADIUS_METERS
}

func (p ManhattanProvider) TimeDist(from, to Point) (int, float64, error) {
	meters := haversine(from.Lat, from.Lon, to.Lat, from.Lon) +
		haversine(to.Lat, from.Lon, to.Lat, to.Lon)
	seconds := int(math.Round(meters / p.SpeedMPS))
	return seconds, meters, nil
}

// BuildTables 解析一次实验所需的全部步行表：
// 起点->车站、车站->终点、起点->终点
// 全部在并行阶段开始前一次算完，热循环中不再有I/O
func BuildTables(origins, destinations, stops []Point, provider Provider) (*engine.WalkTables, error) {
	tables := engine.NewWalkTables()
	for _, origin := range origins {
		for _, stop := range stops {
			seconds, meters, err := provider.TimeDist(origin, stop)
			if err != nil {
				return nil, fmt.Errorf("origin %d to stop %d: %w", origin.ID, stop.ID, err)
			}
			tables.AddOriginToStop(engine.WalkingLink{
				FromID: origin.ID, ToID: stop.ID, Distance: meters, Time: seconds,
			})
		}
	}
	for _, stop := range stops {
		for _, destination := range destinations {
			seconds, meters, err := provider.TimeDist(stop, destination)
			if err != nil {
				return nil, fmt.Errorf("stop %d to destination %d: %w", stop.ID, destination.ID, err)
			}
			tables.AddStopToDestination(engine.WalkingLink{
				FromID: stop.ID, ToID: destination.ID, Distance: meters, Time: seconds,
			})
		}
	}
	for _, origin := range origins {
		for _, destination := range destinations {
			seconds, meters, err := provider.TimeDist(origin, destination)
			if err != nil {
				return nil, fmt.Errorf("origin %d to destination %d: %w", origin.ID, destination.ID, err)
			}
			tables.AddOriginToDestination(engine.WalkingLink{
				FromID: origin.ID, ToID: destination.ID, Distance: meters, Time: seconds,
			})
		}
	}
	log.Infof("walking tables built: %d origins, %d destinations, %d stops",
		len(origins), len(destinations), len(stops))
	return tables, nil
}

// StopMatrix 车站之间的步行时长，供两段公交换乘扩展使用
type StopMatrix struct {
	times map[[2]int32]int
}

// BuildStopMatrix 预计算所有车站两两之间的步行时长
func BuildStopMatrix(stops []Point, provider Provider) (*StopMatrix, error) {
	m := &StopMatrix{times: make(map[[2]int32]int, len(stops)*len(stops))}
	for _, from := range stops {
		for _, to := range stops {
			if from.ID == to.ID {
				continue
			}
			seconds, _, err := provider.TimeDist(from, to)
			if err != nil {
				return nil, fmt.Errorf("stop %d to stop %d: %w", from.ID, to.ID, err)
			}
			m.times[[2]int32{from.ID, to.ID}] = seconds
		}
	}
	return m, nil
}

// WalkTime 实现engine.StopWalkTimes
func (m *StopMatrix) WalkTime(fromStopID, toStopID int32) (int, bool) {
	seconds, ok := m.times[[2]int32{fromStopID, toStopID}]
	return seconds, ok
}
