package engine

import (
	"fmt"
	"math"
)

const (
	// 阻抗函数默认平滑系数
	DEFAULT_BETA = 140
	// 查询时间窗默认长度（秒）
	DEFAULT_WINDOW_SECONDS = 3600
)

// SelectParams 偏好选择参数，零值字段取默认值
type SelectParams struct {
	QueryTime     int
	WindowSeconds int
	Beta          float64
	Preference    Preference
}

func (p SelectParams) withDefaults() SelectParams {
	if p.WindowSeconds == 0 {
		p.WindowSeconds = DEFAULT_WINDOW_SECONDS
	}
	if p.Beta == 0 {
		p.Beta = DEFAULT_BETA
	}
	return p
}

// impedance 高斯形阻抗得分，beta越大对长行程的惩罚越平缓
func impedance(seconds int, beta float64) float64 {
	minutes := float64(seconds) / 60
	return math.Exp(-minutes * minutes / beta)
}

// SelectPreferred 在一个起终点对的方案池中按偏好选出唯一最优方案
// 时间窗过滤为闭边界：start_time >= queryTime 且 end_time <= queryTime+window
// 窗口内无方案返回(nil, nil)，表示该时刻不可达，不是错误
// min_time比较总时长，min_walk比较总步行时长，并列时先出现者胜
func SelectPreferred(pool []Itinerary, originID, destinationID int32, params SelectParams) (*PreferenceResult, error) {
	if !params.Preference.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPreference, params.Preference)
	}
	params = params.withDefaults()

	surviving := make([]Itinerary, 0)
	for _, it := range pool {
		if it.OriginID != originID || it.DestinationID != destinationID {
			continue
		}
		start, end := it.Window(params.QueryTime)
		if start < params.QueryTime || end > params.QueryTime+params.WindowSeconds {
			continue
		}
		// 纯步行方案的时刻在此落定
		it.StartTime = start
		it.EndTime = end
		surviving = append(surviving, it)
	}
	if len(surviving) == 0 {
		return nil, nil
	}

	best := surviving[0]
	for _, it := range surviving[1:] {
		switch params.Preference {
		case PreferenceMinTime:
			if it.TotalTime < best.TotalTime {
				best = it
			}
		case PreferenceMinWalk:
			if it.TotalWalkTime < best.TotalWalkTime {
				best = it
			}
		}
	}

	return &PreferenceResult{
		Itinerary:      best,
		QueryTime:      params.QueryTime,
		Preference:     params.Preference,
		TotalTimeScore: impedance(best.TotalTime, params.Beta),
		WalkingScore:   impedance(best.TotalWalkTime, params.Beta),
	}, nil
}
