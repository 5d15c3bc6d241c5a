package engine

import "fmt"

// ExpandItineraries 将候选站对与行程索引交叉，对每个（站对×班次）组合
// 产出一条完整方案，最后追加唯一一条直接步行方案
// 可行标志是对"每个候选站对至少有一个班次"的逻辑与：任一候选站对
// 完全无班次即把本起终点对的整组方案标记为不可行（直接步行方案照常保留）
func ExpandItineraries(
	idx *ScheduleIndex, walks *WalkTables,
	pairs []CandidateStopPair, originID, destinationID int32,
) ([]Itinerary, error) {
	direct, ok := walks.Direct(originID, destinationID)
	if !ok {
		return nil, fmt.Errorf("origin %d destination %d: %w", originID, destinationID, ErrMissingWalkingData)
	}

	feasible := true
	pool := make([]Itinerary, 0)
	for _, pair := range pairs {
		legs := idx.Legs(pair.PickUpID, pair.DropOffID)
		if len(legs) == 0 {
			feasible = false
			continue
		}
		for _, leg := range legs {
			pool = append(pool, Itinerary{
				OriginID:        originID,
				DestinationID:   destinationID,
				BusUsed:         true,
				NumBuses:        leg.NumBuses,
				TripID:          leg.TripID,
				PickUpStopID:    pair.PickUpID,
				DropOffStopID:   pair.DropOffID,
				BusStartTime:    leg.PickUpTime,
				BusEndTime:      leg.DropOffTime,
				WalkToStartTime: pair.TimeWalkPickUp,
				WalkToDestTime:  pair.TimeWalkDropOff,
				WalkToStartDist: pair.DistWalkPickUp,
				WalkToDestDist:  pair.DistWalkDropOff,
				TotalWalk:       pair.DistWalkPickUp + pair.DistWalkDropOff,
				TotalWalkTime:   pair.TimeWalkPickUp + pair.TimeWalkDropOff,
				TotalTime:       leg.RideTime() + pair.TimeWalkPickUp + pair.TimeWalkDropOff,
				StartTime:       leg.PickUpTime - pair.TimeWalkPickUp,
				EndTime:         leg.DropOffTime + pair.TimeWalkDropOff,
			})
		}
	}

	// 直接步行方案，时刻相对查询时间，在选择阶段解析
	pool = append(pool, Itinerary{
		OriginID:      originID,
		DestinationID: destinationID,
		BusUsed:       false,
		TotalWalk:     direct.Distance,
		TotalWalkTime: direct.Time,
		TotalTime:     direct.Time,
	})

	for i := range pool {
		pool[i].Feasible = feasible
	}
	return pool, nil
}

// FilterByBusCount 按乘车段数过滤方案池（0为纯步行）
func FilterByBusCount(pool []Itinerary, numBuses int) []Itinerary {
	filtered := make([]Itinerary, 0)
	for _, it := range pool {
		if it.NumBuses == numBuses {
			filtered = append(filtered, it)
		}
	}
	return filtered
}
