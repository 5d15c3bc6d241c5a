package engine

import (
	"fmt"
	"sort"
)

// GenerateCandidates 对一次起终点查询筛选值得考虑的上下车站组合
// 这不是寻优：仅剔除永远不会优于直接步行的组合（总步行距离和总步行
// 时长都超过直接步行，或上下车为同一站）
// 纯过滤且确定：结果按站对排序，与输入遍历顺序无关
func GenerateCandidates(originID, destinationID int32, walks *WalkTables) ([]CandidateStopPair, error) {
	direct, ok := walks.Direct(originID, destinationID)
	if !ok {
		return nil, fmt.Errorf("origin %d destination %d: %w", originID, destinationID, ErrMissingWalkingData)
	}

	pairs := make([]CandidateStopPair, 0)
	for _, toStop := range walks.FromOrigin(originID) {
		for _, fromStop := range walks.ToDestination(destinationID) {
			if toStop.ToID == fromStop.FromID {
				continue
			}
			if toStop.Distance+fromStop.Distance > direct.Distance ||
				toStop.Time+fromStop.Time > direct.Time {
				continue
			}
			pairs = append(pairs, CandidateStopPair{
				PickUpID:        toStop.ToID,
				DropOffID:       fromStop.FromID,
				DistWalkPickUp:  toStop.Distance,
				DistWalkDropOff: fromStop.Distance,
				TimeWalkPickUp:  toStop.Time,
				TimeWalkDropOff: fromStop.Time,
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].PickUpID != pairs[j].PickUpID {
			return pairs[i].PickUpID < pairs[j].PickUpID
		}
		return pairs[i].DropOffID < pairs[j].DropOffID
	})
	return pairs, nil
}
