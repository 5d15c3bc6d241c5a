package engine

import "sort"

// AccessibilityScore 单个起点的可达性：可达终点数/终点总数
type AccessibilityScore struct {
	OriginID  int32
	Score     float64
	Reachable int
	Total     int
}

// AccessibilityScores 以方案池计算每个起点的可达性得分
// 终点可达当且仅当该起终点对存在至少一条可行方案
func AccessibilityScores(pool []Itinerary, originIDs, destinationIDs []int32) []AccessibilityScore {
	reachable := make(map[ODPair]bool)
	for _, it := range pool {
		if it.Feasible {
			reachable[ODPair{OriginID: it.OriginID, DestinationID: it.DestinationID}] = true
		}
	}

	scores := make([]AccessibilityScore, 0, len(originIDs))
	for _, originID := range originIDs {
		count := 0
		for _, destinationID := range destinationIDs {
			if reachable[ODPair{OriginID: originID, DestinationID: destinationID}] {
				count++
			}
		}
		score := 0.0
		if len(destinationIDs) > 0 {
			score = float64(count) / float64(len(destinationIDs))
		}
		scores = append(scores, AccessibilityScore{
			OriginID:  originID,
			Score:     score,
			Reachable: count,
			Total:     len(destinationIDs),
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].OriginID < scores[j].OriginID })
	return scores
}

// AccessibilityBuckets 按得分把起点分为完全可达(=1)、部分可达(0,1)、不可达(=0)
func AccessibilityBuckets(scores []AccessibilityScore) (full, partial, none []AccessibilityScore) {
	for _, s := range scores {
		switch {
		case s.Score == 1:
			full = append(full, s)
		case s.Score == 0:
			none = append(none, s)
		default:
			partial = append(partial, s)
		}
	}
	return
}
