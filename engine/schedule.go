package engine

import (
	"sort"

	"github.com/samber/lo"
)

const (
	// 两段公交之间换乘步行时长上限（秒）
	DEFAULT_MAX_TRANSFER_WALK_TIME = 20 * 60
	// 换乘后第二班车的最长等待时间（秒）
	DEFAULT_MAX_TRANSFER_WAIT = 3600
	// 行人速度（m/s）
	DEFAULT_WALK_SPEED = 1.4
)

// StopWalkTimes 车站之间的步行时长查询，由步行矩阵实现
type StopWalkTimes interface {
	WalkTime(fromStopID, toStopID int32) (seconds int, ok bool)
}

// ScheduleOptions ScheduleIndex构建参数
// EnableTransfers打开两段公交扩展，此时StopWalks不可为空
type ScheduleOptions struct {
	EnableTransfers     bool
	MaxTransferWalkTime int           // 秒，0取默认值
	MaxTransferWait     int           // 秒，0取默认值
	WalkSpeed           float64       // m/s，换算换乘步行距离用，0取默认值
	StopWalks           StopWalkTimes // 车站间步行时长
}

func (o ScheduleOptions) withDefaults() ScheduleOptions {
	if o.MaxTransferWalkTime == 0 {
		o.MaxTransferWalkTime = DEFAULT_MAX_TRANSFER_WALK_TIME
	}
	if o.MaxTransferWait == 0 {
		o.MaxTransferWait = DEFAULT_MAX_TRANSFER_WAIT
	}
	if o.WalkSpeed == 0 {
		o.WalkSpeed = DEFAULT_WALK_SPEED
	}
	return o
}

// ScheduleIndex 预计算的公交行程索引
// key为上下车站对，value为按上车时刻升序的可乘班次
// 构建后只读，可被所有worker共享
type ScheduleIndex struct {
	legs map[StopPair][]ScheduledLeg
}

// BuildScheduleIndex 从时刻表构建行程索引
// 对每个trip，站序在前且先发后至的每个站对产生一条单程班次；
// 打开换乘扩展后，对每条单程班次的下车站，步行可达且等车不超时的
// 第二班车的每个后续站再各产生一条两段班次
func BuildScheduleIndex(rows []TimetableRow, opts ScheduleOptions) (*ScheduleIndex, error) {
	if len(rows) == 0 {
		return nil, ErrMissingScheduleData
	}
	opts = opts.withDefaults()
	if opts.EnableTransfers && opts.StopWalks == nil {
		opts.EnableTransfers = false
		log.Warn("transfers enabled without stop walk times, falling back to single-bus legs")
	}

	// 按trip分组并排站序
	trips := lo.GroupBy(rows, func(r TimetableRow) string { return r.TripID })
	for _, visits := range trips {
		sort.Slice(visits, func(i, j int) bool {
			return visits[i].StopSequence < visits[j].StopSequence
		})
	}
	// 按站分组，供换乘扩展查第二班车
	byStop := lo.GroupBy(rows, func(r TimetableRow) int32 { return r.StopID })

	idx := &ScheduleIndex{legs: make(map[StopPair][]ScheduledLeg)}
	singleLegs := make([]ScheduledLeg, 0)
	for tripID, visits := range trips {
		for i, from := range visits {
			for _, to := range visits[i+1:] {
				if to.ArrivalTime <= from.DepartureTime {
					continue
				}
				leg := ScheduledLeg{
					TripID:      tripID,
					PickUpID:    from.StopID,
					DropOffID:   to.StopID,
					PickUpTime:  from.DepartureTime,
					DropOffTime: to.ArrivalTime,
					NumBuses:    1,
				}
				idx.add(leg)
				singleLegs = append(singleLegs, leg)
			}
		}
	}

	if opts.EnableTransfers {
		count := idx.buildTransferLegs(singleLegs, byStop, trips, opts)
		log.Debugf("built %d two-bus legs", count)
	}

	for key := range idx.legs {
		legs := idx.legs[key]
		sort.SliceStable(legs, func(i, j int) bool {
			return legs[i].PickUpTime < legs[j].PickUpTime
		})
		idx.legs[key] = legs
	}
	log.Infof("schedule index built: %d stop pairs", len(idx.legs))
	return idx, nil
}

// 两段公交扩展：单程班次下车后步行换乘，再乘第二班车
func (idx *ScheduleIndex) buildTransferLegs(
	singleLegs []ScheduledLeg,
	byStop map[int32][]TimetableRow,
	trips map[string][]TimetableRow,
	opts ScheduleOptions,
) int {
	count := 0
	for _, first := range singleLegs {
		for midStopID, midVisits := range byStop {
			if midStopID == first.PickUpID || midStopID == first.DropOffID {
				continue
			}
			walkTime, ok := opts.StopWalks.WalkTime(first.DropOffID, midStopID)
			if !ok || walkTime > opts.MaxTransferWalkTime {
				continue
			}
			walkArrival := first.DropOffTime + walkTime
			for _, mid := range midVisits {
				if mid.DepartureTime <= walkArrival ||
					mid.DepartureTime > walkArrival+opts.MaxTransferWait {
					continue
				}
				for _, final := range trips[mid.TripID] {
					if final.StopSequence <= mid.StopSequence ||
						final.ArrivalTime <= mid.DepartureTime {
						continue
					}
					if final.StopID == first.PickUpID {
						continue
					}
					idx.add(ScheduledLeg{
						TripID:           first.TripID,
						SecondTripID:     mid.TripID,
						PickUpID:         first.PickUpID,
						DropOffID:        final.StopID,
						PickUpTime:       first.PickUpTime,
						DropOffTime:      final.ArrivalTime,
						NumBuses:         2,
						TransferWalkDist: float64(walkTime) * opts.WalkSpeed,
					})
					count++
				}
			}
		}
	}
	return count
}

func (idx *ScheduleIndex) add(leg ScheduledLeg) {
	key := StopPair{PickUpID: leg.PickUpID, DropOffID: leg.DropOffID}
	idx.legs[key] = append(idx.legs[key], leg)
}

// Legs 指定站对的全部可乘班次，按上车时刻升序
func (idx *ScheduleIndex) Legs(pickUpID, dropOffID int32) []ScheduledLeg {
	return idx.legs[StopPair{PickUpID: pickUpID, DropOffID: dropOffID}]
}

// Pairs 索引中的所有站对
func (idx *ScheduleIndex) Pairs() []StopPair {
	return lo.Keys(idx.legs)
}

// Len 站对数量
func (idx *ScheduleIndex) Len() int {
	return len(idx.legs)
}

// AllLegs 索引中的全部班次，供缓存序列化用
func (idx *ScheduleIndex) AllLegs() []ScheduledLeg {
	all := make([]ScheduledLeg, 0)
	for _, legs := range idx.legs {
		all = append(all, legs...)
	}
	return all
}

// RestoreScheduleIndex 从缓存的班次列表重建索引
func RestoreScheduleIndex(legs []ScheduledLeg) *ScheduleIndex {
	idx := &ScheduleIndex{legs: make(map[StopPair][]ScheduledLeg)}
	for _, leg := range legs {
		idx.add(leg)
	}
	for key := range idx.legs {
		pairLegs := idx.legs[key]
		sort.SliceStable(pairLegs, func(i, j int) bool {
			return pairLegs[i].PickUpTime < pairLegs[j].PickUpTime
		})
		idx.legs[key] = pairLegs
	}
	return idx
}
