package engine

import "errors"

var (
	// 错误：找不到时刻表数据源
	ErrMissingScheduleData = errors.New("missing schedule data")
	// 错误：缺少起终点之间的直接步行数据
	ErrMissingWalkingData = errors.New("missing direct-walk data")
	// 错误：未知的偏好类型
	ErrInvalidPreference = errors.New("invalid preference")
)

// TimetableRow 时刻表中的一次停靠
// 时间均为当日零点起的秒数
type TimetableRow struct {
	TripID        string
	StopID        int32
	StopSequence  int
	ArrivalTime   int
	DepartureTime int
}

// StopPair 上车站/下车站二元组，ScheduleIndex的key
type StopPair struct {
	PickUpID  int32
	DropOffID int32
}

// ScheduledLeg 一次可乘坐的公交行程
// 两段公交经步行换乘时TransferWalkDist为换乘步行距离（米）
type ScheduledLeg struct {
	TripID           string
	SecondTripID     string
	PickUpID         int32
	DropOffID        int32
	PickUpTime       int // 上车时刻（当日秒数）
	DropOffTime      int // 下车时刻（当日秒数）
	NumBuses         int
	TransferWalkDist float64
}

// RideTime 乘车时长（秒）
func (l ScheduledLeg) RideTime() int {
	return l.DropOffTime - l.PickUpTime
}

// WalkingLink 两点之间的有向步行代价，由外部距离服务提供
type WalkingLink struct {
	FromID   int32
	ToID     int32
	Distance float64 // 米
	Time     int     // 秒
}

// ODPair 起终点二元组
type ODPair struct {
	OriginID      int32
	DestinationID int32
}

// WalkTables 一次实验所需的全部步行数据
// origin->stop、stop->destination、origin->destination三张表
type WalkTables struct {
	originToStop map[int32][]WalkingLink
	stopToDest   map[int32][]WalkingLink
	originToDest map[ODPair]WalkingLink
}

func NewWalkTables() *WalkTables {
	return &WalkTables{
		originToStop: make(map[int32][]WalkingLink),
		stopToDest:   make(map[int32][]WalkingLink),
		originToDest: make(map[ODPair]WalkingLink),
	}
}

// AddOriginToStop 记录起点到车站的步行代价
func (w *WalkTables) AddOriginToStop(link WalkingLink) {
	w.originToStop[link.FromID] = append(w.originToStop[link.FromID], link)
}

// AddStopToDestination 记录车站到终点的步行代价
func (w *WalkTables) AddStopToDestination(link WalkingLink) {
	w.stopToDest[link.ToID] = append(w.stopToDest[link.ToID], link)
}

// AddOriginToDestination 记录起点到终点的直接步行代价
func (w *WalkTables) AddOriginToDestination(link WalkingLink) {
	w.originToDest[ODPair{OriginID: link.FromID, DestinationID: link.ToID}] = link
}

// FromOrigin 起点可步行到达的所有车站
func (w *WalkTables) FromOrigin(originID int32) []WalkingLink {
	return w.originToStop[originID]
}

// ToDestination 可步行到达终点的所有车站
func (w *WalkTables) ToDestination(destinationID int32) []WalkingLink {
	return w.stopToDest[destinationID]
}

// Direct 起点到终点的直接步行代价
func (w *WalkTables) Direct(originID, destinationID int32) (WalkingLink, bool) {
	link, ok := w.originToDest[ODPair{OriginID: originID, DestinationID: destinationID}]
	return link, ok
}

// CandidateStopPair 对一次起终点查询值得考虑的上下车站组合
type CandidateStopPair struct {
	PickUpID        int32
	DropOffID       int32
	DistWalkPickUp  float64 // 米
	DistWalkDropOff float64 // 米
	TimeWalkPickUp  int     // 秒
	TimeWalkDropOff int     // 秒
}

// Itinerary 一条完整的出行方案（纯步行或 步行+公交+步行）
// 纯步行方案的StartTime/EndTime与查询时刻相关，在选择时通过Window解析
type Itinerary struct {
	OriginID      int32
	DestinationID int32
	BusUsed       bool
	NumBuses      int
	TripID        string
	PickUpStopID  int32
	DropOffStopID int32
	BusStartTime  int // 上车时刻（当日秒数）
	BusEndTime    int // 下车时刻（当日秒数）

	WalkToStartTime int     // 步行至上车站时长（秒）
	WalkToDestTime  int     // 下车站步行至终点时长（秒）
	WalkToStartDist float64 // 米
	WalkToDestDist  float64 // 米

	TotalWalk     float64 // 总步行距离（米），只含上下车两段，不含换乘步行
	TotalWalkTime int     // 总步行时长（秒），口径同TotalWalk
	TotalTime     int     // 总出行时长（秒）

	StartTime int // 最晚出发时刻，公交方案=上车时刻-步行时长
	EndTime   int // 最早到达时刻，公交方案=下车时刻+步行时长

	Feasible bool
}

// Window 出行方案的实际时间窗
// 纯步行方案相对查询时刻解析，公交方案时刻为时刻表绝对时刻
func (it Itinerary) Window(queryTime int) (start, end int) {
	if !it.BusUsed {
		return queryTime, queryTime + it.TotalTime
	}
	return it.StartTime, it.EndTime
}

// Preference 路线选择偏好
type Preference string

const (
	PreferenceMinTime Preference = "min_time"
	PreferenceMinWalk Preference = "min_walk"
)

// Valid 是否为已知偏好
func (p Preference) Valid() bool {
	return p == PreferenceMinTime || p == PreferenceMinWalk
}

// PreferenceResult 按偏好选出的唯一最优方案及其阻抗得分
type PreferenceResult struct {
	Itinerary

	QueryTime  int
	Preference Preference

	TotalTimeScore float64
	WalkingScore   float64
}
