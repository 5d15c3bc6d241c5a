package engine

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Engine 路线枚举与选择引擎
// 行程索引与步行表构建后只读，方案池按起终点对惰性计算并缓存，
// 可被任意数量的worker并发查询
type Engine struct {
	index *ScheduleIndex
	walks *WalkTables

	pools *xsync.MapOf[ODPair, []Itinerary]
}

func New(index *ScheduleIndex, walks *WalkTables) *Engine {
	return &Engine{
		index: index,
		walks: walks,
		pools: xsync.NewMapOf[ODPair, []Itinerary](),
	}
}

// Index 行程索引
func (e *Engine) Index() *ScheduleIndex {
	return e.index
}

// ItineraryPool 一个起终点对的全天方案池（与查询时刻无关）
func (e *Engine) ItineraryPool(originID, destinationID int32) ([]Itinerary, error) {
	key := ODPair{OriginID: originID, DestinationID: destinationID}
	if pool, ok := e.pools.Load(key); ok {
		return pool, nil
	}
	pairs, err := GenerateCandidates(originID, destinationID, e.walks)
	if err != nil {
		return nil, err
	}
	log.Debugf("origin %d destination %d: %d candidate stop pairs", originID, destinationID, len(pairs))
	pool, err := ExpandItineraries(e.index, e.walks, pairs, originID, destinationID)
	if err != nil {
		return nil, err
	}
	e.pools.Store(key, pool)
	return pool, nil
}

// BestRoute 指定时刻与偏好下的最优方案
// 返回(nil, nil)表示时间窗内无可行方案
func (e *Engine) BestRoute(
	originID, destinationID int32, queryTime int,
	preference Preference, beta float64, windowSeconds int,
) (*PreferenceResult, error) {
	pool, err := e.ItineraryPool(originID, destinationID)
	if err != nil {
		return nil, err
	}
	return SelectPreferred(pool, originID, destinationID, SelectParams{
		QueryTime:     queryTime,
		WindowSeconds: windowSeconds,
		Beta:          beta,
		Preference:    preference,
	})
}
