package main

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/config"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/walkmatrix"
)

// batchOutput 一次全量实验的结果表
type batchOutput struct {
	Pool       []engine.Itinerary
	BestRoutes []engine.PreferenceResult
	Scores     []engine.AccessibilityScore
	PairErrors map[engine.ODPair]error
}

// runBatch 对起点×终点的全组合计算全天方案池，并对每个
// (起终点对×查询时刻×偏好)做一次选择，最后汇总可达性
// 每个起终点对一个任务；单个对的失败只记录并跳过，不影响其他对
func runBatch(
	eng *engine.Engine, exp *config.Experiment,
	origins, destinations []walkmatrix.Point, workers int,
) (*batchOutput, error) {
	queryTimes, err := exp.QueryTimes()
	if err != nil {
		return nil, err
	}
	preferences := exp.PreferenceList()

	odPairs := make([]engine.ODPair, 0, len(origins)*len(destinations))
	for _, origin := range origins {
		for _, destination := range destinations {
			odPairs = append(odPairs, engine.ODPair{
				OriginID:      origin.ID,
				DestinationID: destination.ID,
			})
		}
	}
	log.Infof("batch: %d od pairs, %d query times, %d preferences, %d workers",
		len(odPairs), len(queryTimes), len(preferences), workers)

	pools := xsync.NewMapOf[engine.ODPair, []engine.Itinerary]()
	pairErrors := xsync.NewMapOf[engine.ODPair, error]()
	bestByPair := xsync.NewMapOf[engine.ODPair, []engine.PreferenceResult]()

	if workers <= 0 {
		workers = 1
	}
	tasks := make(chan engine.ODPair)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for pair := range tasks {
				if err := processPair(eng, pair, queryTimes, preferences, exp, pools, bestByPair); err != nil {
					log.Errorf("pair %d->%d failed: %v", pair.OriginID, pair.DestinationID, err)
					pairErrors.Store(pair, err)
				}
			}
		}()
	}
	for _, pair := range odPairs {
		tasks <- pair
	}
	close(tasks)
	wg.Wait()

	// 合并为平表，按输入顺序拼接保证输出确定
	out := &batchOutput{PairErrors: make(map[engine.ODPair]error)}
	for _, pair := range odPairs {
		if pool, ok := pools.Load(pair); ok {
			out.Pool = append(out.Pool, pool...)
		}
		if best, ok := bestByPair.Load(pair); ok {
			out.BestRoutes = append(out.BestRoutes, best...)
		}
		if err, ok := pairErrors.Load(pair); ok {
			out.PairErrors[pair] = err
		}
	}

	originIDs := make([]int32, 0, len(origins))
	for _, origin := range origins {
		originIDs = append(originIDs, origin.ID)
	}
	destinationIDs := make([]int32, 0, len(destinations))
	for _, destination := range destinations {
		destinationIDs = append(destinationIDs, destination.ID)
	}
	out.Scores = engine.AccessibilityScores(out.Pool, originIDs, destinationIDs)
	full, partial, none := engine.AccessibilityBuckets(out.Scores)
	log.Infof("accessibility: %d fully, %d partially, %d not accessible origins",
		len(full), len(partial), len(none))

	if len(out.PairErrors) > 0 {
		log.Warnf("batch finished with %d failed pairs of %d", len(out.PairErrors), len(odPairs))
	}
	return out, nil
}

func processPair(
	eng *engine.Engine, pair engine.ODPair,
	queryTimes []int, preferences []engine.Preference, exp *config.Experiment,
	pools *xsync.MapOf[engine.ODPair, []engine.Itinerary],
	bestByPair *xsync.MapOf[engine.ODPair, []engine.PreferenceResult],
) error {
	pool, err := eng.ItineraryPool(pair.OriginID, pair.DestinationID)
	if err != nil {
		return err
	}
	pools.Store(pair, pool)

	best := make([]engine.PreferenceResult, 0)
	for _, queryTime := range queryTimes {
		for _, preference := range preferences {
			result, err := engine.SelectPreferred(pool, pair.OriginID, pair.DestinationID, engine.SelectParams{
				QueryTime:     queryTime,
				WindowSeconds: exp.WindowSeconds,
				Beta:          exp.Beta,
				Preference:    preference,
			})
			if err != nil {
				return fmt.Errorf("select at %s: %w", engine.FormatClock(queryTime), err)
			}
			if result == nil {
				// 窗口内无可行方案，合法的空结果
				continue
			}
			best = append(best, *result)
		}
	}
	bestByPair.Store(pair, best)
	return nil
}
