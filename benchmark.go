package main

import (
	"flag"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/config"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/walkmatrix"
)

var (
	benchmarkCount = flag.Int("benchmark.count", 1000, "the random best-route query count for benchmark")
	benchmarkSeed  = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU   = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

type benchmarkQuery struct {
	OriginID      int32
	DestinationID int32
	QueryTime     int
}

func runBenchmark(eng *engine.Engine, exp *config.Experiment, origins, destinations []walkmatrix.Point) error {
	dayStart, err := engine.ParseClock(exp.DayStart)
	if err != nil {
		return fmt.Errorf("day_start: %w", err)
	}
	dayEnd, err := engine.ParseClock(exp.DayEnd)
	if err != nil {
		return fmt.Errorf("day_end: %w", err)
	}
	log.Logger.SetLevel(logrus.WarnLevel)
	// 设置随机种子
	e := rand.New(rand.NewSource(*benchmarkSeed))
	// 随机生成benchmarkCount个查询，起终点和时刻都是随机的
	queries := make([]benchmarkQuery, *benchmarkCount)
	for i := 0; i < *benchmarkCount; i++ {
		queries[i] = benchmarkQuery{
			OriginID:      origins[e.Intn(len(origins))].ID,
			DestinationID: destinations[e.Intn(len(destinations))].ID,
			QueryTime:     dayStart + e.Intn(dayEnd-dayStart+1),
		}
	}

	// 开始benchmark
	start := time.Now()
	var wg sync.WaitGroup
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, q := range queries {
			result, err := eng.BestRoute(q.OriginID, q.DestinationID, q.QueryTime,
				engine.PreferenceMinTime, exp.Beta, exp.WindowSeconds)
			if err != nil {
				log.Error("benchmark failed, err:", err)
			}
			if result != nil {
				success.Add(1)
			}
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(*benchmarkCount)
		for _, q := range queries {
			go func(q benchmarkQuery) {
				defer wg.Done()
				result, err := eng.BestRoute(q.OriginID, q.DestinationID, q.QueryTime,
					engine.PreferenceMinTime, exp.Beta, exp.WindowSeconds)
				if err != nil {
					log.Error("benchmark failed, err:", err)
				}
				if result != nil {
					success.Add(1)
				}
			}(q)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(*benchmarkCount), "\n",
		"success:", success.Load(), "\n",
	)
	return nil
}
