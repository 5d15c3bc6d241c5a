package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
)

// 结果表文件名
const (
	ITINERARIES_FILE   = "itineraries.csv"
	BEST_ROUTES_FILE   = "best_routes.csv"
	ACCESSIBILITY_FILE = "accessibility.csv"
)

func writeBatchOutput(dir string, out *batchOutput) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeItineraries(filepath.Join(dir, ITINERARIES_FILE), out.Pool); err != nil {
		return err
	}
	if err := writeBestRoutes(filepath.Join(dir, BEST_ROUTES_FILE), out.BestRoutes); err != nil {
		return err
	}
	return writeAccessibility(filepath.Join(dir, ACCESSIBILITY_FILE), out.Scores)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// 公交方案时刻为时刻表绝对时刻，纯步行方案相对查询时刻，start/end留空
func writeItineraries(path string, pool []engine.Itinerary) error {
	header := []string{
		"origin_id", "destination_id", "bus_used", "num_buses", "trip_id",
		"start_stop_id", "end_stop_id", "bus_start_time", "bus_end_time",
		"walk_to_start_time", "walk_to_destination_time",
		"walk_to_start", "walk_to_destination",
		"total_walk", "total_walk_time", "total_time",
		"start_time", "end_time", "is_feasible",
	}
	rows := make([][]string, 0, len(pool))
	for _, it := range pool {
		row := []string{
			strconv.FormatInt(int64(it.OriginID), 10),
			strconv.FormatInt(int64(it.DestinationID), 10),
			formatBool(it.BusUsed),
			strconv.Itoa(it.NumBuses),
			it.TripID,
			"", "", "", "",
			strconv.Itoa(it.WalkToStartTime),
			strconv.Itoa(it.WalkToDestTime),
			strconv.FormatFloat(it.WalkToStartDist, 'f', 1, 64),
			strconv.FormatFloat(it.WalkToDestDist, 'f', 1, 64),
			strconv.FormatFloat(it.TotalWalk, 'f', 1, 64),
			strconv.Itoa(it.TotalWalkTime),
			strconv.Itoa(it.TotalTime),
			"", "",
			formatBool(it.Feasible),
		}
		if it.BusUsed {
			row[5] = strconv.FormatInt(int64(it.PickUpStopID), 10)
			row[6] = strconv.FormatInt(int64(it.DropOffStopID), 10)
			row[7] = engine.FormatClock(it.BusStartTime)
			row[8] = engine.FormatClock(it.BusEndTime)
			row[16] = engine.FormatClock(it.StartTime)
			row[17] = engine.FormatClock(it.EndTime)
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

func writeBestRoutes(path string, results []engine.PreferenceResult) error {
	header := []string{
		"origin_id", "destination_id", "query_time", "preference",
		"bus_used", "num_buses", "trip_id", "bus_start_time", "bus_end_time",
		"total_walk", "total_walk_time", "total_time",
		"start_time", "end_time", "total_time_score", "walking_score",
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{
			strconv.FormatInt(int64(r.OriginID), 10),
			strconv.FormatInt(int64(r.DestinationID), 10),
			engine.FormatClock(r.QueryTime),
			string(r.Preference),
			formatBool(r.BusUsed),
			strconv.Itoa(r.NumBuses),
			r.TripID,
			"", "",
			strconv.FormatFloat(r.TotalWalk, 'f', 1, 64),
			strconv.Itoa(r.TotalWalkTime),
			strconv.Itoa(r.TotalTime),
			engine.FormatClock(r.StartTime),
			engine.FormatClock(r.EndTime),
			strconv.FormatFloat(r.TotalTimeScore, 'f', 6, 64),
			strconv.FormatFloat(r.WalkingScore, 'f', 6, 64),
		}
		if r.BusUsed {
			row[7] = engine.FormatClock(r.BusStartTime)
			row[8] = engine.FormatClock(r.BusEndTime)
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

func writeAccessibility(path string, scores []engine.AccessibilityScore) error {
	header := []string{"origin_id", "accessibility_score", "reachable", "total"}
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			strconv.FormatInt(int64(s.OriginID), 10),
			strconv.FormatFloat(s.Score, 'f', 4, 64),
			strconv.Itoa(s.Reachable),
			strconv.Itoa(s.Total),
		})
	}
	return writeCSV(path, header, rows)
}
