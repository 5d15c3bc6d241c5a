package main

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/config"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/walkmatrix"
)

func hms(h, m, s int) int {
	return h*3600 + m*60 + s
}

// 起点1/3 -> 车站10/20 -> 终点2，仅起点1有可乘班次
func fixtureEngine(t *testing.T) (*engine.Engine, []walkmatrix.Point, []walkmatrix.Point) {
	idx, err := engine.BuildScheduleIndex([]engine.TimetableRow{
		{TripID: "T1", StopID: 10, StopSequence: 1, ArrivalTime: hms(7, 0, 0), DepartureTime: hms(7, 0, 0)},
		{TripID: "T1", StopID: 20, StopSequence: 2, ArrivalTime: hms(7, 10, 0), DepartureTime: hms(7, 10, 0)},
		{TripID: "T2", StopID: 10, StopSequence: 1, ArrivalTime: hms(8, 0, 0), DepartureTime: hms(8, 0, 0)},
		{TripID: "T2", StopID: 20, StopSequence: 2, ArrivalTime: hms(8, 10, 0), DepartureTime: hms(8, 10, 0)},
	}, engine.ScheduleOptions{})
	assert.NoError(t, err)

	walks := engine.NewWalkTables()
	walks.AddOriginToStop(engine.WalkingLink{FromID: 1, ToID: 10, Distance: 400, Time: 300})
	walks.AddStopToDestination(engine.WalkingLink{FromID: 20, ToID: 2, Distance: 250, Time: 200})
	walks.AddOriginToDestination(engine.WalkingLink{FromID: 1, ToID: 2, Distance: 1500, Time: 1200})
	// 起点3只能步行
	walks.AddOriginToDestination(engine.WalkingLink{FromID: 3, ToID: 2, Distance: 900, Time: 700})

	origins := []walkmatrix.Point{{ID: 1}, {ID: 3}}
	destinations := []walkmatrix.Point{{ID: 2}}
	return engine.New(idx, walks), origins, destinations
}

func fixtureExperiment() *config.Experiment {
	exp := config.Default()
	exp.DayStart = "06:00:00"
	exp.DayEnd = "09:00:00"
	exp.TimeIncrement = 1800
	exp.Preferences = []string{"min_time", "min_walk"}
	return exp
}

func TestRunBatch(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	out, err := runBatch(eng, fixtureExperiment(), origins, destinations, 4)
	assert.NoError(t, err)
	assert.Empty(t, out.PairErrors)

	// 起点1：2条公交方案+1条步行；起点3：仅步行
	assert.Len(t, out.Pool, 4)
	assert.NotEmpty(t, out.BestRoutes)

	assert.Len(t, out.Scores, 2)
	assert.Equal(t, int32(1), out.Scores[0].OriginID)
	assert.Equal(t, 1.0, out.Scores[0].Score)
	assert.Equal(t, int32(3), out.Scores[1].OriginID)
	assert.Equal(t, 1.0, out.Scores[1].Score)
}

// 重复运行输出一致
func TestRunBatchDeterministic(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	exp := fixtureExperiment()
	first, err := runBatch(eng, exp, origins, destinations, 4)
	assert.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := runBatch(eng, exp, origins, destinations, 2)
		assert.NoError(t, err)
		assert.Equal(t, first.Pool, again.Pool)
		assert.Equal(t, first.BestRoutes, again.BestRoutes)
		assert.Equal(t, first.Scores, again.Scores)
	}
}

func TestRunBatchPairError(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	// 缺少直接步行数据的起点：该对失败但不中断批处理
	origins = append(origins, walkmatrix.Point{ID: 99})
	out, err := runBatch(eng, fixtureExperiment(), origins, destinations, 2)
	assert.NoError(t, err)
	assert.Len(t, out.PairErrors, 1)
	pairErr := out.PairErrors[engine.ODPair{OriginID: 99, DestinationID: 2}]
	assert.ErrorIs(t, pairErr, engine.ErrMissingWalkingData)
	assert.Len(t, out.Scores, 3)
}

func TestWriteBatchOutput(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	out, err := runBatch(eng, fixtureExperiment(), origins, destinations, 2)
	assert.NoError(t, err)

	dir := t.TempDir()
	assert.NoError(t, writeBatchOutput(dir, out))

	records := readCSVFile(t, filepath.Join(dir, ITINERARIES_FILE))
	assert.Equal(t, "origin_id", records[0][0])
	assert.Len(t, records, len(out.Pool)+1)
	// 公交行带时刻，步行行start/end留空
	for _, rec := range records[1:] {
		if rec[2] == "1" {
			assert.NotEmpty(t, rec[16])
			assert.NotEmpty(t, rec[17])
		} else {
			assert.Empty(t, rec[16])
			assert.Empty(t, rec[17])
		}
	}

	records = readCSVFile(t, filepath.Join(dir, BEST_ROUTES_FILE))
	assert.Len(t, records, len(out.BestRoutes)+1)

	records = readCSVFile(t, filepath.Join(dir, ACCESSIBILITY_FILE))
	assert.Len(t, records, 3)
	assert.Equal(t, []string{"origin_id", "accessibility_score", "reachable", "total"}, records[0])
	assert.Equal(t, "1.0000", records[1][1])
}

func readCSVFile(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)
	return records
}

func TestAPIServer(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	s := NewAPIServer("localhost:0", eng, fixtureExperiment(), origins, destinations)

	doGet := func(url string) (*httptest.ResponseRecorder, map[string]any) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		s.http.Handler.ServeHTTP(w, req)
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			body = nil
		}
		return w, body
	}

	w, body := doGet("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, body = doGet("/api/v1/route/best?origin=1&destination=2&time=06:30:00")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["feasible"])
	assert.Equal(t, true, body["bus_used"])
	assert.Equal(t, "T1", body["trip_id"])
	assert.Equal(t, "06:55:00", body["start_time"])
	assert.Equal(t, "07:13:20", body["end_time"])

	// 窗口内无可行方案：200但feasible=false
	w, body = doGet("/api/v1/route/best?origin=1&destination=2&time=22:00:00&window=60")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["feasible"])

	w, _ = doGet("/api/v1/route/best?origin=abc&destination=2")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doGet("/api/v1/route/best?origin=1&destination=2&preference=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doGet("/api/v1/route/best?origin=1&destination=999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doGet("/api/v1/route/best?origin=1&destination=2&beta=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = doGet("/api/v1/accessibility?origin=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, body["Score"])

	w, _ = doGet("/api/v1/accessibility?origin=12345")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunBenchmarkBadClock(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	exp := fixtureExperiment()
	exp.DayStart = "not-a-clock"
	err := runBenchmark(eng, exp, origins, destinations)
	assert.Error(t, err)

	exp = fixtureExperiment()
	exp.DayEnd = "26:99"
	err = runBenchmark(eng, exp, origins, destinations)
	assert.Error(t, err)
}

// 暂停期间请求阻塞，恢复后正常返回
func TestAPIServerSuspendResume(t *testing.T) {
	eng, origins, destinations := fixtureEngine(t)
	s := NewAPIServer("localhost:0", eng, fixtureExperiment(), origins, destinations)

	s.Suspend()
	done := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/route/best?origin=1&destination=2&time=06:30:00", nil)
		s.http.Handler.ServeHTTP(w, req)
		done <- w.Code
	}()
	select {
	case <-done:
		t.Fatal("request served while suspended")
	case <-time.After(100 * time.Millisecond):
	}

	s.Resume()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(time.Second):
		t.Fatal("request not released after resume")
	}
}

func TestNewPath(t *testing.T) {
	f := filepath.Join(t.TempDir(), "timetable.csv")
	assert.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	p, err := NewPath(f)
	assert.NoError(t, err)
	assert.False(t, p.IsMongo())
	assert.Equal(t, f, p.String())

	p, err = NewPath("buffalo.timetable")
	assert.NoError(t, err)
	assert.True(t, p.IsMongo())
	assert.Equal(t, "buffalo", p.DB)
	assert.Equal(t, "timetable", p.Coll)
}

func TestLoadTimetableCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timetable.csv")
	content := "trip_id,stop_id,stop_sequence,arrival_time,departure_time\n" +
		"T1,10,1,07:00:00,07:00:00\n" +
		"T1,20,2,07:10:00,07:11:00\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := NewPath(path)
	assert.NoError(t, err)
	rows, err := loadTimetable(p, nil)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, engine.TimetableRow{
		TripID: "T1", StopID: 10, StopSequence: 1,
		ArrivalTime: hms(7, 0, 0), DepartureTime: hms(7, 0, 0),
	}, rows[0])
	assert.Equal(t, hms(7, 11, 0), rows[1].DepartureTime)
}

func TestLoadScheduleWithCache(t *testing.T) {
	cacheDir := t.TempDir()
	srcFile := filepath.Join(t.TempDir(), "timetable.csv")
	assert.NoError(t, os.WriteFile(srcFile, []byte("x"), 0o644))
	src, err := NewPath(srcFile)
	assert.NoError(t, err)

	builds := 0
	build := func() (*engine.ScheduleIndex, error) {
		builds++
		return engine.BuildScheduleIndex([]engine.TimetableRow{
			{TripID: "T1", StopID: 10, StopSequence: 1, ArrivalTime: hms(7, 0, 0), DepartureTime: hms(7, 0, 0)},
			{TripID: "T1", StopID: 20, StopSequence: 2, ArrivalTime: hms(7, 10, 0), DepartureTime: hms(7, 10, 0)},
		}, engine.ScheduleOptions{})
	}

	idx, err := loadScheduleWithCache(cacheDir, src, false, build)
	assert.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, idx.Len())

	// 第二次命中缓存，不再构建
	cached, err := loadScheduleWithCache(cacheDir, src, false, build)
	assert.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Equal(t, idx.Legs(10, 20), cached.Legs(10, 20))

	// 强制覆盖时重新构建
	_, err = loadScheduleWithCache(cacheDir, src, true, build)
	assert.NoError(t, err)
	assert.Equal(t, 2, builds)

	// 无缓存目录时直接构建
	_, err = loadScheduleWithCache("", src, false, build)
	assert.NoError(t, err)
	assert.Equal(t, 3, builds)
}

// 未配置时刻表数据源时报错而不是崩溃
func TestLoadScheduleWithCacheNilSource(t *testing.T) {
	builds := 0
	build := func() (*engine.ScheduleIndex, error) {
		builds++
		return nil, nil
	}
	_, err := loadScheduleWithCache(t.TempDir(), nil, false, build)
	assert.ErrorIs(t, err, engine.ErrMissingScheduleData)
	_, err = loadScheduleWithCache("", nil, false, build)
	assert.ErrorIs(t, err, engine.ErrMissingScheduleData)
	assert.Zero(t, builds)
}

func TestLoadPointsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.csv")
	content := "id,lat,lon\n10,42.886,-78.878\n20,42.896,-78.868\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := NewPath(path)
	assert.NoError(t, err)
	points, err := loadPoints(p, nil)
	assert.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Equal(t, int32(10), points[0].ID)
	assert.InDelta(t, 42.886, points[0].Lat, 1e-9)
}
