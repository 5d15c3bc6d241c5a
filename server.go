package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/config"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/walkmatrix"
)

// APIServer 查询接口
type APIServer struct {
	engine       *engine.Engine
	exp          *config.Experiment
	origins      []walkmatrix.Point
	destinations []walkmatrix.Point
	http         *http.Server

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewAPIServer(
	addr string, eng *engine.Engine, exp *config.Experiment,
	origins, destinations []walkmatrix.Point,
) *APIServer {
	s := &APIServer{
		engine:       eng,
		exp:          exp,
		origins:      origins,
		destinations: destinations,
		ok:           true,
		cond:         sync.NewCond(&sync.Mutex{}),
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := r.Group("/api/v1")
	{
		api.GET("/route/best", s.handleBestRoute)
		api.GET("/accessibility", s.handleAccessibility)
	}
	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *APIServer) ListenAndServe() error {
	log.Infof("api server listening at %v", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *APIServer) Close() {
	s.http.Shutdown(context.Background())
}

// Suspend 暂停查询服务，已到达的请求阻塞直到Resume
func (s *APIServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// Resume 恢复查询服务
func (s *APIServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

func (s *APIServer) waitReady() {
	// 暂停-恢复机制
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()
}

func (s *APIServer) handleBestRoute(c *gin.Context) {
	s.waitReady()
	originID, err := strconv.ParseInt(c.Query("origin"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid origin id"})
		return
	}
	destinationID, err := strconv.ParseInt(c.Query("destination"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid destination id"})
		return
	}
	queryTime, err := engine.ParseClock(c.DefaultQuery("time", "08:00:00"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preference := engine.Preference(c.DefaultQuery("preference", string(engine.PreferenceMinTime)))
	beta := s.exp.Beta
	if v := c.Query("beta"); v != "" {
		if beta, err = strconv.ParseFloat(v, 64); err != nil || beta <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid beta"})
			return
		}
	}
	window := s.exp.WindowSeconds
	if v := c.Query("window"); v != "" {
		if window, err = strconv.Atoi(v); err != nil || window <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
	}

	result, err := s.engine.BestRoute(int32(originID), int32(destinationID), queryTime, preference, beta, window)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, engine.ErrInvalidPreference) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		// 时间窗内无可行方案
		c.JSON(http.StatusOK, gin.H{
			"origin":      originID,
			"destination": destinationID,
			"query_time":  engine.FormatClock(queryTime),
			"feasible":    false,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"origin":           result.OriginID,
		"destination":      result.DestinationID,
		"query_time":       engine.FormatClock(result.QueryTime),
		"preference":       result.Preference,
		"feasible":         true,
		"bus_used":         result.BusUsed,
		"num_buses":        result.NumBuses,
		"trip_id":          result.TripID,
		"start_time":       engine.FormatClock(result.StartTime),
		"end_time":         engine.FormatClock(result.EndTime),
		"total_time":       result.TotalTime,
		"total_walk":       result.TotalWalk,
		"total_walk_time":  result.TotalWalkTime,
		"total_time_score": result.TotalTimeScore,
		"walking_score":    result.WalkingScore,
	})
}

func (s *APIServer) handleAccessibility(c *gin.Context) {
	s.waitReady()
	pool := make([]engine.Itinerary, 0)
	for _, origin := range s.origins {
		for _, destination := range s.destinations {
			pairPool, err := s.engine.ItineraryPool(origin.ID, destination.ID)
			if err != nil {
				// 单个对失败只跳过，不中断整体汇总
				log.Errorf("pair %d->%d failed: %v", origin.ID, destination.ID, err)
				continue
			}
			pool = append(pool, pairPool...)
		}
	}
	originIDs := make([]int32, 0, len(s.origins))
	for _, origin := range s.origins {
		originIDs = append(originIDs, origin.ID)
	}
	destinationIDs := make([]int32, 0, len(s.destinations))
	for _, destination := range s.destinations {
		destinationIDs = append(destinationIDs, destination.ID)
	}
	scores := engine.AccessibilityScores(pool, originIDs, destinationIDs)
	if v := c.Query("origin"); v != "" {
		originID, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid origin id"})
			return
		}
		for _, score := range scores {
			if score.OriginID == int32(originID) {
				c.JSON(http.StatusOK, score)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown origin id"})
		return
	}
	c.JSON(http.StatusOK, scores)
}
