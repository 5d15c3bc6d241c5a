package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/walkmatrix"
)

const MONGO_TIMEOUT = 10 * time.Second

func newMongoClient(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), MONGO_TIMEOUT)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func mongoColl(client *mongo.Client, p *Path) *mongo.Collection {
	return client.Database(p.DB).Collection(p.Coll)
}

// mongo文档与csv列同名
type timetableDoc struct {
	TripID        string `bson:"trip_id"`
	StopID        int32  `bson:"stop_id"`
	StopSequence  int    `bson:"stop_sequence"`
	ArrivalTime   string `bson:"arrival_time"`
	DepartureTime string `bson:"departure_time"`
}

type pointDoc struct {
	ID  int32   `bson:"id"`
	Lat float64 `bson:"lat"`
	Lon float64 `bson:"lon"`
}

// loadTimetable 从csv文件或mongo集合读取时刻表
// 行格式: trip_id,stop_id,stop_sequence,arrival_time,departure_time
func loadTimetable(p *Path, client *mongo.Client) ([]engine.TimetableRow, error) {
	if p == nil {
		return nil, engine.ErrMissingScheduleData
	}
	if p.IsMongo() {
		return loadTimetableMongo(p, client)
	}
	f, err := os.Open(p.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrMissingScheduleData, p.File)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read timetable %s: %w", p.File, err)
	}
	rows := make([]engine.TimetableRow, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		if len(record) != 5 {
			return nil, fmt.Errorf("timetable %s line %d: expect 5 columns, got %d", p.File, i+1, len(record))
		}
		stopID, err := strconv.ParseInt(record[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("timetable %s line %d: %w", p.File, i+1, err)
		}
		seq, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("timetable %s line %d: %w", p.File, i+1, err)
		}
		arrival, err := engine.ParseClock(record[3])
		if err != nil {
			return nil, fmt.Errorf("timetable %s line %d: %w", p.File, i+1, err)
		}
		departure, err := engine.ParseClock(record[4])
		if err != nil {
			return nil, fmt.Errorf("timetable %s line %d: %w", p.File, i+1, err)
		}
		rows = append(rows, engine.TimetableRow{
			TripID:        record[0],
			StopID:        int32(stopID),
			StopSequence:  seq,
			ArrivalTime:   arrival,
			DepartureTime: departure,
		})
	}
	return rows, nil
}

func loadTimetableMongo(p *Path, client *mongo.Client) ([]engine.TimetableRow, error) {
	ctx, cancel := context.WithTimeout(context.Background(), MONGO_TIMEOUT)
	defer cancel()
	cur, err := mongoColl(client, p).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrMissingScheduleData, p, err)
	}
	defer cur.Close(ctx)
	rows := make([]engine.TimetableRow, 0)
	for cur.Next(ctx) {
		var doc timetableDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode timetable doc: %w", err)
		}
		arrival, err := engine.ParseClock(doc.ArrivalTime)
		if err != nil {
			return nil, fmt.Errorf("timetable doc trip %s stop %d: %w", doc.TripID, doc.StopID, err)
		}
		departure, err := engine.ParseClock(doc.DepartureTime)
		if err != nil {
			return nil, fmt.Errorf("timetable doc trip %s stop %d: %w", doc.TripID, doc.StopID, err)
		}
		rows = append(rows, engine.TimetableRow{
			TripID:        doc.TripID,
			StopID:        doc.StopID,
			StopSequence:  doc.StopSequence,
			ArrivalTime:   arrival,
			DepartureTime: departure,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// loadPoints 读取起点/终点/车站点位
// 行格式: id,lat,lon
func loadPoints(p *Path, client *mongo.Client) ([]walkmatrix.Point, error) {
	if p == nil {
		return nil, fmt.Errorf("missing point data source")
	}
	if p.IsMongo() {
		ctx, cancel := context.WithTimeout(context.Background(), MONGO_TIMEOUT)
		defer cancel()
		cur, err := mongoColl(client, p).Find(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("find points %s: %w", p, err)
		}
		defer cur.Close(ctx)
		points := make([]walkmatrix.Point, 0)
		for cur.Next(ctx) {
			var doc pointDoc
			if err := cur.Decode(&doc); err != nil {
				return nil, fmt.Errorf("decode point doc: %w", err)
			}
			points = append(points, walkmatrix.Point{ID: doc.ID, Lat: doc.Lat, Lon: doc.Lon})
		}
		return points, cur.Err()
	}
	f, err := os.Open(p.File)
	if err != nil {
		return nil, fmt.Errorf("open points %s: %w", p.File, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read points %s: %w", p.File, err)
	}
	points := make([]walkmatrix.Point, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("points %s line %d: expect id,lat,lon", p.File, i+1)
		}
		id, err := strconv.ParseInt(record[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("points %s line %d: %w", p.File, i+1, err)
		}
		lat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("points %s line %d: %w", p.File, i+1, err)
		}
		lon, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("points %s line %d: %w", p.File, i+1, err)
		}
		points = append(points, walkmatrix.Point{ID: int32(id), Lat: lat, Lon: lon})
	}
	return points, nil
}

// 行程索引缓存blob
type scheduleCacheBlob struct {
	Source string                `bson:"source"`
	Legs   []engine.ScheduledLeg `bson:"legs"`
}

// loadScheduleWithCache 有缓存且不强制覆盖时直接读缓存，否则构建并写缓存
// cacheDir为空时禁用缓存
func loadScheduleWithCache(
	cacheDir string, src *Path, overwrite bool,
	build func() (*engine.ScheduleIndex, error),
) (*engine.ScheduleIndex, error) {
	if src == nil {
		return nil, engine.ErrMissingScheduleData
	}
	if cacheDir == "" {
		return build()
	}
	cachePath := filepath.Join(cacheDir, src.CacheKey())
	if !overwrite {
		if data, err := os.ReadFile(cachePath); err == nil {
			var blob scheduleCacheBlob
			if err := bson.Unmarshal(data, &blob); err == nil && blob.Source == src.String() {
				log.Infof("schedule index loaded from cache %s", cachePath)
				return engine.RestoreScheduleIndex(blob.Legs), nil
			}
			log.Warnf("ignoring unreadable or stale schedule cache %s", cachePath)
		}
	}
	idx, err := build()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	data, err := bson.Marshal(scheduleCacheBlob{Source: src.String(), Legs: idx.AllLegs()})
	if err != nil {
		return nil, fmt.Errorf("marshal schedule cache: %w", err)
	}
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write schedule cache: %w", err)
	}
	log.Infof("schedule index cached to %s", cachePath)
	return idx, nil
}
