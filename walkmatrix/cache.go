package walkmatrix

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
)

// 步行表缓存文件名，避免重复调用外部距离服务
const (
	ORIGINS_TO_STOPS_FILE      = "walking_origins_to_stops.csv"
	STOPS_TO_DESTINATIONS_FILE = "walking_stops_to_destinations.csv"
	ORIGINS_TO_DESTINATIONS    = "walking_origins_to_destinations.csv"
)

var cacheHeader = []string{"from_id", "to_id", "time", "distance"}

// SaveTables 把三张步行表写入实验目录
func SaveTables(dir string, tables *engine.WalkTables, origins, destinations, stops []Point) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	originLinks := make([]engine.WalkingLink, 0)
	for _, origin := range origins {
		originLinks = append(originLinks, tables.FromOrigin(origin.ID)...)
	}
	if err := writeLinks(filepath.Join(dir, ORIGINS_TO_STOPS_FILE), originLinks); err != nil {
		return err
	}
	destLinks := make([]engine.WalkingLink, 0)
	for _, destination := range destinations {
		destLinks = append(destLinks, tables.ToDestination(destination.ID)...)
	}
	if err := writeLinks(filepath.Join(dir, STOPS_TO_DESTINATIONS_FILE), destLinks); err != nil {
		return err
	}
	odLinks := make([]engine.WalkingLink, 0)
	for _, origin := range origins {
		for _, destination := range destinations {
			if link, ok := tables.Direct(origin.ID, destination.ID); ok {
				odLinks = append(odLinks, link)
			}
		}
	}
	return writeLinks(filepath.Join(dir, ORIGINS_TO_DESTINATIONS), odLinks)
}

// LoadTables 从实验目录读取缓存的步行表
// 任一文件缺失返回(nil, false, nil)，调用方应重新计算
func LoadTables(dir string) (*engine.WalkTables, bool, error) {
	paths := []string{
		filepath.Join(dir, ORIGINS_TO_STOPS_FILE),
		filepath.Join(dir, STOPS_TO_DESTINATIONS_FILE),
		filepath.Join(dir, ORIGINS_TO_DESTINATIONS),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, false, nil
		}
	}
	tables := engine.NewWalkTables()
	adders := []func(engine.WalkingLink){
		tables.AddOriginToStop,
		tables.AddStopToDestination,
		tables.AddOriginToDestination,
	}
	for i, p := range paths {
		links, err := readLinks(p)
		if err != nil {
			return nil, false, err
		}
		for _, link := range links {
			adders[i](link)
		}
	}
	log.Infof("walking tables loaded from cache at %s", dir)
	return tables, true, nil
}

func writeLinks(path string, links []engine.WalkingLink) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(cacheHeader); err != nil {
		return err
	}
	for _, link := range links {
		record := []string{
			strconv.FormatInt(int64(link.FromID), 10),
			strconv.FormatInt(int64(link.ToID), 10),
			strconv.Itoa(link.Time),
			strconv.FormatFloat(link.Distance, 'f', 1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readLinks(path string) ([]engine.WalkingLink, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	links := make([]engine.WalkingLink, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		if len(record) != 4 {
			return nil, fmt.Errorf("%s line %d: expect 4 columns, got %d", path, i+1, len(record))
		}
		fromID, err := strconv.ParseInt(record[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		toID, err := strconv.ParseInt(record[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		seconds, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		meters, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		links = append(links, engine.WalkingLink{
			FromID:   int32(fromID),
			ToID:     int32(toID),
			Time:     seconds,
			Distance: meters,
		})
	}
	return links, nil
}
