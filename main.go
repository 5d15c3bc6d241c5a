package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/config"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/walkmatrix"
)

var (
	// 配置信息
	mongoURI        = flag.String("mongo_uri", "", "mongo db uri")
	timetablePath   = flag.String("timetable", "", "timetable source [format: {fspath} or {db}.{col}]")
	stopsPath       = flag.String("stops", "", "bus stops source [format: {fspath} or {db}.{col}]")
	originsPath     = flag.String("origins", "", "origin points source [format: {fspath} or {db}.{col}]")
	destinationsLoc = flag.String("destinations", "", "destination points source [format: {fspath} or {db}.{col}]")
	experimentPath  = flag.String("experiment", "", "experiment yaml config (empty means defaults)")
	cacheDir        = flag.String("cache", "", "schedule index cache dir path (empty means disable cache)")
	walkCacheDir    = flag.String("walk-cache", "", "walking tables cache dir path (empty means disable cache)")
	overwriteCache  = flag.Bool("overwrite-cache", false, "rebuild caches even if present")
	outDir          = flag.String("out", "results", "batch output dir")
	workers         = flag.Int("workers", 6, "batch worker count")
	serve           = flag.Bool("serve", false, "run the query api server instead of the batch")
	listenAddr      = flag.String("listen", "localhost:52111", "api listening address")
	logLevel        = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "", "pprof listening address (empty means disable)")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	exp := config.Default()
	if *experimentPath != "" {
		var err error
		if exp, err = config.Load(*experimentPath); err != nil {
			log.Fatalf("invalid experiment config: %v", err)
		}
	}

	paths := map[string]*Path{}
	for name, raw := range map[string]string{
		"timetable":    *timetablePath,
		"stops":        *stopsPath,
		"origins":      *originsPath,
		"destinations": *destinationsLoc,
	} {
		p, err := NewPath(raw)
		if err != nil {
			log.Fatalf("invalid %s path: %v", name, err)
		}
		paths[name] = p
	}

	var client *mongo.Client
	for _, p := range paths {
		if p != nil && p.IsMongo() {
			var err error
			if client, err = newMongoClient(*mongoURI); err != nil {
				log.Fatalf("mongo source configured: %v", err)
			}
			defer client.Disconnect(context.Background())
			break
		}
	}

	stops, err := loadPoints(paths["stops"], client)
	if err != nil {
		log.Fatalf("failed to load stops: %v", err)
	}
	origins, err := loadPoints(paths["origins"], client)
	if err != nil {
		log.Fatalf("failed to load origins: %v", err)
	}
	destinations, err := loadPoints(paths["destinations"], client)
	if err != nil {
		log.Fatalf("failed to load destinations: %v", err)
	}

	// 步行距离解析全部在并行阶段之前完成
	provider := walkmatrix.NewManhattanProvider(exp.Provider.SpeedMPS)
	var walks *engine.WalkTables
	if *walkCacheDir != "" && !*overwriteCache {
		cached, ok, err := walkmatrix.LoadTables(*walkCacheDir)
		if err != nil {
			log.Fatalf("failed to load walking tables: %v", err)
		}
		if ok {
			walks = cached
		}
	}
	if walks == nil {
		if walks, err = walkmatrix.BuildTables(origins, destinations, stops, provider); err != nil {
			log.Fatalf("failed to build walking tables: %v", err)
		}
		if *walkCacheDir != "" {
			if err := walkmatrix.SaveTables(*walkCacheDir, walks, origins, destinations, stops); err != nil {
				log.Fatalf("failed to cache walking tables: %v", err)
			}
		}
	}

	index, err := loadScheduleWithCache(*cacheDir, paths["timetable"], *overwriteCache, func() (*engine.ScheduleIndex, error) {
		rows, err := loadTimetable(paths["timetable"], client)
		if err != nil {
			return nil, err
		}
		opts := engine.ScheduleOptions{
			EnableTransfers:     exp.EnableTransfers,
			MaxTransferWalkTime: exp.MaxTransferWalkTime,
			WalkSpeed:           exp.Provider.SpeedMPS,
		}
		if exp.EnableTransfers {
			stopWalks, err := walkmatrix.BuildStopMatrix(stops, provider)
			if err != nil {
				return nil, err
			}
			opts.StopWalks = stopWalks
		}
		return engine.BuildScheduleIndex(rows, opts)
	})
	if err != nil {
		log.Fatalf("failed to build schedule index: %v", err)
	}

	eng := engine.New(index, walks)

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		// 性能测试
		if err := runBenchmark(eng, exp, origins, destinations); err != nil {
			log.Fatalf("benchmark failed: %v", err)
		}
		return
	}

	if !*serve {
		start := time.Now()
		out, err := runBatch(eng, exp, origins, destinations, *workers)
		if err != nil {
			log.Fatalf("batch failed: %v", err)
		}
		if err := writeBatchOutput(*outDir, out); err != nil {
			log.Fatalf("failed to write batch output: %v", err)
		}
		log.Infof("batch finished in %v, output at %s", time.Since(start), *outDir)
		return
	}

	server := NewAPIServer(*listenAddr, eng, exp, origins, destinations)

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	// 监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // 强制结束
		}()
		server.Close()
		os.Exit(0)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	time.Sleep(1 * time.Second) // 延迟等待"优雅退出"
	log.Info("accessibility server closes")
}
