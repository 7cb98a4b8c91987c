package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"proxy-rotator/pkg/rotator/api"
	"proxy-rotator/pkg/rotator/config"
	"proxy-rotator/pkg/rotator/core"
	"proxy-rotator/pkg/rotator/logger"
	"proxy-rotator/pkg/rotator/metrics"
	"proxy-rotator/pkg/rotator/store"
	"proxy-rotator/pkg/rotator/supply"
)

var (
	configPath = flag.String("configPath", "config.yaml", "config file path")
	name       = flag.String("name", "", "instance name, random when empty")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	instance := *name
	if instance == "" {
		instance = "rotator-" + uuid.New().String()[:8]
	}

	level := logger.InfoLevel
	logFile := fmt.Sprintf(".logs/%s.log", instance)
	if cfg.Log != nil {
		level = logger.ParseLevel(cfg.Log.Level)
		if cfg.Log.File != "" {
			logFile = cfg.Log.File
		}
	}
	logger.ReplaceDefault(logger.NewWithLogFile(level, logFile))
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Printf("sync logger error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rotatorCfg := cfg.Rotator
	if rotatorCfg == nil {
		rotatorCfg = &core.Config{}
	}
	rotatorCfg.Recorder = metrics.NewRecorder()

	rot, err := core.New(rotatorCfg)
	if err != nil {
		logger.Fatalf("build rotator: %v", err)
	}
	for _, ep := range cfg.Endpoints {
		rot.AddEndpoint(ep)
	}

	// 持久化：启动恢复 + 周期快照
	if st := openStore(cfg); st != nil {
		defer st.Close()
		snapshot, err := st.Load(ctx)
		if err != nil {
			logger.Errorf("load snapshot: %v", err)
		} else if snapshot != nil {
			store.Restore(rot.Pool(), snapshot)
			logger.Infof("restored %d endpoints from snapshot", len(snapshot.Endpoints))
		}
		interval := time.Minute
		if cfg.Storage != nil && cfg.Storage.SnapshotInterval > 0 {
			interval = cfg.Storage.SnapshotInterval
		}
		go store.RunSnapshots(ctx, st, rot.Pool(), interval)
	}

	// etcd endpoint 供给
	if cfg.Etcd != nil {
		cli, err := supply.NewClient(cfg.Etcd)
		if err != nil {
			logger.Fatalf("etcd client: %v", err)
		}
		defer cli.Close()
		watcher := supply.NewWatcher(cli, cfg.Etcd.Prefix, rot.Pool())
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorf("supply watcher: %v", err)
			}
		}()
	}

	if cfg.Metrics != nil && cfg.Metrics.Addr != "" {
		go metrics.Serve(cfg.Metrics.Addr)
	}

	apiAddr := "localhost:23380"
	if cfg.API != nil && cfg.API.Addr != "" {
		apiAddr = cfg.API.Addr
	}
	server := api.NewServer(rot, apiAddr)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("api server: %v", err)
		}
	}()

	logger.Infof("%s started, strategy=%s", instance, rot.Strategy().Name())
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("api shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) store.Store {
	if cfg.Storage == nil {
		return nil
	}
	switch cfg.Storage.Type {
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatalf("open sqlite store: %v", err)
		}
		return st
	case "redis":
		if cfg.Redis == nil {
			logger.Fatalf("redis store requires a redis config section")
		}
		st, err := store.NewRedisStore(cfg.Redis.Url)
		if err != nil {
			logger.Fatalf("open redis store: %v", err)
		}
		return st
	case "":
		return nil
	default:
		logger.Fatalf("unknown storage type %q", cfg.Storage.Type)
		return nil
	}
}
