package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"

	"landmass/internal/config"
	"landmass/internal/streamproto"
	"landmass/internal/telemetry"
	"landmass/internal/transport/ws"
	"landmass/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to landmass.yaml (built-in defaults when empty)")
		addr       = flag.String("addr", "", "viewer http listen address (overrides server.addr, \"-\" disables)")
		maxTicks   = flag.Int("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
		walk       = flag.String("walk", "0,0", "observer velocity \"vx,vy\" in units/s while no viewer drives it")
		tickLog    = flag.String("tick-log", "", "directory for compressed tick logs (overrides telemetry.tick_log_dir)")
		indexDB    = flag.String("index-db", "", "sqlite tick index path (overrides telemetry.index_db)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[landmass] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if s := strings.TrimSpace(*addr); s != "" {
		cfg.Server.Addr = s
	}
	if s := strings.TrimSpace(*tickLog); s != "" {
		cfg.Telemetry.TickLogDir = s
	}
	if s := strings.TrimSpace(*indexDB); s != "" {
		cfg.Telemetry.IndexDB = s
	}
	velocity, err := parseVec2(*walk)
	if err != nil {
		logger.Fatalf("-walk: %v", err)
	}

	store := world.NewChunkStore()
	var (
		sinks   telemetry.Multi
		viewers *ws.Server
		display world.Display = world.NopDisplay{}
	)
	if cfg.Server.Addr != "" && cfg.Server.Addr != "-" {
		viewers = ws.NewServer(store, ws.Options{
			Params:      worldParams(cfg),
			AllowRemote: cfg.Server.AllowRemote,
			Logger:      logger,
		})
		display = viewers
		sinks = append(sinks, viewers)
	}

	opts, err := cfg.WorldOptions(display, logger)
	if err != nil {
		logger.Fatalf("world options: %v", err)
	}
	opts.Store = store
	w := world.New(opts)

	if dir := cfg.Telemetry.TickLogDir; dir != "" {
		sinks = append(sinks, telemetry.NewTickLogger(dir))
		logger.Printf("Tick log: %s", dir)
	}
	var index *telemetry.SQLiteIndex
	if path := cfg.Telemetry.IndexDB; path != "" {
		idx, err := telemetry.OpenSQLite(path, logger)
		if err != nil {
			logger.Fatalf("open tick index: %v", err)
		}
		sinks = append(sinks, idx)
		index = idx
		logger.Printf("Tick index: %s", path)
	}

	var httpSrv *http.Server
	if viewers != nil {
		httpSrv = &http.Server{Addr: cfg.Server.Addr, Handler: viewers.Handler()}
		go func() {
			logger.Printf("Viewer endpoint: http://%s/v1/ws", cfg.Server.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("http: %v", err)
				closer.Close()
			}
		}()
	}

	loopOpts := tickLoopOptions{
		RateHz:   cfg.Server.TickRateHz,
		Velocity: velocity,
	}
	if index != nil {
		loopOpts.Index = index
	}
	loop := newTickLoop(w, viewers, sinks, logger, loopOpts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	closer.Bind(func() {
		cancel()
		<-done
		if httpSrv != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = httpSrv.Shutdown(sctx)
			scancel()
		}
		w.Close()
		if err := sinks.Close(); err != nil {
			logger.Printf("close telemetry: %v", err)
		}
		if index != nil && index.Dropped() > 0 {
			logger.Printf("Tick index dropped %s ticks", humanize.Comma(int64(index.Dropped())))
		}
		logger.Printf("Stopped after %d ticks", loop.Ticks())
	})

	go func() {
		loop.Run(ctx, *maxTicks)
		close(done)
		if ctx.Err() == nil {
			// -ticks reached; shut down as if interrupted.
			closer.Close()
		}
	}()

	logger.Printf("Streaming chunks (edge %v, view %v, workers %d, %v Hz)",
		cfg.ChunkEdge(), cfg.Chunk.MaxViewDistance, cfg.Chunk.Workers, cfg.Server.TickRateHz)
	closer.Hold()
}

func worldParams(cfg config.Config) streamproto.WorldParams {
	return streamproto.WorldParams{
		TickRateHz:      cfg.Server.TickRateHz,
		Resolution:      cfg.Chunk.Resolution,
		ChunkEdge:       cfg.ChunkEdge(),
		MaxViewDistance: cfg.Chunk.MaxViewDistance,
		DetailLevel:     cfg.Mesh.DetailLevel,
		HeightScale:     cfg.Mesh.HeightScale,
		Seed:            cfg.Noise.Seed,
	}
}

// parseVec2 parses "x,y".
func parseVec2(s string) (mgl32.Vec2, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return mgl32.Vec2{}, fmt.Errorf("want \"x,y\", got %q", s)
	}
	var v mgl32.Vec2
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mgl32.Vec2{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
