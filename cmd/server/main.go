package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"structspawn.ai/internal/logging"
	persistlog "structspawn.ai/internal/persistence/log"
	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/protocol"
	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/tuning"
	"structspawn.ai/internal/sim/world"
	"structspawn.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: tuning world_id)")
		seed       = flag.Int64("seed", 0, "world seed (default: tuning seed)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
		resume     = flag.Bool("resume", true, "load the latest snapshot of the world on start")
		logLevel   = flag.String("log_level", "", "log level override")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil && os.IsNotExist(tuneErr) {
		tune, tuneErr = tuning.Defaults(), nil
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *logLevel != "" {
		tune.Log.Level = *logLevel
	}

	logger := logging.New(os.Stdout, tune.Log.Level, tune.Log.Console).With().Str("app", "server").Logger()
	if tuneErr != nil {
		logger.Fatal().Err(tuneErr).Str("path", tp).Msg("load tuning")
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalogs")
	}
	logger.Info().
		Int("templates", len(cats.Templates.ByID)).
		Int("categories", len(cats.Templates.ByCategory)).
		Str("templates_digest", cats.Templates.Digest).
		Msg("catalogs loaded")

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index backend")
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Warn().Err(err).Msg("index backend: upsert catalogs")
		}
	}

	w, err := world.New(world.WorldConfig{
		ID:             tune.WorldID,
		TickRateHz:     tune.TickRateHz,
		Seed:           tune.Seed,
		BoundaryR:      tune.BoundaryR,
		Policy:         tune.Spawn.Policy,
		MaxPending:     tune.Spawn.MaxPending,
		ScheduleBuffer: tune.Spawn.ScheduleBuffer,
		MaxDepth:       tune.Spawn.MaxDepth,

		SnapshotEveryTicks: tune.SnapshotEveryTicks,
	}, cats, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}
	if *resume {
		p, err := resumeFromLatest(w, worldDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("resume from snapshot")
		}
		if p != "" {
			logger.Info().Str("path", p).Uint64("tick", w.CurrentTick()).Msg("resumed from snapshot")
		}
	}

	spawnLog := persistlog.NewSpawnLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer spawnLog.Close()
	defer auditLog.Close()
	w.SetSpawnLogger(multiSpawnLogger{a: spawnLog, b: nilSafeSpawn(idx)})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: nilSafeAudit(idx)})

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("compile schemas")
	}

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		writeSnapshots(ctx, worldDir, snapCh, logger.With().Str("component", "snapshot").Logger())
	}()
	defer func() { <-snapDone }()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("world stopped")
		}
		if err := w.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing world")
		}
	}()
	defer func() { <-runDone }()

	mux := newMux(w, idx, muxOptions{
		Admin: envBool("SS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		Pprof: envBool("SS_ENABLE_PPROF_HTTP", false),
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, validator, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().
		Str("addr", *addr).
		Str("world", tune.WorldID).
		Int64("seed", tune.Seed).
		Int("tick_rate_hz", tune.TickRateHz).
		Str("policy", tune.Spawn.Policy.String()).
		Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
