package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"structspawn.ai/internal/persistence/indexdb"
	"structspawn.ai/internal/sim/world"
)

type muxOptions struct {
	Admin bool
	Pprof bool
}

func newMux(w *world.World, idx *indexdb.SQLiteIndex, opts muxOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))

	if opts.Admin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
				Index   *indexdb.Stats     `json:"index,omitempty"`
			}{
				WorldID: w.ID(),
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			if idx != nil {
				st := idx.Stats()
				resp.Index = &st
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if r.Method != http.MethodPost {
				http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			tick, err := w.RequestSnapshot(ctx)
			if err != nil {
				code := http.StatusInternalServerError
				if errors.Is(err, world.ErrSnapshotBusy) || errors.Is(err, context.DeadlineExceeded) {
					code = http.StatusServiceUnavailable
				}
				http.Error(rw, err.Error(), code)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})
		mux.HandleFunc("/admin/v1/spawns", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if idx == nil {
				http.Error(rw, "index disabled", http.StatusServiceUnavailable)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := idx.RecentSpawns(r.Context(), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			counts, err := idx.OutcomeCounts(r.Context())
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"outcomes": counts, "recent": rows})
		})
	}
	if opts.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		id := w.ID()
		m := w.Metrics()
		tick := w.CurrentTick()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP structspawn_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE structspawn_world_tick gauge\n")
		fmt.Fprintf(rw, "structspawn_world_tick{world=%q} %d\n", id, tick)

		fmt.Fprintf(rw, "# HELP structspawn_spawn_pending Pending spawn requests.\n")
		fmt.Fprintf(rw, "# TYPE structspawn_spawn_pending gauge\n")
		fmt.Fprintf(rw, "structspawn_spawn_pending{world=%q} %d\n", id, m.Pending)

		fmt.Fprintf(rw, "# HELP structspawn_spawn_outcomes_total Non-idle spawn steps by outcome.\n")
		fmt.Fprintf(rw, "# TYPE structspawn_spawn_outcomes_total counter\n")
		fmt.Fprintf(rw, "structspawn_spawn_outcomes_total{world=%q,outcome=%q} %d\n", id, "blocked", m.Blocked)
		fmt.Fprintf(rw, "structspawn_spawn_outcomes_total{world=%q,outcome=%q} %d\n", id, "committed", m.Committed)
		fmt.Fprintf(rw, "structspawn_spawn_outcomes_total{world=%q,outcome=%q} %d\n", id, "exhausted", m.Exhausted)
		fmt.Fprintf(rw, "structspawn_spawn_outcomes_total{world=%q,outcome=%q} %d\n", id, "dropped", m.Dropped)

		fmt.Fprintf(rw, "# HELP structspawn_world_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE structspawn_world_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "structspawn_world_loaded_chunks{world=%q} %d\n", id, m.LoadedChunks)

		fmt.Fprintf(rw, "# HELP structspawn_world_queue_depth Schedule channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE structspawn_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "structspawn_world_queue_depth{world=%q} %d\n", id, m.QueueDepth)

		fmt.Fprintf(rw, "# HELP structspawn_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE structspawn_world_step_ms gauge\n")
		fmt.Fprintf(rw, "structspawn_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP structspawn_index_queue_depth Index writer queue depth.\n")
			fmt.Fprintf(rw, "# TYPE structspawn_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "structspawn_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP structspawn_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE structspawn_index_dropped_total counter\n")
			fmt.Fprintf(rw, "structspawn_index_dropped_total{kind=%q} %d\n", "spawn", st.DropSpawnTotal)
			fmt.Fprintf(rw, "structspawn_index_dropped_total{kind=%q} %d\n", "audit", st.DropAuditTotal)
		}
	}
}
