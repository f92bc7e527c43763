package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"planetgen/internal/editor"
	persistlog "planetgen/internal/persistence/log"
	"planetgen/internal/persistence/snapshot"
	"planetgen/internal/terrain/shape"
	"planetgen/internal/transport/ws"
	"planetgen/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/planet.yaml", "planet config path (defaults are used when missing)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite save/regen index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load the latest save if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := signalContext()
	defer cancel()

	saveDir := filepath.Join(*dataDir, "saves")
	_ = os.MkdirAll(saveDir, 0o755)

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSave(ctx, idx, saveDir)
	}

	var (
		gen    *shape.Generator
		colors snapshot.ColorsV1
		render snapshot.RenderV1
	)
	if snapshotToLoad != "" {
		snap, err := loadSave(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		gen, err = snapshot.Import(snap.Shape)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		colors, render = snap.Colors, snap.Render
		logger.Printf("resumed from snapshot=%s name=%q layers=%d", filepath.Base(snapshotToLoad), snap.Header.Name, gen.LayerCount())
	} else {
		cfg, err := tuning.Load(*configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Fatalf("load config: %v", err)
			}
			logger.Printf("config not found (%s); using defaults", *configPath)
			cfg = tuning.Defaults()
		}
		gen, err = cfg.Build()
		if err != nil {
			logger.Fatalf("build generator: %v", err)
		}
		colors = snapshot.ColorsV1{PlanetColor: cfg.PlanetColor}
		render = snapshot.RenderV1{PlanetResolution: cfg.Resolution, LightEulerRot: cfg.LightEulerRot}
	}

	regenLog := persistlog.NewRegenLogger(*dataDir)
	defer regenLog.Close()

	var sink editor.RegenSink = regenLog
	var saveIdx editor.SaveIndex
	if idx != nil {
		sink = multiRegenSink{a: regenLog, b: idx}
		saveIdx = idx
	}

	svc, err := editor.New(editor.Config{
		Generator: gen,
		Colors:    colors,
		Render:    render,
		SaveDir:   saveDir,
		Sink:      sink,
		Index:     saveIdx,
		Logger:    log.New(os.Stdout, "[editor] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("editor: %v", err)
	}
	go func() {
		if err := svc.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("editor stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(svc, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	mux := newMux(svc, wsSrv, idx, logger)

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

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newMux(svc ws.Editor, wsSrv *ws.Server, idx runtimeIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, regen, err := svc.State(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP planetgen_layers Current number of noise layers.\n")
		fmt.Fprintf(rw, "# TYPE planetgen_layers gauge\n")
		fmt.Fprintf(rw, "planetgen_layers %d\n", len(st.Layers))
		fmt.Fprintf(rw, "# HELP planetgen_regen_seq Regenerations since start.\n")
		fmt.Fprintf(rw, "# TYPE planetgen_regen_seq counter\n")
		fmt.Fprintf(rw, "planetgen_regen_seq %d\n", regen.Seq)
		fmt.Fprintf(rw, "# HELP planetgen_regen_ms Last regeneration duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE planetgen_regen_ms gauge\n")
		fmt.Fprintf(rw, "planetgen_regen_ms %d\n", regen.DurationMS)
		fmt.Fprintf(rw, "# HELP planetgen_elevation Elevation bounds of the last regeneration.\n")
		fmt.Fprintf(rw, "# TYPE planetgen_elevation gauge\n")
		fmt.Fprintf(rw, "planetgen_elevation{bound=%q} %.6f\n", "min", regen.Min)
		fmt.Fprintf(rw, "planetgen_elevation{bound=%q} %.6f\n", "max", regen.Max)
		fmt.Fprintf(rw, "# HELP planetgen_sessions Connected editor sessions.\n")
		fmt.Fprintf(rw, "# TYPE planetgen_sessions gauge\n")
		fmt.Fprintf(rw, "planetgen_sessions %d\n", wsSrv.Sessions())
		if idx != nil {
			is := idx.Stats()
			fmt.Fprintf(rw, "# HELP planetgen_index_queue_depth Index writer backlog depth.\n")
			fmt.Fprintf(rw, "# TYPE planetgen_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "planetgen_index_queue_depth %d\n", is.QueueDepth)
			fmt.Fprintf(rw, "# HELP planetgen_index_dropped_total Index rows dropped because the writer fell behind.\n")
			fmt.Fprintf(rw, "# TYPE planetgen_index_dropped_total counter\n")
			fmt.Fprintf(rw, "planetgen_index_dropped_total{kind=%q} %d\n", "regen", is.DropRegen)
			fmt.Fprintf(rw, "planetgen_index_dropped_total{kind=%q} %d\n", "save", is.DropSave)
		}
	})

	if envBool("PG_ENABLE_ADMIN_HTTP", true) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			st, regen, err := svc.State(ctx)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"state": st, "regen": regen})
		})
		mux.HandleFunc("/admin/v1/saves", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if idx == nil {
				http.Error(rw, "index disabled", http.StatusNotFound)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := idx.List(r.Context(), r.URL.Query().Get("name"), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rows)
		})
		mux.HandleFunc("/admin/v1/save", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			name := strings.TrimSpace(r.URL.Query().Get("name"))
			if name == "" {
				name = "admin"
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			path, err := svc.Save(ctx, name)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path})
		})
	} else {
		logger.Printf("admin endpoints disabled (PG_ENABLE_ADMIN_HTTP=false)")
	}

	if envBool("PG_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
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
