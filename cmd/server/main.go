package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"paulette.land/internal/config"
	"paulette.land/internal/journal"
	"paulette.land/internal/registry"
	"paulette.land/internal/store"
	"paulette.land/internal/store/officedb"
	"paulette.land/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "", "path to paulette.yaml (optional)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "run on an in-memory store (state is lost on exit)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Addr = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = *dataDir
	}
	if *disableDB {
		cfg.DisableDB = true
	}

	var ref [32]byte
	if cfg.RegistryRef != "" {
		b, err := hex.DecodeString(cfg.RegistryRef)
		if err != nil || len(b) != 32 {
			logger.Fatalf("bad registry_ref")
		}
		copy(ref[:], b)
	} else {
		// Fresh ephemeral principal: fine for dev, but taxpayers must
		// re-approve after every restart. Set registry_ref to pin it.
		if _, err := rand.Read(ref[:]); err != nil {
			logger.Fatalf("generate registry ref: %v", err)
		}
		logger.Printf("registry_ref not set; using ephemeral %s", hex.EncodeToString(ref[:]))
	}

	var (
		kv    store.KV
		audit []registry.AuditSink
	)
	if cfg.DisableDB {
		kv = store.NewMemory()
		logger.Printf("db disabled; running on an in-memory store")
	} else {
		db, err := officedb.Open(filepath.Join(cfg.DataDir, "ledger.db"))
		if err != nil {
			logger.Fatalf("open ledger db: %v", err)
		}
		defer db.Close()
		kv = db
		audit = append(audit, db)
	}
	if !cfg.DisableJournal {
		jw := journal.NewWriter(filepath.Join(cfg.DataDir, "journal"), "ops")
		defer jw.Close()
		audit = append(audit, jw)
	}

	reg := registry.New(kv, registry.Config{
		Ref:   ref,
		Audit: multiSink(audit),
	})
	logger.Printf("registry identity: %s", reg.Identity())

	server := ws.NewServer(reg, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", server.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// multiSink fans one OpRecord out to every configured sink.
type multiSink []registry.AuditSink

func (m multiSink) RecordOp(rec registry.OpRecord) {
	for _, s := range m {
		s.RecordOp(rec)
	}
}
