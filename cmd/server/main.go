// server is the main webmemcore binary. It assembles the store, sync
// manager, embedding encoder, ingestion pipeline, retrieval engine, crawl
// orchestrator, and realtime hub. In stdio mode it exposes them as an MCP
// tool surface over the stdio transport; in http mode it serves only the
// admin HTTP router (health, stats, metrics, websocket), not the MCP tools.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fredcamaral/gomcp-sdk/transport"
	"github.com/prometheus/client_golang/prometheus"

	"webmemcore/internal/config"
	"webmemcore/internal/crawl"
	"webmemcore/internal/embeddings"
	"webmemcore/internal/errorjournal"
	"webmemcore/internal/fetcher"
	"webmemcore/internal/httpapi"
	"webmemcore/internal/ingest"
	"webmemcore/internal/kgqueue"
	"webmemcore/internal/logging"
	"webmemcore/internal/mcpapi"
	"webmemcore/internal/realtime"
	"webmemcore/internal/retrieval"
	"webmemcore/internal/store"
	"webmemcore/internal/sync"
	"webmemcore/internal/webtypes"
)

func main() {
	var (
		mode = flag.String("mode", "stdio", "Server mode: stdio or http")
		addr = flag.String("addr", ":8080", "admin/HTTP server address (when mode=http)")
	)
	flag.Parse()

	log := logging.NewLogger("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("loading configuration", "error", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	components, err := wire(ctx, cfg)
	if err != nil {
		log.Fatal("wiring components", "error", err.Error())
	}
	defer components.Close()

	go components.hub.Run(ctx)
	components.syncMgr.Start(ctx)

	switch *mode {
	case "stdio":
		log.Info("starting in stdio mode")
		stdioTransport := transport.NewStdioTransport()
		components.mcp.MCPServer().SetTransport(stdioTransport)
		if err := components.mcp.MCPServer().Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("mcp server failed", "error", err.Error())
		}

	case "http":
		log.Info("starting in http mode", "addr", *addr)
		router := httpapi.New(components.st, components.hub)
		srv := &http.Server{Addr: *addr, Handler: router.Handler(), ReadHeaderTimeout: 10 * time.Second}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin http server failed", "error", err.Error())
		}

	default:
		log.Fatal("invalid mode, use 'stdio' or 'http'", "mode", *mode)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := components.syncMgr.Stop(stopCtx); err != nil {
		log.Error("final flush on shutdown failed", "error", err.Error())
	}
}

// serverComponents holds every long-lived piece wired together at startup.
type serverComponents struct {
	st      *store.Store
	errJ    *errorjournal.Journal
	syncMgr *sync.Manager
	enc     embeddings.Encoder
	hub     *realtime.Hub
	mcp     *mcpapi.Server
	kgNotif *kgqueue.Notifier
}

func (c *serverComponents) Close() {
	c.kgNotif.Close()
	_ = c.enc.Close()
	_ = c.st.Close()
}

func wire(ctx context.Context, cfg *config.Config) (*serverComponents, error) {
	errJ, err := errorjournal.Open(cfg.Storage.ErrorJournalPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Storage.DBPath, cfg.Storage.UseMemoryDB, errJ)
	if err != nil {
		return nil, err
	}

	if err := st.SeedBlocklist(ctx, defaultBlockedSeeds()); err != nil {
		return nil, err
	}

	syncMgr := sync.New(st, cfg.Storage.DBPath, errJ, prometheus.DefaultRegisterer)

	enc, err := embeddings.NewFastEmbedEncoder(embeddings.Config{
		Model:     cfg.Embedder.Model,
		CacheDir:  cfg.Embedder.CacheDir,
		MaxLength: cfg.Embedder.MaxLength,
	})
	if err != nil {
		return nil, err
	}

	pipeline := ingest.New(st, enc, errJ)
	kgNotif := kgqueue.Connect(cfg.KGQueue.NATSURL, "webmemcore.kgqueue.pending", errJ)
	pipeline.OnKGEnqueue = kgNotif.Publish
	retr := retrieval.New(st, enc)
	fetch := fetcher.New(cfg.Fetcher.BaseURL, time.Duration(cfg.Fetcher.TimeoutSeconds)*time.Second)
	crawler := crawl.New(st, fetch, pipeline)

	hub := realtime.NewHub()
	syncMgr.OnFlush = func(entries int) {
		hub.Broadcast(realtime.Event{Type: "sync", Action: "flushed", Timestamp: time.Now(), Data: entries})
	}

	mcpServer := mcpapi.New(cfg, st, pipeline, retr, crawler, hub)

	return &serverComponents{
		st:      st,
		errJ:    errJ,
		syncMgr: syncMgr,
		enc:     enc,
		hub:     hub,
		mcp:     mcpServer,
		kgNotif: kgNotif,
	}, nil
}

// defaultBlockedSeeds mirrors the baseline exclusion list the original
// crawler shipped with, so a fresh store starts with the same adult-content
// substring patterns blocked before any operator customisation.
func defaultBlockedSeeds() []webtypes.BlocklistPattern {
	return []webtypes.BlocklistPattern{
		{Pattern: "*porn*", Description: "baseline adult-content exclusion"},
		{Pattern: "*xxx*", Description: "baseline adult-content exclusion"},
	}
}
