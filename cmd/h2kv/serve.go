package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/config"
	h2kvhttp "github.com/h2kv/h2kv/http"
	"github.com/h2kv/h2kv/metrics"
	"github.com/h2kv/h2kv/syncdir"
)

const defaultShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the h2kv HTTP server.

The server speaks HTTP/1.1 and cleartext HTTP/2 (prior knowledge) on the
same port, and HTTP/2 over TLS when a certificate is configured.

With a sync directory, the directory is imported before the server starts
accepting requests. SIGHUP, and file changes when --watch is set, trigger
a resync. With --write-back, records changed over HTTP are written back
to their files on every resync and once more on shutdown.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default: all interfaces)")
	serveCmd.Flags().Int("port", 5928, "HTTP server port")
	serveCmd.Flags().String("tls-cert", "", "TLS certificate file")
	serveCmd.Flags().String("tls-key", "", "TLS key file")
	serveCmd.Flags().Bool("write-back", false, "export records changed over HTTP to the sync directory")
	serveCmd.Flags().Bool("watch", false, "resync when files in the sync directory change")
	serveCmd.Flags().String("metrics-addr", "", "expose Prometheus metrics on this address")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Enabled = true
	}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	reg := metrics.GetRegistry()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var session *syncSession
	var hup chan os.Signal
	if cfg.Sync.Enabled() {
		// A SIGHUP during the initial import queues a resync instead of
		// terminating the process.
		hup = make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		session, err = openSync(cfg, store, metrics.NewSyncMetrics(reg), cfg.Sync.WriteBack)
		if err != nil {
			return err
		}
		defer session.Close()

		// Serve only once the directory is reflected in the store.
		slog.Info("initial sync started", "dir", cfg.Sync.Dir)
		if _, err := session.engine.Import(ctx); err != nil {
			return fmt.Errorf("initial sync: %w", err)
		}
	}

	handler := h2kvhttp.NewHandler(&h2kvhttp.HandlerConfig{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS:          cfg.CORS,
		Metrics:       metrics.NewHTTPMetrics(reg),
		Logger:        slog.Default().With("component", "http"),
	}, h2kv.NewService(store))

	server := newServer(cfg.Server, handler.Router())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listenAndServe(server, cfg.Server)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Addr, reg)
		g.Go(func() error {
			return metricsServer.Start(gctx)
		})
	}

	if session != nil {
		runSync(gctx, g, cfg, session, hup)
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if session != nil && session.engine.WriteBack() {
		// The serving context is gone; the final export runs to completion.
		if _, err := session.engine.Export(context.WithoutCancel(ctx)); err != nil {
			slog.Error("final export failed", "err", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// runSync starts the resync runner and its triggers. Every value received
// on hup requests a pass.
func runSync(ctx context.Context, g *errgroup.Group, cfg *config.Config, session *syncSession, hup <-chan os.Signal) {
	runner := syncdir.NewRunner(session.engine)
	g.Go(func() error {
		return runner.Run(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				slog.Info("resync requested")
				runner.Trigger()
			}
		}
	})

	if cfg.Sync.Watch {
		filter, _ := cfg.Sync.Filter()
		watcher, err := syncdir.NewWatcher(cfg.Sync.Dir, filter, cfg.Sync.Debounce, runner.Trigger)
		if err != nil {
			slog.Error("file watcher disabled", "err", err)
			return
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetHTTP2(true)
	protocols.SetUnencryptedHTTP2(true)

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func listenAndServe(server *http.Server, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	slog.Info("starting server", "addr", ln.Addr().String(), "tls", cfg.TLS())

	if cfg.TLS() {
		err = server.ServeTLS(ln, cfg.TLSCert, cfg.TLSKey)
	} else {
		err = server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
