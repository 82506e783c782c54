package main

import (
	"log/slog"

	"github.com/aretw0/flowrun"
	"github.com/aretw0/flowrun/internal/cli"
	httpAdapter "github.com/aretw0/flowrun/pkg/adapters/http"
	"github.com/aretw0/flowrun/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flow-source]",
	Short: "Start the HTTP server",
	Long: `Serves the flows of the source over a JSON API: sessions are started, fed input
and watched through server-sent events. Prometheus metrics are exposed on /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cli.NewLogger(cfg)

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetrics(reg)

		engine, err := cli.NewEngine(cfg, sourcePath(args), logger,
			flowrun.WithLifecycleHooks(metrics.Hooks()))
		if err != nil {
			return err
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		backend, err := cli.OpenBackend(sigCtx, cfg, logger)
		if err != nil {
			return err
		}
		defer backend.Close()

		mgr := cli.NewManager(cfg, engine, backend)
		handler, err := httpAdapter.NewHandler(mgr, engine.Loader(),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithGatherer(reg),
		)
		if err != nil {
			return err
		}

		logger.Info("starting flowrun server",
			slog.String("addr", cfg.Addr),
			slog.String("source", engine.Name),
			slog.String("store", cfg.Store))
		return httpAdapter.ListenAndServe(sigCtx, cfg.Addr, handler, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "localhost:8080", "address to listen on")
}
