package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/discuss/internal/devserver"
	"github.com/vango-dev/discuss/pkg/comments"
	"github.com/vango-dev/discuss/pkg/toast"
)

func serveCmd(a *app) *cobra.Command {
	var (
		port        int
		host        string
		failDeletes bool
		latency     time.Duration
		seedCount   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory comments API",
		Long: `Run an in-memory comments API for local development.

Routes:
  GET    /discussions/{id}/comments
  POST   /discussions/{id}/comments
  DELETE /comments/{id}
  GET    /health
  GET    /metrics            (when metrics are enabled)
  GET    /ws/notifications   (activity toasts)

Examples:
  discuss serve
  discuss serve --port=8080 --seed=5
  discuss serve --fail-deletes --latency=2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if failDeletes {
				cfg.Server.FailDeletes = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store := devserver.NewStore()
			seedStore(store, seedCount)

			opts := devserver.ServerOptions{
				Addr:        cfg.ServerAddress(),
				Store:       store,
				Hub:         toast.NewHub(a.logger),
				FailDeletes: cfg.Server.FailDeletes,
				Latency:     latency,
				Logger:      a.logger,
			}
			if cfg.Metrics.Enabled {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Metrics.Namespace}),
				)
				opts.Gatherer = reg
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			success(out, "Serving comments on http://%s", cfg.ServerAddress())
			if cfg.Server.FailDeletes {
				warn(out, "Deletes will fail with 500")
			}
			return devserver.NewServer(opts).Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from discuss.toml)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from discuss.toml)")
	cmd.Flags().BoolVar(&failDeletes, "fail-deletes", false, "Reject every delete with 500")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay added to every API response")
	cmd.Flags().IntVar(&seedCount, "seed", 3, "Number of sample comments in discussion \"demo\"")

	return cmd
}

func seedStore(store *devserver.Store, n int) {
	for i := 1; i <= n; i++ {
		store.Seed(comments.Comment{
			Body:         "Sample comment " + strconv.Itoa(i),
			AuthorID:     "demo-user",
			DiscussionID: "demo",
		})
	}
}
