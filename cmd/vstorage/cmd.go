package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gozephyr/vstorage"
	"github.com/gozephyr/vstorage/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd creates the vstorage command tree
func NewRootCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vstorage",
		Short:         "Validate and exercise key-value storage configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newValidateCmd(),
		newExerciseCmd(logger),
		newServeCmd(logger),
	)
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a configuration file and print the storage tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := vstorage.LoadConfig(args[0])
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), cfg, "")
			return nil
		},
	}
}

// printTree writes one line per storage, members indented below their parent
func printTree(w io.Writer, cfg vstorage.Config, indent string) {
	line := indent + string(cfg.Type)
	if cfg.Name != "" {
		line += " " + cfg.Name
	}
	if cfg.Capacity > 0 {
		line += fmt.Sprintf(" capacity=%d", cfg.Capacity)
	}
	if cfg.Retention > 0 {
		line += " retention=" + cfg.Retention.String()
	}
	fmt.Fprintln(w, line)

	child := indent + "  "
	if cfg.Superset != nil {
		printTree(w, *cfg.Superset, child)
	}
	if cfg.Subset != nil {
		printTree(w, *cfg.Subset, child)
	}
	for _, member := range cfg.Storages {
		printTree(w, member, child)
	}
}

func newExerciseCmd(logger *zap.Logger) *cobra.Command {
	var (
		items  int
		config = vstorage.DefaultBatchConfig()
	)
	cmd := &cobra.Command{
		Use:   "exercise <config>",
		Short: "Build a storage and run a batch workload against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := vstorage.LoadConfig(args[0])
			if err != nil {
				return err
			}
			return exercise(cmd.Context(), cmd.OutOrStdout(), logger, cfg, items, config)
		},
	}
	cmd.Flags().IntVar(&items, "items", 100, "number of entries to write")
	cmd.Flags().IntVar(&config.MaxConcurrent, "concurrency", config.MaxConcurrent, "keys processed at once")
	cmd.Flags().DurationVar(&config.OperationTimeout, "timeout", config.OperationTimeout, "timeout of each batch call")
	return cmd
}

// exercise writes items entries, reads them back and deletes every other one
func exercise(ctx context.Context, out io.Writer, logger *zap.Logger, cfg vstorage.Config, items int, config vstorage.BatchConfig) error {
	s, err := vstorage.Build[string](ctx, cfg, vstorage.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	observed := vstorage.Observe[string, string](s)
	observed.OnEvent(func(e vstorage.Event[string, string]) {
		logger.Debug("storage event", zap.Stringer("type", e.Type), zap.String("key", e.Key))
	})

	config.MaxBatchSize = max(config.MaxBatchSize, items)
	batch, err := vstorage.NewBatch[string, string](observed, config)
	if err != nil {
		return err
	}

	entries := make([]store.Entry[string, string], items)
	keys := make([]string, items)
	for i := range entries {
		keys[i] = fmt.Sprintf("item-%d", i)
		entries[i] = store.Entry[string, string]{Key: keys[i], Value: strings.Repeat("x", i%16+1)}
	}
	if err := batch.UpdateMany(ctx, entries); err != nil {
		return err
	}
	found, err := batch.ReadMany(ctx, keys)
	if err != nil {
		return err
	}
	var odd []string
	for i := 1; i < len(keys); i += 2 {
		odd = append(odd, keys[i])
	}
	if err := batch.DeleteMany(ctx, odd); err != nil {
		return err
	}

	metrics := batch.Metrics()
	fmt.Fprintf(out, "wrote %d, read %d, deleted %d\n", items, len(found), len(odd))
	fmt.Fprintf(out, "entries %d, capacity %s\n", s.Entries(ctx), capacityString(s.Capacity(ctx)))
	fmt.Fprintf(out, "batch calls %d, items %d, errors %d\n",
		metrics.TotalOperations.Load(), metrics.TotalItems.Load(), metrics.ErrorCount.Load())
	if cached, ok := s.Store.(*store.CachedStore[string, string]); ok {
		stats := cached.Stats()
		fmt.Fprintf(out, "cache hits %d, misses %d\n", stats.Hits, stats.Misses)
	}
	return nil
}

func capacityString(capacity int) string {
	if capacity == store.Unbounded {
		return "unbounded"
	}
	return fmt.Sprint(capacity)
}

func newServeCmd(logger *zap.Logger) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve <config>",
		Short: "Build a storage and expose its metrics over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := vstorage.LoadConfig(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, cfg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address of the metrics endpoint")
	return cmd
}

// serve builds cfg and serves /metrics until ctx is done
func serve(ctx context.Context, logger *zap.Logger, cfg vstorage.Config, addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s, err := vstorage.Build[string](ctx, cfg, vstorage.WithLogger(logger), vstorage.WithMetricsRegistry(reg))
	if err != nil {
		return err
	}
	defer s.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr), zap.String("storage", string(cfg.Type)))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
