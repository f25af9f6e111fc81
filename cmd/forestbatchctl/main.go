// Command forestbatchctl runs a query- or iterator-mode batcher job
// from a jobspec file against an etcd-backed shard directory, using a
// cobra command tree with flags bound through viper-backed config.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chtzvt/forestbatch/cmd/forestbatchctl/config"
	"github.com/chtzvt/forestbatch/internal/api"
	"github.com/chtzvt/forestbatch/internal/batcher"
	"github.com/chtzvt/forestbatch/internal/directory"
	"github.com/chtzvt/forestbatch/internal/idseq"
	"github.com/chtzvt/forestbatch/internal/jobspec"
	"github.com/chtzvt/forestbatch/internal/listener"
	"github.com/chtzvt/forestbatch/internal/metrics"
	"github.com/chtzvt/forestbatch/internal/transport"
	"github.com/chtzvt/forestbatch/internal/transport/azuretransport"
	"github.com/chtzvt/forestbatch/internal/transport/s3transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "forestbatchctl",
		Short: "forestbatch control CLI",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./forestbatchctl.yaml)")

	root.AddCommand(runCmd(), seedSequenceCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var jobPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batcher job from a jobspec file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			js, err := jobspec.LoadFromFile(jobPath)
			if err != nil {
				return fmt.Errorf("load jobspec: %w", err)
			}
			return runJob(cfg, js)
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "path to jobspec JSON file")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func runJob(cfg *config.Config, js *jobspec.JobSpec) error {
	logger := log.New(os.Stderr, "[forestbatchctl] ", log.LstdFlags)

	dir, err := directory.NewEtcdDirectory(directory.EtcdConfig{
		Endpoints:   cfg.Etcd.Endpoints,
		Username:    cfg.Etcd.Username,
		Password:    cfg.Etcd.Password,
		DialTimeout: 5 * time.Second,
		Prefix:      cfg.Etcd.Prefix,
	})
	if err != nil {
		return fmt.Errorf("connect directory: %w", err)
	}
	defer dir.Close()

	opts, err := buildOptions(context.Background(), cfg, js)
	if err != nil {
		return err
	}

	var b *batcher.Batcher
	if js.Query != nil {
		b, err = batcher.New(js.Query.Definition, dir, opts...)
	} else {
		seq, serr := idseq.OpenFileSequence(js.Sequence.Path, js.Sequence.Compression)
		if serr != nil {
			return fmt.Errorf("open sequence: %w", serr)
		}
		b, err = batcher.NewIterator(seq, dir, opts...)
	}
	if err != nil {
		return fmt.Errorf("construct batcher: %w", err)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.ListenAddr, logger)
	}
	if cfg.Api.ListenAddr != "" {
		go serveStatus(cfg, b, logger)
	}

	ticket, err := b.Start()
	if err != nil {
		return fmt.Errorf("start batcher: %w", err)
	}
	logger.Printf("job started, ticket=%s", ticket)

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.AwaitCompletion(0)
		close(done)
	}()

	select {
	case <-done:
		logger.Printf("job complete, isStopped=%v", b.IsStopped())
	case <-sigCtx.Done():
		logger.Printf("signal received, stopping job")
		b.Stop()
		<-done
	}
	return nil
}

func buildOptions(ctx context.Context, cfg *config.Config, js *jobspec.JobSpec) ([]batcher.Option, error) {
	var opts []batcher.Option

	pageSize := js.Options.PageSize
	if pageSize <= 0 {
		pageSize = cfg.Run.PageSize
	}
	opts = append(opts, batcher.WithPageSize(pageSize))

	threadCount := js.Options.ThreadCount
	if threadCount <= 0 {
		threadCount = cfg.Run.ThreadCount
	}
	if threadCount > 0 {
		opts = append(opts, batcher.WithThreadCount(threadCount))
	}

	if js.Options.SnapshotMode {
		opts = append(opts, batcher.WithSnapshotMode())
	}
	if js.Name != "" {
		opts = append(opts, batcher.WithJobName(js.Name))
	}

	for _, lc := range js.Options.SuccessListeners {
		l, err := listener.New(lc)
		if err != nil {
			return nil, fmt.Errorf("success listener %q: %w", lc.Name, err)
		}
		opts = append(opts, batcher.WithSuccessListener(l))
	}

	if cfg.Metrics.Enabled {
		opts = append(opts, batcher.WithMetrics(metrics.NewCollectors("forestbatch")))
	}

	factory, err := buildTransportFactory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, batcher.WithTransportFactory(factory))

	return opts, nil
}

// buildTransportFactory wires a real transport.Transport when the CLI
// config names an S3 bucket or an Azure storage account; every
// preferred host in the directory maps to the same bucket/container
// (the "host" in an object-store-backed shard directory is really just
// a routing label, not a distinct endpoint). S3 takes priority when both
// are configured. Falls back to an erroring stub so misconfiguration is
// loud instead of delivering silently-empty pages.
func buildTransportFactory(ctx context.Context, cfg *config.Config) (func(host string) (transport.Client, error), error) {
	switch {
	case cfg.S3.Bucket != "":
		tr, err := s3transport.New(ctx, cfg.S3.Bucket, cfg.S3.Region)
		if err != nil {
			return nil, fmt.Errorf("build s3 transport: %w", err)
		}
		return func(host string) (transport.Client, error) {
			return transport.Client{Host: host, Transport: tr}, nil
		}, nil
	case cfg.Azure.AccountURL != "":
		tr, err := azuretransport.New(cfg.Azure.AccountURL, cfg.Azure.AccountName, cfg.Azure.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("build azure transport: %w", err)
		}
		return func(host string) (transport.Client, error) {
			return transport.Client{Host: host, Transport: tr}, nil
		}, nil
	default:
		return func(host string) (transport.Client, error) {
			return transport.Client{}, fmt.Errorf("no transport wired for host %q: set s3.bucket or azure.account_url in config, or wire a custom transport factory", host)
		}, nil
	}
}

func serveMetrics(addr string, logger *log.Logger) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollectors("forestbatch")
	c.MustRegister(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Printf("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("metrics server exited: %v", err)
	}
}

func serveStatus(cfg *config.Config, b *batcher.Batcher, logger *log.Logger) {
	srv := api.NewServer(b, api.Config{ListenAddr: cfg.Api.ListenAddr, AuthTokens: cfg.Api.AuthTokens}, logger)
	if err := srv.Start(context.Background()); err != nil {
		logger.Printf("status server exited: %v", err)
	}
}

func seedSequenceCmd() *cobra.Command {
	var path, compression string
	cmd := &cobra.Command{
		Use:   "seed-sequence <id...>",
		Short: "Write a CBOR identifier sequence file for iterator-mode jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := idseq.WriteFileSequence(path, compression, args); err != nil {
				return err
			}
			fmt.Printf("wrote %d identifiers to %s\n", len(args), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "out", "sequence.cbor", "output file path")
	cmd.Flags().StringVar(&compression, "compression", "none", "none|gzip|bzip2")
	return cmd
}
