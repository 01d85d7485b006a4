// Package main provides the CLI entry point for the badnet lossy UDP relay.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/postalsys/badnet/internal/config"
	"github.com/postalsys/badnet/internal/health"
	"github.com/postalsys/badnet/internal/logging"
	"github.com/postalsys/badnet/internal/metrics"
	"github.com/postalsys/badnet/internal/relay"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options holds values bound to command-line flags.
type options struct {
	configPath    string
	loss          float64
	debug         bool
	logLevel      string
	logFormat     string
	seed          int64
	statsInterval time.Duration
	healthAddress string
}

func newRootCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badnet [listen-address] [target-address]",
		Short: "badnet - UDP relay that drops packets on purpose",
		Long: `badnet sits between a UDP client and a UDP server and relays
datagrams in both directions, dropping each one with a configurable
probability.

The first sender that is not the target becomes the client. Datagrams
from the target are sent back to that client.`,
		Example: `  badnet 127.0.0.1:9000 127.0.0.1:9001 --loss 0.2
  badnet -c badnet.yaml --debug`,
		Version:       Version,
		Args:          cobra.RangeArgs(0, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.configPath, "config", "c", "", "Path to optional YAML configuration file")
	flags.Float64Var(&o.loss, "loss", 0.0, "Packet loss rate in [0.0, 1.0]")
	flags.BoolVar(&o.debug, "debug", false, "Print a line for each forwarded packet")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&o.logFormat, "log-format", "text", "Log format: text, json")
	flags.Int64Var(&o.seed, "seed", 0, "Random seed for the loss decision, 0 seeds from the clock")
	flags.DurationVar(&o.statsInterval, "stats-interval", 0, "Minimum interval between stats log lines, 0 disables")
	flags.StringVar(&o.healthAddress, "health-address", "", "Serve health and metrics endpoints on this address")

	return cmd
}

// config merges the configuration file, flags and positional arguments.
// Flags override the file only when set explicitly.
func (o *options) config(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.ReadFile(o.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("loss") {
		cfg.Loss = o.loss
	}
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if flags.Changed("seed") {
		cfg.Seed = o.seed
	}
	if flags.Changed("stats-interval") {
		cfg.StatsInterval = o.statsInterval
	}
	if flags.Changed("health-address") {
		cfg.Health.Enabled = o.healthAddress != ""
		cfg.Health.Address = o.healthAddress
	}

	if len(args) > 0 {
		cfg.Listen = args[0]
	}
	if len(args) > 1 {
		cfg.Target = args[1]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run binds the relay and serves until ctx is cancelled or the relay fails.
func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := logging.NewLoggerWithWriter(cfg.Log.Level, cfg.Log.Format, stderr)

	target, err := relay.ResolveTarget(cfg.Target)
	if err != nil {
		return err
	}

	conn, err := relay.Listen(cfg.Listen)
	if err != nil {
		return err
	}
	defer conn.Close()

	r, err := relay.New(relay.Config{
		Target:        target,
		LossRate:      cfg.Loss,
		Debug:         cfg.Debug,
		Seed:          cfg.Seed,
		StatsInterval: cfg.StatsInterval,
	}, conn, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.SetMetrics(metrics.NewMetricsWithRegistry(reg))
	r.SetOutput(stdout)

	logger.Info("listening",
		logging.KeyListen, conn.LocalAddr().String(),
		logging.KeyTarget, target.String(),
		logging.KeyLossRate, cfg.Loss)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(ctx)
	})

	if cfg.Health.Enabled {
		srv := health.NewServer(health.ServerConfig{
			Address:      cfg.Health.Address,
			ReadTimeout:  cfg.Health.ReadTimeout,
			WriteTimeout: cfg.Health.WriteTimeout,
		}, relayStats{r}, reg, logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("relay stopped", logging.KeyError, err)
		return err
	}
	return nil
}

// relayStats exposes relay counters to the health server.
type relayStats struct {
	r *relay.Relay
}

func (s relayStats) IsRunning() bool {
	return s.r.IsRunning()
}

func (s relayStats) Stats() health.Stats {
	st := s.r.Stats()
	total := st.Total()
	return health.Stats{
		Client:         st.Client,
		Received:       total.Received,
		Forwarded:      total.Forwarded,
		Dropped:        total.Dropped,
		Skipped:        st.Skipped,
		BytesForwarded: total.BytesForwarded,
	}
}
