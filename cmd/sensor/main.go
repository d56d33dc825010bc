package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nauj93x/MoniSenso/internal/domain/emitter"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/config"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
)

type flags struct {
	sensor   string
	interval int
	file     string
	pipe     string
	retry    time.Duration
	dev      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(run).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(runFn func(context.Context, *config.Sensor) error) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "sensor",
		Short: "Send sensor readings from a data file to the monitor",
		Long: `sensor writes each line of a data file into the monitor's named pipe,
waiting the given number of seconds between readings. While the monitor is not
listening the pipe is retried every second.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return err
			}
			return runFn(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.sensor, "sensor", "s", "", "sensor kind: 1 or temperature, 2 or ph")
	fs.IntVarP(&f.interval, "interval", "t", 0, "seconds between readings")
	fs.StringVarP(&f.file, "file", "f", "", "data file or glob pattern")
	fs.StringVarP(&f.pipe, "pipe", "p", "", "named pipe path")
	fs.DurationVar(&f.retry, "retry", 0, "wait between attempts to open the pipe")
	fs.BoolVar(&f.dev, "dev", false, "development logging")

	return cmd
}

// buildConfig layers changed flags over environment configuration.
func buildConfig(cmd *cobra.Command, f flags) (*config.Sensor, error) {
	cfg, err := config.LoadSensor()
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("sensor") {
		cfg.Kind = f.sensor
	}
	if cfg.Kind, err = config.ParseSensorKind(cfg.Kind); err != nil {
		return nil, err
	}
	if fs.Changed("interval") {
		if f.interval < 0 {
			return nil, fmt.Errorf("%w: interval must not be negative", config.ErrInvalid)
		}
		cfg.Interval = time.Duration(f.interval) * time.Second
	}
	if fs.Changed("file") {
		cfg.File = f.file
	}
	if fs.Changed("pipe") {
		cfg.Pipe = f.pipe
	}
	if fs.Changed("retry") {
		cfg.Retry = f.retry
	}
	if fs.Changed("dev") {
		cfg.Logging.Development = f.dev
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Sensor) error {
	logger, err := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	e := emitter.New(*cfg, logger)
	err = e.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Sensor stopped by signal", zap.Int("sent", e.Sent()))
		return nil
	}
	return err
}
