package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	internal_agent "github.com/barmeter-community/barmeter-agent/internal/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/barmeter-community/barmeter-agent/pkg/log"
	"github.com/barmeter-community/barmeter-agent/pkg/meter"
)

var (
	Version string
	Commit  string
	Date    string
)

var (
	debug          bool
	stopTimeout    time.Duration
	configPathFlag string
)

var rootCmd = &cobra.Command{
	Use:   "barmeter-agent",
	Short: "barmeter-agent drives an I2C LED bar-graph display as a level meter and exposes a control API",
	RunE:  runAgent,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging.")
	rootCmd.PersistentFlags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "Grace period for shutting down the agent.")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to an explicit configuration file.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (agent.BarMeterAgentConfig, error) {
	var config agent.BarMeterAgentConfig

	viper.SetDefault("listen.addr", "localhost:8462")
	viper.SetDefault("i2c.bus", "")
	viper.SetDefault("i2c.addr", bargraph.DefaultAddr)
	viper.SetDefault("i2c.retry-limit", bargraph.DefaultRetryLimit)
	viper.SetDefault("meter.min", 0)
	viper.SetDefault("meter.max", 65535)
	viper.SetDefault("meter.bar-count", bargraph.NumBars)
	viper.SetDefault("meter.rise-decay", meter.DefaultRiseDecay)
	viper.SetDefault("source.interval", time.Second)

	if configPathFlag != "" {
		viper.SetConfigFile(configPathFlag)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/barmeter-agent/")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("BARMETER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, humane.Wrap(err, "failed to read configuration",
				"ensure the configuration file is readable and valid YAML",
			)
		}
		// Defaults and environment carry a bare setup far enough.
	}

	if err := viper.Unmarshal(&config); err != nil {
		return config, humane.Wrap(err, "failed to parse configuration",
			"ensure the configuration values have the expected types",
		)
	}

	return config, nil
}

func runAgent(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, cancelCtx := context.WithCancelCause(cmd.Context())
	defer cancelCtx(fmt.Errorf("main exited"))
	ctx = log.IntoContext(ctx, logger)

	config, err := loadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return err
	}

	logger.Info("Starting barmeter-agent",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("date", Date),
	)

	a, err := internal_agent.NewBarMeterAgent(ctx, config)
	if err != nil {
		logger.Error("Failed to initialise agent", zap.Error(err))
		return err
	}

	// setup signal handler channels
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		// Wait for context cancel
		case <-ctx.Done():

		// Wait for signal
		case sig := <-sigs:
			switch sig {
			case syscall.SIGTERM:
				fallthrough
			case syscall.SIGINT:
				fallthrough
			case syscall.SIGQUIT:
				cancelCtx(fmt.Errorf("received signal %s", sig))

			default:
				logger.Warn("Received unknown signal", zap.String("signal", sig.String()))
			}
		}
	}()

	a.RunAsync(ctx, cancelCtx)

	// wait till we're done
	<-ctx.Done()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		logger.Info("Shutting down", zap.String("cause", cause.Error()))
	}

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancelStop()
	if err := a.GracefulStop(stopCtx); err != nil {
		logger.Error("Failed to stop agent cleanly", zap.Error(err))
		return err
	}

	return nil
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
