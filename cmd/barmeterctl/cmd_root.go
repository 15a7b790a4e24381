package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/barmeter-community/barmeter-agent/internal/api"
	"github.com/barmeter-community/barmeter-agent/pkg/log"
	"github.com/barmeter-community/barmeter-agent/pkg/meterctlconfig"
)

var (
	configPath string
	serverAddr string
	meterName  string
	timeout    time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the barmeterctl configuration file (default ~/.barmeterctl.yaml).")
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "", "Address of the agent API, overriding the configuration file.")
	rootCmd.PersistentFlags().StringVarP(&meterName, "meter", "m", "", "Name of the configured meter to talk to.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for the whole command invocation.")

	rootCmd.AddCommand(cmdGet)
	rootCmd.AddCommand(cmdSet)
	rootCmd.AddCommand(cmdRemove)
}

var (
	rootCmd = &cobra.Command{
		Use:   "barmeterctl",
		Short: "barmeterctl interacts with the barmeter-agent and allows you to drive and inspect your LED bar-graph level meter(s)",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			origCtx := cmd.Context()

			ctx, cancelCtx := context.WithTimeout(origCtx, timeout)

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
						// On terminate signal, cancel context causing the program to terminate
						cancelCtx()

					default:
						log.FromContext(ctx).Warn("Received unknown signal", zap.String("signal", sig.String()))
					}
				}
			}()

			server, err := resolveServer()
			if err != nil {
				return err
			}

			cmd.SetContext(clientIntoContext(ctx, api.NewClient(server)))
			return nil
		},
	}

	cmdGet = &cobra.Command{
		Use:   "get",
		Short: "Read state from the bar meter",
	}

	cmdSet = &cobra.Command{
		Use:   "set",
		Short: "Change state on the bar meter",
	}

	cmdRemove = &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm", "unset"},
		Short:   "Remove overrides and thresholds from the bar meter",
	}
)

// resolveServer picks the agent address: the --server flag wins, then the
// selected (or current) meter from the configuration file.
func resolveServer() (string, error) {
	if serverAddr != "" {
		return serverAddr, nil
	}

	config, err := loadConfig()
	if err != nil {
		return "", err
	}

	if meterName != "" {
		config.CurrentMeter = meterName
	}

	meter, herr := meterctlconfig.FindCurrentMeter(*config)
	if herr != nil {
		return "", herr
	}
	return meter.Server, nil
}

func loadConfig() (*meterctlconfig.MeterctlConfig, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, humane.Wrap(err, "failed to locate home directory",
				"pass an explicit configuration file with --config",
			)
		}
		path = filepath.Join(home, ".barmeterctl.yaml")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, humane.Wrap(err, "failed to read barmeterctl configuration",
			"create a configuration file with your meters, or pass --server to talk to an agent directly",
		)
	}

	var config meterctlconfig.MeterctlConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, humane.Wrap(err, "failed to parse barmeterctl configuration",
			"ensure the configuration file is valid YAML",
		)
	}

	return &config, nil
}
