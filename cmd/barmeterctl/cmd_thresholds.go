package main

import (
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"

	"github.com/barmeter-community/barmeter-agent/pkg/meter"
)

var (
	warningsSide string
	warnBars     int
	critBars     int

	noiseValue   float64
	noiseDefault bool
)

func init() {
	cmdSetWarnings.Flags().StringVar(&warningsSide, "side", "low", "Which end of the scale to arm: low or high.")
	cmdSetWarnings.Flags().IntVarP(&warnBars, "warn", "w", 0, "Bar count at which the warning presentation kicks in (0 disables; defaults to 6 for low, 19 for high).")
	cmdSetWarnings.Flags().IntVarP(&critBars, "crit", "c", 0, "Bar count at which the critical presentation kicks in (0 disables; defaults to 3 for low, 22 for high).")
	cmdRmWarnings.Flags().StringVar(&warningsSide, "side", "low", "Which end of the scale to clear: low or high.")

	cmdSetNoise.Flags().Float64VarP(&noiseValue, "value", "v", 0, "Noise threshold in input units.")
	cmdSetNoise.Flags().BoolVar(&noiseDefault, "default", false, "Restore the default noise threshold of half a bar.")

	cmdSet.AddCommand(cmdSetWarnings)
	cmdRemove.AddCommand(cmdRmWarnings)
	cmdSet.AddCommand(cmdSetNoise)
}

var (
	warningsAliases = []string{"thresholds"}

	cmdSetWarnings = &cobra.Command{
		Use:     "warnings",
		Aliases: warningsAliases,
		Short:   "Arm warning thresholds on the bar meter",
		Example: "barmeterctl set warnings --side low --warn 6 --crit 3",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			warn, crit, err := resolveWarnings(warningsSide, warnBars, critBars,
				cmd.Flags().Changed("warn"), cmd.Flags().Changed("crit"))
			if err != nil {
				return err
			}

			if warningsSide == "high" {
				return client.SetHighWarnings(ctx, warn, crit)
			}
			return client.SetLowWarnings(ctx, warn, crit)
		},
	}

	cmdRmWarnings = &cobra.Command{
		Use:     "warnings",
		Aliases: warningsAliases,
		Short:   "Clear warning thresholds on the bar meter",
		Example: "barmeterctl remove warnings --side high",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			switch warningsSide {
			case "low":
				return client.ClearLowWarnings(ctx)
			case "high":
				return client.ClearHighWarnings(ctx)
			default:
				return humane.New("invalid warnings side",
					"use --side low or --side high",
				)
			}
		},
	}

	cmdSetNoise = &cobra.Command{
		Use:     "noise",
		Short:   "Set the noise threshold of the bar meter",
		Example: "barmeterctl set noise --value 12.5",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			if noiseDefault {
				return client.SetNoiseDefault(ctx)
			}
			return client.SetNoise(ctx, noiseValue)
		},
	}
)

// resolveWarnings fills the side's conventional defaults in for flags the
// caller left unset; an explicit 0 still disables the threshold.
func resolveWarnings(side string, warn, crit int, warnSet, critSet bool) (int, int, error) {
	switch side {
	case "low":
		if !warnSet {
			warn = meter.DefaultLowWarn
		}
		if !critSet {
			crit = meter.DefaultLowCrit
		}
	case "high":
		if !warnSet {
			warn = meter.DefaultHighWarn
		}
		if !critSet {
			crit = meter.DefaultHighCrit
		}
	default:
		return 0, 0, humane.New("invalid warnings side",
			"use --side low or --side high",
		)
	}
	return warn, crit, nil
}
