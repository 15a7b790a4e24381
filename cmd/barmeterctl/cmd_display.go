package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	brightnessLevel int
	blinkRate       int
)

func init() {
	cmdSetBrightness.Flags().IntVarP(&brightnessLevel, "level", "l", 15, "Brightness level, 0 (dimmest) to 15 (brightest).")
	cmdSetBlink.Flags().IntVarP(&blinkRate, "rate", "r", 0, "Blink rate: 0 off, 1 for 2Hz, 2 for 1Hz, 3 for 0.5Hz.")

	cmdSet.AddCommand(cmdSetBrightness)
	cmdSet.AddCommand(cmdSetBlink)
	cmdGet.AddCommand(cmdGetBrightness)
}

var (
	cmdSetBrightness = &cobra.Command{
		Use:     "brightness",
		Short:   "Set the display brightness of the bar meter",
		Example: "barmeterctl set brightness --level 8",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			return client.SetBrightness(ctx, brightnessLevel)
		},
	}

	cmdSetBlink = &cobra.Command{
		Use:     "blink",
		Short:   "Set the display blink rate of the bar meter",
		Example: "barmeterctl set blink --rate 1",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			return client.SetBlinkRate(ctx, blinkRate)
		},
	}

	cmdGetBrightness = &cobra.Command{
		Use:     "brightness",
		Short:   "Get the display brightness and blink rate of the bar meter",
		Example: "barmeterctl get brightness",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			status, err := client.Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%d/15 (blink: %s)\n", status.Brightness, status.Blink)
			return nil
		},
	}
)
