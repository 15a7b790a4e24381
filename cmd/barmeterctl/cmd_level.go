package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var levelValue float64

func init() {
	cmdSetLevel.Flags().Float64VarP(&levelValue, "value", "v", 0, "Level to feed into the meter.")
	_ = cmdSetLevel.MarkFlagRequired("value")

	cmdSet.AddCommand(cmdSetLevel)
	cmdGet.AddCommand(cmdGetLevel)
}

var (
	levelAliases = []string{"lvl"}

	cmdSetLevel = &cobra.Command{
		Use:     "level",
		Aliases: levelAliases,
		Short:   "Feed a level sample into the bar meter",
		Example: "barmeterctl set level --value 512",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			resp, err := client.SubmitLevel(ctx, levelValue)
			if err != nil {
				return err
			}

			if resp.Accepted {
				fmt.Printf("Accepted (delta %g)\n", resp.Delta)
			} else {
				fmt.Println("Rejected (below noise threshold)")
			}
			return nil
		},
	}

	cmdGetLevel = &cobra.Command{
		Use:     "level",
		Aliases: levelAliases,
		Short:   "Get the current level of the bar meter",
		Example: "barmeterctl get level",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			status, err := client.Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d/%d bars)\n", levelLabel(status.Level, status.HasLevel), status.LitBars, status.BarCount)
			return nil
		},
	}
)
