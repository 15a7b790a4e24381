package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/spf13/cobra"

	"github.com/barmeter-community/barmeter-agent/pkg/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/util"
)

const chartWindowSize = 60

func init() {
	cmdGet.AddCommand(cmdGetStatus)
	rootCmd.AddCommand(cmdMonitor)
}

var (
	cmdGetStatus = &cobra.Command{
		Use:     "status",
		Short:   "Get in-depth information about the current state of the bar meter",
		Example: "barmeterctl get status",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)
			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Println(util.PrintKeyValues(buildStatusKeyValues(status)))
			return nil
		},
	}

	cmdMonitor = &cobra.Command{
		Use:     "monitor",
		Short:   "Render a line-chart of the level and lit bars of the bar meter",
		Example: "barmeterctl monitor",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			if err := ui.Init(); err != nil {
				return fmt.Errorf("failed to initialize UI: %w", err)
			}
			defer ui.Close()

			events := ui.PollEvents()
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()

			labelBox := widgets.NewParagraph()
			labelBox.Title = "Meter Status"
			labelBox.Border = true
			labelBox.TextStyle = ui.NewStyle(ui.ColorWhite)

			levelPlot := newPlot("Level", ui.ColorGreen)
			barsPlot := newPlot("Lit Bars", ui.ColorCyan)

			levelData := []float64{math.NaN(), math.NaN()}
			barsData := []float64{math.NaN(), math.NaN()}

			for {
				select {
				case <-ctx.Done():
					if errors.Is(ctx.Err(), context.Canceled) {
						return nil
					}
					return ctx.Err()

				case e := <-events:
					switch e.ID {
					case "q", "<C-c>":
						return nil
					case "<Resize>":
						renderCharts(nil, levelPlot, barsPlot, labelBox)
						ui.Clear()
						ui.Render(labelBox, levelPlot, barsPlot)
					}

				case <-ticker.C:
					status, err := client.Status(ctx)
					if err != nil {
						labelBox.Text = "Error retrieving meter status: " + err.Error()
						ui.Render(labelBox)
						continue
					}

					levelData = appendAndTrim(levelData, status.Level)
					barsData = appendAndTrim(barsData, float64(status.LitBars))

					levelPlot.Data[0] = padToSize(levelData, chartWindowSize)
					barsPlot.Data[0] = padToSize(barsData, chartWindowSize)

					renderCharts(&status, levelPlot, barsPlot, labelBox)
					ui.Render(labelBox, levelPlot, barsPlot)
				}
			}
		},
	}
)

func newPlot(title string, color ui.Color) *widgets.Plot {
	plot := widgets.NewPlot()
	plot.Title = title
	plot.Data = [][]float64{{}}
	plot.LineColors = []ui.Color{color}
	plot.AxesColor = ui.ColorWhite
	plot.DrawDirection = widgets.DrawRight
	plot.HorizontalScale = 1
	return plot
}

func appendAndTrim(slice []float64, value float64) []float64 {
	slice = append(slice, value)
	if len(slice) > chartWindowSize {
		return slice[len(slice)-chartWindowSize:]
	}
	return slice
}

func padToSize(data []float64, size int) []float64 {
	pad := size - len(data)
	if pad <= 0 {
		// Ensure at least 2 points
		if len(data) < 2 {
			return append(data, data[len(data)-1])
		}
		return data
	}
	padded := make([]float64, pad)
	for i := range padded {
		padded[i] = math.NaN()
	}
	padded = append(padded, data...)

	// Ensure ≥ 2 points
	if len(padded) == 1 {
		padded = append(padded, padded[0])
	}
	return padded
}

func renderCharts(status *agent.MeterStatus, levelPlot, barsPlot *widgets.Plot, labelBox *widgets.Paragraph) {
	width, height := ui.TerminalDimensions()
	labelHeight := 4
	if width >= 140 {
		width = 140
	}

	if status != nil {
		labelBox.Text = fmt.Sprintf(
			"Level: %s | Bars: %d/%d | Brightness: %d/15 | Blink: %s",
			levelLabel(status.Level, status.HasLevel),
			status.LitBars,
			status.BarCount,
			status.Brightness,
			status.Blink,
		)

		if status.RiseActive {
			labelBox.Text = fmt.Sprintf("%s | Rising: %s", labelBox.Text, activeLabel(status.RiseActive))
		}
	}

	labelBox.SetRect(0, 0, width, labelHeight)

	if width >= 140 {
		if height >= 25 {
			height = 25
		}
		levelPlot.SetRect(0, labelHeight, 70, height)
		barsPlot.SetRect(70, labelHeight, 140, height)
	} else {
		if height >= 50 {
			height = 50
		}
		midY := (height-labelHeight)/2 + labelHeight
		levelPlot.SetRect(0, labelHeight, 70, midY)
		barsPlot.SetRect(0, midY, 70, height)
	}
}

func buildStatusKeyValues(status agent.MeterStatus) []util.KeyValuePair {
	return []util.KeyValuePair{
		{
			Key:   "Level",
			Value: levelLabel(status.Level, status.HasLevel),
			Style: levelStyle(status),
		},
		{
			Key:   "Lit Bars",
			Value: fmt.Sprintf("%d/%d", status.LitBars, status.BarCount),
			Style: levelStyle(status),
		},
		{
			Key:   "Input Range",
			Value: fmt.Sprintf("%g .. %g", status.Min, status.Max),
			Style: util.OkStyle(),
		},
		{
			Key:   "Noise Threshold",
			Value: fmt.Sprintf("%g", status.Noise),
			Style: util.OkStyle(),
		},
		{
			Key:   "Rising",
			Value: activeLabel(status.RiseActive),
			Style: risingStyle(status.RiseActive),
		},
		{
			Key:   "Low Warnings",
			Value: thresholdLabel(status.Thresholds.LowWarn, status.Thresholds.LowCrit),
			Style: thresholdStyle(status.Thresholds.LowWarn, status.Thresholds.LowCrit),
		},
		{
			Key:   "High Warnings",
			Value: thresholdLabel(status.Thresholds.HighWarn, status.Thresholds.HighCrit),
			Style: thresholdStyle(status.Thresholds.HighWarn, status.Thresholds.HighCrit),
		},
		{
			Key:   "Brightness",
			Value: fmt.Sprintf("%d/15", status.Brightness),
			Style: util.OkStyle(),
		},
		{
			Key:   "Blink",
			Value: status.Blink.String(),
			Style: util.OkStyle(),
		},
	}
}
