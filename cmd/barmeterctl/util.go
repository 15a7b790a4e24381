package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/barmeter-community/barmeter-agent/pkg/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/util"
)

func levelLabel(level float64, hasLevel bool) string {
	if !hasLevel {
		return "Not set"
	}
	return fmt.Sprintf("%g", level)
}

func activeLabel(b bool) string {
	if b {
		return "Active"
	}
	return "Off"
}

func thresholdLabel(warn, crit int) string {
	if warn == 0 && crit == 0 {
		return "Not set"
	}
	return fmt.Sprintf("warn at %d bars, crit at %d bars", warn, crit)
}

func levelStyle(status agent.MeterStatus) lipgloss.Style {
	color := util.ColorOk

	if !status.HasLevel {
		color = util.ColorUnknown
	} else if crit := status.Thresholds.LowCrit; crit > 0 && status.LitBars <= crit {
		color = util.ColorCritical
	} else if warn := status.Thresholds.LowWarn; warn > 0 && status.LitBars <= warn {
		color = util.ColorWarning
	} else if crit := status.Thresholds.HighCrit; crit > 0 && status.LitBars >= crit {
		color = util.ColorCritical
	} else if warn := status.Thresholds.HighWarn; warn > 0 && status.LitBars >= warn {
		color = util.ColorWarning
	}

	return lipgloss.NewStyle().Foreground(color)
}

func risingStyle(active bool) lipgloss.Style {
	if active {
		return lipgloss.NewStyle().Foreground(util.ColorWarning)
	}

	return lipgloss.NewStyle().Foreground(util.ColorOk)
}

func thresholdStyle(warn, crit int) lipgloss.Style {
	if warn == 0 && crit == 0 {
		return lipgloss.NewStyle().Foreground(util.ColorUnknown)
	}

	return lipgloss.NewStyle().Foreground(util.ColorOk)
}
