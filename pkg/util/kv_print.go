package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ColorCritical = lipgloss.Color("#cc0000")
	ColorWarning  = lipgloss.Color("#e69138")
	ColorOk       = lipgloss.Color("#04B575")
	ColorUnknown  = lipgloss.Color("#68228B")
)

func OkStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorOk)
}

// KeyValuePair is one row of an aligned, styled key/value listing.
type KeyValuePair struct {
	Key   string
	Value string
	Style lipgloss.Style
}

// PrintKeyValues renders the pairs with keys bold and right-padded to a
// common width.
func PrintKeyValues(pairs []KeyValuePair) string {
	width := 0
	for _, pair := range pairs {
		if len(pair.Key) > width {
			width = len(pair.Key)
		}
	}

	keyStyle := lipgloss.NewStyle().Bold(true).Width(width + 1)

	var sb strings.Builder
	for _, pair := range pairs {
		sb.WriteString(keyStyle.Render(pair.Key + ":"))
		sb.WriteString(" ")
		sb.WriteString(pair.Style.Render(pair.Value))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
