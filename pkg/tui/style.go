package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// UI styles and layout settings
// Color palette "Blue Moon" from https://gogh-co.github.io/Gogh/
const (
	colorGray     = "#353b52"
	colorWhite    = "#ffffff"
	colorGreen    = "#acfab4"
	colorGreenDim = "#b4c4b4"
	colorRed      = "#e61f44"
	colorRedDim   = "#d06178"
	colorPurple   = "#b9a3eb"
	colorBlue     = "#89ddff"

	marqueeTickDuration = time.Duration(time.Second / 20)
	marqueeGap          = "    "

	bordersAndPaddingWidth = 4
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue)).
			Background(lipgloss.Color(colorGray)).
			Padding(0, 2).Align(lipgloss.Center)
	subtitleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue))
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)).
			Background(lipgloss.Color(colorGreen))
	dangerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorGray)).
				Background(lipgloss.Color(colorRed))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWhite))
	archivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreenDim)).Strikethrough(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlue))
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPurple))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray))
)

// TextStatusColorize colors text by status.
// 0 (default) - unknown, 1 - green, 2 - red
func TextStatusColorize(text string, status int) string {
	switch status {
	case 1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreenDim)).Render(text)
	case 2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorRedDim)).Render(text)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)).Render(text)
	}
}

// Generates pointer symbol when line in focus
func generateLinePointer(isPoint bool, length int) string {
	if isPoint {
		return ">" + strings.Repeat(" ", length-1)
	}
	return strings.Repeat(" ", length)
}

// Scrolls text that does not fit into availableWidth
func (m model) marqueeText(text string, availableWidth int) string {
	if len(text) <= availableWidth || availableWidth <= 0 {
		return text
	}
	paddedText := text + marqueeGap + text
	offset := m.marqueeOffset % (len(text) + len(marqueeGap))
	return paddedText[offset : offset+availableWidth]
}

// Cuts text that does not fit into availableWidth
func truncateText(text string, availableWidth int) string {
	if len(text) > availableWidth && availableWidth > 3 {
		return text[:availableWidth-2] + ".."
	}
	return text
}

func (m model) dynamicColumnWidth() (int, int, int) {
	var leftWidth, middleWidth, rightWidth int
	if m.dynamicWidth {
		// Dynamic widths based on focus
		switch m.columnFocus {
		case 0: // Projects column focused
			leftWidth = (m.width * 30) / 100
			middleWidth = (m.width * 40) / 100
		case 1: // Items column focused
			leftWidth = (m.width * 20) / 100
			middleWidth = (m.width * 40) / 100
		default: // Item details focused
			leftWidth = (m.width * 20) / 100
			middleWidth = (m.width * 20) / 100
		}
		rightWidth = m.width - (leftWidth + middleWidth)
	} else {
		// Fixed widths (25%, 25%, 50%)
		halfWidth := m.width / 2
		leftWidth = halfWidth / 2
		middleWidth = halfWidth - leftWidth
		rightWidth = m.width - (leftWidth + middleWidth)
	}
	return leftWidth, middleWidth, rightWidth
}
