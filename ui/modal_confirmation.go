package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmationState is a pending yes/no question. Only destructive
// actions ask one, so the title always renders in the warning color.
type ConfirmationState struct {
	Active  bool
	Title   string
	Message string
}

func RenderConfirmationModal(state ConfirmationState, width, height int) string {
	modalWidth := 60
	if width < modalWidth+10 {
		modalWidth = width - 10
	}

	lineStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	var lines []string
	for _, line := range strings.Split(state.Message, "\n") {
		lines = append(lines, lineStyle.Render(line))
	}

	footer := FormatFooter("y", "Yes", "n", "No")
	return RenderThreeSectionModal(state.Title, lines, footer, ModalTypeWarning, modalWidth, width, height)
}
