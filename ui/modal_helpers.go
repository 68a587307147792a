package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ModalType determines the color and styling of a modal
type ModalType int

const (
	ModalTypeInfo ModalType = iota
	ModalTypeWarning
	ModalTypeError
)

func (t ModalType) color() lipgloss.Color {
	switch t {
	case ModalTypeWarning:
		return warningColor
	case ModalTypeError:
		return dangerColor
	default:
		return accentColor
	}
}

// sectionBorder is the horizontal rule above the message and footer sections.
var sectionBorder = lipgloss.NewStyle().
	BorderTop(true).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(dimColor)

// RenderThreeSectionModal renders a borderless modal in three stacked
// sections: a colored title, the message block, and a dim footer.
// messageLines arrive pre-formatted; vertical padding is added here.
// footer should come from FormatFooter() or be a simple string.
// desiredWidth 0 means the default 60.
func RenderThreeSectionModal(title string, messageLines []string, footer string, modalType ModalType, desiredWidth, width, height int) string {
	modalWidth := desiredWidth
	if modalWidth == 0 {
		modalWidth = 60
	}
	if width < modalWidth+10 {
		modalWidth = width - 10
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(modalType.color()).
		Render(centerTitle(title, modalWidth))

	blank := strings.Repeat(" ", modalWidth)
	body := make([]string, 0, len(messageLines)+2)
	body = append(body, blank)
	body = append(body, messageLines...)
	body = append(body, blank)

	messageSection := sectionBorder.
		Width(modalWidth).
		Render(strings.Join(body, "\n"))

	footerSection := sectionBorder.
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render(footer)

	modal := lipgloss.JoinVertical(lipgloss.Left, titleSection, messageSection, footerSection)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}

// centerTitle pads the title by eye. Width is measured with runewidth so
// emoji count double, and the left pad shifts 2 cells for visual balance
// against the section rules below.
func centerTitle(title string, modalWidth int) string {
	visual := runewidth.StringWidth(title)
	leftPad := (modalWidth-visual)/2 - 2
	if leftPad < 0 {
		leftPad = 0
	}
	rightPad := modalWidth - visual - leftPad
	if rightPad < 0 {
		rightPad = 0
	}
	return strings.Repeat(" ", leftPad) + title + strings.Repeat(" ", rightPad)
}
