package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"atui/storage"
)

func renderConversationSwitcher(conversations []storage.CachedConversation, selectedIdx int, activeID int64, renameMode bool, renameInput textinput.Model, confirmDelete *storage.CachedConversation, filterMode bool, filterInput textinput.Model, filtered []storage.CachedConversation, width, height int) string {
	// Modal dimensions
	modalWidth := width - 10
	if modalWidth > 110 {
		modalWidth = 110
	}
	modalHeight := height - 6

	// Delete confirmation takes over the whole modal
	if confirmDelete != nil {
		warningText := lipgloss.NewStyle().Foreground(dangerColor).Render("This removes it from the backend and the local cache.")
		title := confirmDelete.Title
		if title == "" {
			title = "Untitled"
		}
		return RenderConfirmationModal(ConfirmationState{
			Active:  true,
			Title:   "⚠ Delete Conversation",
			Message: fmt.Sprintf("Are you sure you want to delete:\n\n\"%s\"\n\n%s", title, warningText),
		}, width, height)
	}

	// Title section (no borders)
	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Conversations")

	// Header: filter input or count
	var header string
	if filterMode {
		header = filterInput.View()
	} else {
		header = fmt.Sprintf("%d conversations", len(conversations))
		if len(conversations) == 1 {
			header = "1 conversation"
		}
	}

	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	displayList := conversations
	if filterMode && len(filtered) > 0 {
		displayList = filtered
	}

	var listLines []string
	maxLines := modalHeight - 8 // Reserve space for title, borders, header, footer

	if len(displayList) == 0 {
		emptyMsg := "No conversations yet. Start chatting to create one!"
		if filterMode {
			emptyMsg = "No matches found"
		}
		styled := lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render(emptyMsg)
		listLines = append(listLines, styled)
	} else {
		startIdx := 0
		endIdx := len(displayList)

		// Keep the selection roughly centered once the list overflows
		if len(displayList) > maxLines {
			if selectedIdx < maxLines/2 {
				endIdx = maxLines
			} else if selectedIdx >= len(displayList)-maxLines/2 {
				startIdx = len(displayList) - maxLines
			} else {
				startIdx = selectedIdx - maxLines/2
				endIdx = startIdx + maxLines
			}
		}

		for i := startIdx; i < endIdx && i < len(displayList); i++ {
			conv := displayList[i]

			indicator := "  "
			if i == selectedIdx {
				indicator = "▶ "
			}

			title := conv.Title
			if title == "" {
				title = "Untitled"
			}
			maxTitleWidth := modalWidth - 50 // Room for preview, time and padding

			var titleDisplay string
			if renameMode && i == selectedIdx {
				titleDisplay = lipgloss.NewStyle().
					Foreground(accentColor).
					Bold(true).
					Render(renameInput.View())
			} else {
				titleDisplay = runewidth.Truncate(title, maxTitleWidth, "...")
			}

			isActive := conv.ID == activeID && !renameMode

			preview := strings.ReplaceAll(conv.LastMessagePreview, "\n", " ")
			preview = runewidth.Truncate(preview, 30, "...")

			timeAgo := formatTimeAgo(conv.UpdatedAt)

			titleStyled := titleDisplay
			if i == selectedIdx {
				titleStyled = lipgloss.NewStyle().Foreground(successColor).Bold(true).Render(titleDisplay)
			} else if conv.ID == activeID {
				titleStyled = lipgloss.NewStyle().Foreground(accentColor).Bold(true).Render(titleDisplay)
			}

			leftSide := indicator + titleStyled

			rightSide := fmt.Sprintf("%-30s  %8s", preview, timeAgo)

			// Spacing uses visual widths so the styling codes cannot wrap
			// the line.
			leftVisualWidth := len(indicator) + runewidth.StringWidth(titleDisplay)
			spacing := modalWidth - 4 - leftVisualWidth - runewidth.StringWidth(rightSide)
			if isActive {
				spacing -= 10 // " (current)"
			}
			if spacing < 2 {
				spacing = 2
			}

			if isActive {
				markerColor := accentColor
				if i == selectedIdx {
					markerColor = successColor
				}
				leftSide += " " + lipgloss.NewStyle().Foreground(markerColor).Render("(current)")
			}

			rightStyled := rightSide
			if i == selectedIdx {
				rightStyled = lipgloss.NewStyle().Foreground(successColor).Bold(true).Render(rightSide)
			} else if conv.ID == activeID {
				rightStyled = lipgloss.NewStyle().Foreground(accentColor).Bold(true).Render(rightSide)
			} else {
				rightStyled = DimStyle.Render(rightSide)
			}

			styledLine := fmt.Sprintf("  %s%s%s  ", leftSide, strings.Repeat(" ", spacing), rightStyled)

			listLines = append(listLines, lipgloss.NewStyle().Width(modalWidth).Render(styledLine))
		}
	}

	emptyLine := strings.Repeat(" ", modalWidth)
	listLines = append([]string{emptyLine}, listLines...)
	listLines = append(listLines, emptyLine)

	var footerText string
	if renameMode {
		footerText = FormatFooter("Enter", "Save", "Esc", "Cancel")
	} else if filterMode {
		footerText = FormatFooter("Type", "to filter", "↑/↓", "Navigate", "Enter", "Open", "Esc", "Cancel")
	} else {
		footerText = FormatFooter("/", "Filter", "j/k", "Navigate", "Enter", "Open", "n", "New", "r", "Rename", "x", "Export", "d", "Delete", "Esc", "Close")
	}
	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footerText)

	sections := []string{titleSection, headerSection}
	sections = append(sections, listLines...)
	sections = append(sections, footerSection)

	content := strings.Join(sections, "\n")

	modalStyle := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return modalStyle.Render(content)
}

// formatTimeAgo formats a time as a relative string (e.g., "2h ago", "3d ago")
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	} else if duration < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	} else if duration < 30*24*time.Hour {
		return fmt.Sprintf("%dw ago", int(duration.Hours()/24/7))
	} else {
		return fmt.Sprintf("%dmo ago", int(duration.Hours()/24/30))
	}
}
