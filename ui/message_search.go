package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"atui/storage"
)

// Fixed overhead of the search modal:
// Border(2) + Padding(2) + Title(1) + Blank(1) + SearchInput(1) + Blank(1) +
// "Found X matches:"(1) + Blank(1) + Footer(1) + Blank(1) = 12 lines
const searchFixedOverhead = 12

// Conservative estimate that survives worst-case preview wrapping.
const searchLinesPerResult = 6

// searchMaxVisible computes how many results fit in the modal. The key
// handler uses the same number to keep the selection on screen.
func searchMaxVisible(height int) int {
	scrollIndicatorSpace := 4 // "↑ X more above" (2) + "↓ X more below" (2)

	availableLines := height - searchFixedOverhead - scrollIndicatorSpace
	if availableLines < 3 {
		availableLines = 3
	}

	maxVisible := availableLines / searchLinesPerResult
	if maxVisible < 1 {
		maxVisible = 1
	}
	return maxVisible
}

// renderMessageSearch draws the search modal. Hits in the open
// conversation come first, then hits from the cached history of every
// other conversation.
func renderMessageSearch(searchInput textinput.Model, local []storage.MessageMatch, global []storage.SearchResult, selectedIdx, scrollIdx, width, height int) string {
	modalWidth := width - 4
	if modalWidth > 100 {
		modalWidth = 100
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2)

	title := TitleStyle.Render("🔍 Search Messages")
	searchView := searchInput.View()

	total := len(local) + len(global)

	resultsView := ""
	if total == 0 {
		if searchInput.Value() == "" {
			resultsView = DimStyle.Render("Type to search this conversation and the cached history...")
		} else {
			resultsView = DimStyle.Render("No matches found")
		}
	} else {
		maxVisibleResults := searchMaxVisible(height)

		startIdx := scrollIdx
		endIdx := scrollIdx + maxVisibleResults
		if endIdx > total {
			endIdx = total
		}

		resultsView = fmt.Sprintf("Found %d matches:\n\n", total)

		if startIdx > 0 {
			resultsView += DimStyle.Render(fmt.Sprintf("↑ %d more above\n\n", startIdx))
		}

		for i := startIdx; i < endIdx; i++ {
			var matchText string

			if i < len(local) {
				match := local[i]

				roleStyle := UserStyle
				if match.Role == "assistant" {
					roleStyle = AssistantStyle
				}

				matchText = fmt.Sprintf("%s [%s] %s\n  %s",
					roleStyle.Render(match.Role),
					match.Timestamp.Format("Jan 2, 3:04 PM"),
					DimStyle.Render("(this conversation)"),
					match.Preview,
				)
			} else {
				result := global[i-len(local)]

				convTitle := result.Title
				if convTitle == "" {
					convTitle = "Untitled"
				}

				matchText = fmt.Sprintf("%s [%s] %s\n  %s",
					AssistantStyle.Render(convTitle),
					result.CreatedAt.Format("Jan 2, 3:04 PM"),
					DimStyle.Render(result.Role),
					result.Preview,
				)
			}

			if i == selectedIdx {
				matchText = SelectedStyle.Render("> " + matchText)
			} else {
				matchText = "  " + matchText
			}

			resultsView += matchText + "\n\n"
		}

		if endIdx < total {
			resultsView += DimStyle.Render(fmt.Sprintf("↓ %d more below", total-endIdx))
		}
	}

	footer := FormatFooter("Type", "to search", "↑/↓", "Navigate", "Enter", "Jump", "Esc", "Close")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		searchView,
		"",
		resultsView,
		"",
		footer,
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		modalStyle.Width(modalWidth).Render(content))
}
