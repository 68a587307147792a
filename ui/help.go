package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// helpEntry is one row of the help modal. Entries bind to an action name
// so remapped keys show up correctly; fixed keys set key directly.
type helpEntry struct {
	action string
	key    string
	desc   string
}

type helpSection struct {
	title   string
	entries []helpEntry
}

// helpLayout is the modal content, one slice per column.
var helpLayout = [2][]helpSection{
	{
		{"Global Actions", []helpEntry{
			{action: "new_chat", desc: "New chat"},
			{action: "conversation_switcher", desc: "Conversations"},
			{action: "search_messages", desc: "Search messages"},
			{action: "help", desc: "Toggle this help"},
			{action: "quit", desc: "Quit"},
		}},
		{"Tips", []helpEntry{
			{desc: "Scroll past the top to load older messages"},
			{desc: "Text selection works! (Mouse)"},
			{desc: "Otherwise, keyboard only!"},
		}},
	},
	{
		{"Chat Navigation", []helpEntry{
			{action: "scroll_down_line", desc: "Scroll down 1 line"},
			{action: "scroll_up_line", desc: "Scroll up 1 line"},
			{action: "scroll_down", desc: "Full page down"},
			{action: "scroll_up", desc: "Full page up"},
			{action: "scroll_to_top", desc: "Jump to top"},
			{action: "scroll_to_bottom", desc: "Jump to bottom"},
		}},
		{"Chat Actions", []helpEntry{
			{key: "Enter", desc: "Send message"},
			{action: "stop_generation", desc: "Stop generation"},
			{action: "retry_failed", desc: "Retry failed send"},
			{action: "regenerate", desc: "Regenerate response"},
			{action: "edit_resend", desc: "Edit and resend"},
			{action: "yank_last_response", desc: "Copy last response"},
			{action: "clear_input", desc: "Clear input"},
		}},
	},
}

func (a AppView) renderHelpModal(width, height int) string {
	kb := a.dataModel.Keybindings
	heading := lipgloss.NewStyle().Foreground(accentColor)

	section := func(s helpSection) string {
		lines := []string{heading.Render("## " + s.title)}
		for _, e := range s.entries {
			switch {
			case e.action != "":
				lines = append(lines, fmt.Sprintf("• %-13s %s", kb.DisplayActionKey(e.action), e.desc))
			case e.key != "":
				lines = append(lines, fmt.Sprintf("• %-13s %s", e.key, e.desc))
			default:
				lines = append(lines, "• "+e.desc)
			}
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	columnStyle := lipgloss.NewStyle().Width(42).PaddingLeft(8)
	var columns []string
	for _, col := range helpLayout {
		var blocks []string
		for _, s := range col {
			if len(blocks) > 0 {
				blocks = append(blocks, "")
			}
			blocks = append(blocks, section(s))
		}
		columns = append(columns, columnStyle.Render(lipgloss.JoinVertical(lipgloss.Left, blocks...)))
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor).
		Render("ATUI - Keyboard Shortcuts")

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("Press %s or Esc to close this help", kb.DisplayActionKey("help")))

	body := lipgloss.JoinHorizontal(lipgloss.Top, columns[0], "    ", columns[1])
	content := lipgloss.JoinVertical(lipgloss.Center, title, "", body, "", footer)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(100)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
