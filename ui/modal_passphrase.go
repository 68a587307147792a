package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PassphraseModal prompts for the SSH key passphrase that guards the
// encrypted credential store. It runs as its own program before the main
// UI starts, so a locked store never blocks inside the chat view.
type PassphraseModal struct {
	keyPath   string
	input     textinput.Model
	err       string
	width     int
	height    int
	cancelled bool
}

func NewPassphraseModal(keyPath string) PassphraseModal {
	input := textinput.New()
	input.Placeholder = "Enter passphrase"
	input.Width = 50
	input.CharLimit = 200
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.Focus()

	return PassphraseModal{
		keyPath: keyPath,
		input:   input,
	}
}

// WithError returns a copy that opens showing an error line. Used when
// re-prompting after a wrong passphrase.
func (m PassphraseModal) WithError(msg string) PassphraseModal {
	m.err = msg
	return m
}

func (m PassphraseModal) Init() tea.Cmd {
	return textinput.Blink
}

func (m PassphraseModal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "enter":
			if m.input.Value() == "" {
				m.err = "Passphrase cannot be empty"
				return m, nil
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m PassphraseModal) View() string {
	// Rendering happens before the first WindowSizeMsg too.
	if m.width < 20 || m.height < 10 {
		return "Terminal too small"
	}

	modalWidth := 70
	if m.width < modalWidth+10 {
		modalWidth = m.width - 10
		if modalWidth < 10 {
			modalWidth = 10
		}
	}

	lineStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	lines := []string{
		lineStyle.Render("The credential store is locked by an SSH key passphrase."),
		lineStyle.Render("Key: " + m.keyPath),
		lineStyle.Render("Please enter the passphrase:"),
		lineStyle.Render(""),
		lineStyle.Render(m.input.View()),
	}

	if m.err != "" {
		errStyle := lipgloss.NewStyle().Foreground(dangerColor).Bold(true)
		lines = append(lines,
			lineStyle.Render(""),
			lineStyle.Render(errStyle.Render("⚠ "+m.err)),
		)
	}

	footer := FormatFooter("Enter", "Continue", "Esc", "Cancel")
	return RenderThreeSectionModal("SSH Key Passphrase Required", lines, footer, ModalTypeInfo, modalWidth, m.width, m.height)
}

// GetPassphrase returns the entered passphrase (empty if cancelled)
func (m PassphraseModal) GetPassphrase() string {
	if m.cancelled {
		return ""
	}
	return m.input.Value()
}

// IsCancelled returns true if user pressed Esc
func (m PassphraseModal) IsCancelled() bool {
	return m.cancelled
}
