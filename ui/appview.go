package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"atui/api"
	"atui/chat"
	"atui/config"
	appmodel "atui/model"
	"atui/storage"
)

// renderedMarkdown is one cached render; stale widths re-render.
type renderedMarkdown struct {
	width int
	text  string
}

type AppView struct {
	// Reference to core data model
	dataModel *appmodel.Model

	// Resolved keybindings
	keys keymap

	// UI Components
	viewport viewport.Model
	textarea textarea.Model

	// Window state
	width  int
	height int
	ready  bool

	// Spinner shown between send and the first stream event
	loadingSpinner spinner.Model

	// Markdown render cache per message id. The map is shared across
	// value-receiver copies on purpose.
	rendered map[int64]renderedMarkdown

	// Starting viewport line of each message, rebuilt on every repaint.
	// Search jumps use it to land on a match.
	lineOffsets map[int64]int

	// Repaint loop state while a turn streams
	ticking bool

	showHelp bool

	// Conversation switcher
	showSwitcher      bool
	selectedConvIdx   int
	convFilterMode    bool
	convFilterInput   textinput.Model
	filteredConvs     []storage.CachedConversation
	convRenameMode    bool
	convRenameInput   textinput.Model
	confirmDeleteConv *storage.CachedConversation

	// Message search
	showSearch        bool
	searchInput       textinput.Model
	searchLocal       []storage.MessageMatch
	searchGlobal      []storage.SearchResult
	selectedSearchIdx int
	searchScrollIdx   int

	// Edit-resend modal
	showEditModal   bool
	editInput       textarea.Model
	editTargetIndex int

	// Toast line shown in place of the status bar
	activeToast *chat.Toast

	// Search jump state
	pendingScrollToID int64
	highlightedID     int64
}

func NewAppView(cfg *config.Config, keys *config.KeyBindingsConfig, client *api.Client, cache *storage.Cache, creds *config.CredentialStore, version string) AppView {
	dataModel := appmodel.NewModel(cfg, keys, client, cache, creds, version)

	ta := newChatTextarea()
	vp := viewport.New(0, 0)

	convFilterInput := textinput.New()
	convFilterInput.Prompt = "Filter: "
	convFilterInput.CharLimit = 64

	convRenameInput := textinput.New()
	convRenameInput.Width = 50
	convRenameInput.CharLimit = 100

	searchInput := textinput.New()
	searchInput.Prompt = "Search: "
	searchInput.CharLimit = 100

	editInput := textarea.New()
	editInput.SetWidth(60)
	editInput.SetHeight(5)
	editInput.CharLimit = 0
	editInput.ShowLineNumbers = false
	editInput.Placeholder = "Edit your message"
	editInput.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	return AppView{
		dataModel:       dataModel,
		keys:            newKeymap(keys),
		textarea:        ta,
		viewport:        vp,
		loadingSpinner:  sp,
		rendered:        make(map[int64]renderedMarkdown),
		lineOffsets:     make(map[int64]int),
		convFilterInput: convFilterInput,
		convRenameInput: convRenameInput,
		searchInput:     searchInput,
		editInput:       editInput,
		filteredConvs:   []storage.CachedConversation{},
	}
}

func (a AppView) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		a.dataModel.FetchConversations(),
		a.dataModel.PingBackend(),
	}

	// Reopen the conversation the last run ended on.
	if a.dataModel.Cache != nil {
		if last := a.dataModel.Cache.LoadLastConversationID(); last != chat.NoConversation {
			cmds = append(cmds, a.dataModel.OpenConversation(last))
		}
	}

	return tea.Batch(cmds...)
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading ATUI..."
	}

	// Modal rendering order (top to bottom layers):
	// 1. Help (always on top)
	// 2. Edit-resend
	// 3. Conversation switcher (delete confirmation renders inside it)
	// 4. Message search

	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}

	if a.showEditModal {
		return renderEditModal(a.editInput, a.width, a.height)
	}

	if a.showSwitcher {
		return renderConversationSwitcher(
			a.dataModel.Conversations,
			a.selectedConvIdx,
			a.dataModel.Log.ConversationID(),
			a.convRenameMode,
			a.convRenameInput,
			a.confirmDeleteConv,
			a.convFilterMode,
			a.convFilterInput,
			a.filteredConvs,
			a.width,
			a.height,
		)
	}

	if a.showSearch {
		return renderMessageSearch(
			a.searchInput,
			a.searchLocal,
			a.searchGlobal,
			a.selectedSearchIdx,
			a.searchScrollIdx,
			a.width,
			a.height,
		)
	}

	// Title bar - "ATUI - model - conversation | status"
	atuiText := AssistantStyle.Render("ATUI")
	modelText := TitleStyle.Render(fmt.Sprintf(" - %s", a.dataModel.Controller.Model()))
	convText := UserStyle.Render(fmt.Sprintf(" - %s", a.dataModel.ActiveTitle()))

	statusText := ""
	if !a.dataModel.BackendUp {
		statusText = ErrorStyle.Render(" | offline")
	}

	countText := ""
	if total := a.dataModel.Paginator.Total(); total > a.dataModel.Log.Len() {
		countText = DimStyle.Render(fmt.Sprintf(" | %d of %d messages", a.dataModel.Log.Len(), total))
	}

	title := atuiText + modelText + convText + statusText + countText

	// Separator with bottom margin for header (empty line forces spacing)
	separator := ""

	viewportView := a.viewport.View()
	inputView := a.textarea.View()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		separator,
		viewportView,
		inputView,
		a.renderStatusLine(),
	)
}

// renderStatusLine shows the active toast when one is up, the key hints
// otherwise.
func (a AppView) renderStatusLine() string {
	if a.activeToast != nil {
		line := toastStyle(string(a.activeToast.Variant)).Render(a.activeToast.Message)
		if a.activeToast.Retry {
			line += DimStyle.Render(fmt.Sprintf("  (%s to retry)", a.dataModel.Keybindings.DisplayActionKey("retry_failed")))
		}
		return line
	}

	kb := a.dataModel.Keybindings
	descStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)

	if a.dataModel.Controller.Busy() {
		statusBar := fmt.Sprintf("%s %s  %s %s",
			kb.DisplayActionKey("stop_generation"), descStyle.Render("Stop"),
			kb.DisplayActionKey("quit"), descStyle.Render("Quit"),
		)
		return StatusStyle.Render(statusBar)
	}

	statusBar := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  Enter %s  Alt+Enter %s  %s %s",
		kb.DisplayActionKey("quit"), descStyle.Render("Quit"),
		kb.DisplayActionKey("conversation_switcher"), descStyle.Render("Chats"),
		kb.DisplayActionKey("search_messages"), descStyle.Render("Search"),
		kb.DisplayActionKey("new_chat"), descStyle.Render("New"),
		kb.DisplayActionKey("help"), descStyle.Render("Help"),
		descStyle.Render("Send"),
		descStyle.Render("New Line"),
		kb.DisplayActionKey("yank_last_response"), descStyle.Render("Copy"),
	)
	return StatusStyle.Render(statusBar)
}

// conversationList returns the list the switcher is currently showing.
func (a AppView) conversationList() []storage.CachedConversation {
	if a.convFilterMode && len(a.filteredConvs) > 0 {
		return a.filteredConvs
	}
	return a.dataModel.Conversations
}

func (a *AppView) closeAllModals() {
	a.showHelp = false
	a.showSwitcher = false
	a.showSearch = false
	a.showEditModal = false

	a.convFilterMode = false
	a.convRenameMode = false
	a.confirmDeleteConv = nil

	if a.convFilterInput.Focused() {
		a.convFilterInput.Blur()
	}
	if a.convRenameInput.Focused() {
		a.convRenameInput.Blur()
	}
	if a.searchInput.Focused() {
		a.searchInput.Blur()
	}
	if a.editInput.Focused() {
		a.editInput.Blur()
	}
	a.textarea.Focus()
}

func newChatTextarea() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about jobs, machines, schedules... (Alt+Enter for a new line)"
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter inserts a newline; Enter alone sends and is handled in
	// Update before the textarea sees it.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	return ta
}
