package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"atui/chat"
	"atui/config"
	appmodel "atui/model"
)

// Pre-compiled regex patterns for better performance
var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

// refreshViewport rebuilds the transcript from the log and records each
// message's starting line so search can jump to it later.
func (a *AppView) refreshViewport(gotoBottom bool) {
	msgs := a.dataModel.Log.Messages()
	if len(msgs) == 0 {
		a.lineOffsets = map[int64]int{}
		a.viewport.SetContent(DimStyle.Render("No messages yet. Start chatting!"))
		return
	}

	offsets := make(map[int64]int, len(msgs))
	var content strings.Builder
	line := 0

	if a.dataModel.Paginator.Loading() {
		content.WriteString(DimStyle.Render("Loading older messages...") + "\n\n")
		line += 2
	} else if a.dataModel.Paginator.HasMore() {
		older := a.dataModel.Paginator.Total() - a.dataModel.Log.Len()
		content.WriteString(DimStyle.Render(fmt.Sprintf("%d older messages. Scroll past the top to load more.", older)) + "\n\n")
		line += 2
	}

	for _, msg := range msgs {
		offsets[msg.ID] = line
		block := a.renderMessage(msg)
		content.WriteString(block)
		line += strings.Count(block, "\n")
	}

	a.lineOffsets = offsets
	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *AppView) renderMessage(msg chat.Message) string {
	highlightPrefix := ""
	if msg.ID != 0 && msg.ID == a.highlightedID {
		highlightPrefix = HighlightStyle.Render(">>> ")
	}

	timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

	if msg.Role == chat.RoleUser {
		body := msg.Content
		if cached, ok := a.rendered[msg.ID]; ok && cached.width == a.width && msg.Status == chat.StatusSent {
			body = cached.text
		}
		return a.formatUserMessage(highlightPrefix, timestamp, msg, body)
	}

	role := AssistantStyle.Render("Atlas")
	return fmt.Sprintf("%s%s %s\n%s\n\n", highlightPrefix, timestamp, role, a.assistantBody(msg))
}

// formatUserMessage puts a green bar down the left edge of user messages,
// with the delivery state on the header line.
func (a *AppView) formatUserMessage(highlightPrefix, timestamp string, msg chat.Message, body string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	role := UserStyle.Render("You")

	statusNote := ""
	switch msg.Status {
	case chat.StatusSending:
		statusNote = " " + DimStyle.Render("(sending...)")
	case chat.StatusFailed:
		statusNote = " " + ErrorStyle.Render("✗ failed")
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s%s\n", highlightPrefix, bar, timestamp, role, statusNote))

	for _, line := range strings.Split(body, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}

	if msg.Status == chat.StatusFailed && msg.Error != "" {
		retryKey := a.dataModel.Keybindings.DisplayActionKey("retry_failed")
		result.WriteString(fmt.Sprintf("%s %s %s\n", bar,
			ErrorStyle.Render(msg.Error),
			DimStyle.Render("("+retryKey+" to retry)")))
	}

	result.WriteString("\n")
	return result.String()
}

// assistantBody renders one assistant message: thinking first, then tool
// activity, then the prose. Prose comes from the markdown cache once the
// message has settled; live text shows raw with a block cursor.
func (a *AppView) assistantBody(msg chat.Message) string {
	var b strings.Builder
	streaming := msg.Status == chat.StatusStreaming

	thinking := msg.Thinking
	if thinking == "" {
		var parts []string
		for _, blk := range msg.Blocks {
			if blk.Kind == chat.BlockThinking && blk.Content != "" {
				parts = append(parts, blk.Content)
			}
		}
		thinking = strings.Join(parts, "\n")
	}
	if thinking != "" {
		label := "thinking"
		if streaming && msg.Content == "" {
			label = "thinking..."
		}
		b.WriteString(ThinkingStyle.Render("◈ "+label) + "\n")
		for _, line := range strings.Split(strings.TrimRight(thinking, "\n"), "\n") {
			b.WriteString(ThinkingStyle.Render("  "+line) + "\n")
		}
	}

	for _, blk := range msg.Blocks {
		if blk.Kind != chat.BlockToolCall {
			continue
		}
		state := "running"
		if blk.IsComplete {
			state = "done"
		}
		b.WriteString(ToolStyle.Render(fmt.Sprintf("⚙ %s (%s)", blk.ToolName, state)) + "\n")
		if blk.IsComplete && blk.ToolResult != "" {
			b.WriteString(DimStyle.Render("  "+toolResultPreview(blk.ToolResult)) + "\n")
		}
	}

	switch {
	case streaming && msg.Content != "":
		b.WriteString(msg.Content + "▋")
	case streaming && b.Len() == 0:
		b.WriteString(a.loadingSpinner.View() + " Thinking...")
	case streaming:
		b.WriteString(a.loadingSpinner.View())
	default:
		if cached, ok := a.rendered[msg.ID]; ok && cached.width == a.width {
			b.WriteString(cached.text)
		} else {
			b.WriteString(msg.Content)
		}
	}

	return b.String()
}

func toolResultPreview(result string) string {
	line := result
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return runewidth.Truncate(line, 80, "...")
}

// scrollToMessage centers the viewport on a message, clamped to the
// scrollable range.
func (a *AppView) scrollToMessage(id int64) {
	start, ok := a.lineOffsets[id]
	if !ok {
		a.viewport.GotoBottom()
		return
	}

	offset := start - a.viewport.Height/2
	offset = max(offset, 0)

	totalLines := a.viewport.TotalLineCount()
	if offset > totalLines-a.viewport.Height {
		offset = totalLines - a.viewport.Height
	}
	offset = max(offset, 0)

	a.viewport.SetYOffset(offset)
}

// renderPendingMarkdown queues async renders for settled messages that
// have no cached render at the current width. Newest first, since the
// viewport sits at the bottom.
func (a AppView) renderPendingMarkdown() tea.Cmd {
	if a.width == 0 {
		return nil
	}

	var cmds []tea.Cmd
	msgs := a.dataModel.Log.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.ID == 0 || msg.Status != chat.StatusSent {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if cached, ok := a.rendered[msg.ID]; ok && cached.width == a.width {
			continue
		}
		cmds = append(cmds, a.renderMarkdownCmd(msg.ID, msg.Content))
	}

	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (a AppView) renderMarkdownCmd(id int64, content string) tea.Cmd {
	width := a.width
	return func() tea.Msg {
		startTime := time.Now()

		// Strip markdown link syntax [text](url) so every link appears
		// as a plain URL the terminal itself can make clickable.
		content = preprocessLinks(content)

		// Autolink stays disabled for the same reason.
		ext := markdown.Extensions() &^ parser.Autolink
		p := parser.NewWithExtensions(ext)
		r := markdown.NewRenderer(width-4, 0)
		doc := p.Parse([]byte(content))
		rendered := gomarkdown.Render(doc, r)

		processed := postProcessMarkdown(string(rendered), width)

		if config.DebugLog != nil {
			config.DebugLog.Printf("[Markdown] message %d rendered in %v", id, time.Since(startTime))
		}

		return appmodel.MarkdownRenderedMsg{
			MessageID: id,
			Width:     width,
			Rendered:  strings.TrimRight(processed, "\n"),
		}
	}
}

func postProcessMarkdown(rendered string, width int) string {
	// 1. Fix inline code: blue background to red text (glamour style)
	rendered = fixInlineCode(rendered)

	// 2. Color plain URLs red (autolink disabled keeps URLs plain)
	rendered = fixMarkdownLinks(rendered)

	// 3. Frame code blocks with horizontal rules
	rendered = frameCodeBlocks(rendered, width)

	return rendered
}

func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

func fixInlineCode(s string) string {
	// Replace: \x1b[44;3m...text...\x1b[0m (blue BG + italic)
	// With:    \x1b[31m...text...\x1b[0m (red text)
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func fixMarkdownLinks(s string) string {
	redColor := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")

	for i, line := range lines {
		// Skip code blocks (they carry a ┃ prefix from the renderer)
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, redColor+"$1"+reset)
		}
	}

	return strings.Join(lines, "\n")
}

func frameCodeBlocks(s string, width int) string {
	lines := strings.Split(s, "\n")
	var result []string
	var codeBlockLines []string
	inCodeBlock := false

	darkGray := "\x1b[90m"
	reset := "\x1b[0m"

	for _, line := range lines {
		// Code block lines carry the renderer's ┃ prefix
		if strings.Contains(line, "┃") {
			if !inCodeBlock {
				inCodeBlock = true
				codeBlockLines = []string{}
				result = append(result, "")

				// Top border with a [code] label centered in it
				label := "[code]"
				lineLen := width - 4
				leftLen := (lineLen - len(label)) / 2
				rightLen := lineLen - len(label) - leftLen
				border := darkGray + strings.Repeat("━", leftLen) + reset + label + darkGray + strings.Repeat("━", rightLen) + reset

				result = append(result, border)
				result = append(result, "")
			}

			codeBlockLines = append(codeBlockLines, stripCodeBlockPrefix(line))
		} else {
			if inCodeBlock {
				result = append(result, codeBlockLines...)
				result = append(result, "")
				border := darkGray + strings.Repeat("━", width-4) + reset
				result = append(result, border)
				result = append(result, "")

				codeBlockLines = nil
				inCodeBlock = false
			}
			result = append(result, line)
		}
	}

	if inCodeBlock && len(codeBlockLines) > 0 {
		result = append(result, codeBlockLines...)
		result = append(result, "")
		border := darkGray + strings.Repeat("━", width-4) + reset
		result = append(result, border)
		result = append(result, "")
	}

	return strings.Join(result, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, "┃")
	if idx >= 0 {
		after := idx + len("┃")
		if after < len(line) && line[after] == ' ' {
			after++
		}
		if after < len(line) {
			return line[after:]
		}
		return ""
	}
	return line
}
