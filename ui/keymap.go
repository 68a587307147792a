package ui

import (
	"atui/config"
)

// keymap holds the resolved key string for every action so Update can
// compare against msg.String() directly. Resolution happens once at
// startup; changing keybindings.toml needs a restart.
type keymap struct {
	stopGeneration string
	retryFailed    string
	regenerate     string
	editResend     string
	newChat        string
	yankResponse   string
	switcher       string
	search         string
	help           string
	quit           string
	clearInput     string

	scrollUp       string
	scrollDown     string
	scrollUpLine   string
	scrollDownLine string
	scrollTop      string
	scrollBottom   string

	listUp     string
	listDown   string
	listSelect string
	listDelete string
	closeModal string
}

func newKeymap(kb *config.KeyBindingsConfig) keymap {
	return keymap{
		stopGeneration: kb.GetActionKey("stop_generation"),
		retryFailed:    kb.GetActionKey("retry_failed"),
		regenerate:     kb.GetActionKey("regenerate"),
		editResend:     kb.GetActionKey("edit_resend"),
		newChat:        kb.GetActionKey("new_chat"),
		yankResponse:   kb.GetActionKey("yank_last_response"),
		switcher:       kb.GetActionKey("conversation_switcher"),
		search:         kb.GetActionKey("search_messages"),
		help:           kb.GetActionKey("help"),
		quit:           kb.GetActionKey("quit"),
		clearInput:     kb.GetActionKey("clear_input"),

		scrollUp:       kb.GetActionKey("scroll_up"),
		scrollDown:     kb.GetActionKey("scroll_down"),
		scrollUpLine:   kb.GetActionKey("scroll_up_line"),
		scrollDownLine: kb.GetActionKey("scroll_down_line"),
		scrollTop:      kb.GetActionKey("scroll_to_top"),
		scrollBottom:   kb.GetActionKey("scroll_to_bottom"),

		listUp:     kb.GetActionKey("list_up"),
		listDown:   kb.GetActionKey("list_down"),
		listSelect: kb.GetActionKey("list_select"),
		listDelete: kb.GetActionKey("list_delete"),
		closeModal: kb.GetActionKey("close_modal"),
	}
}
