package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyBindingsConfig holds modifier customization and optional per-action overrides
type KeyBindingsConfig struct {
	Modifiers ModifierConfig    `toml:"modifiers"`
	Actions   map[string]string `toml:"actions"` // Optional overrides for specific actions
}

type ModifierConfig struct {
	Primary   string `toml:"primary"`   // e.g., "ctrl", "alt", "meta", "super"
	Secondary string `toml:"secondary"` // e.g., "ctrl+shift", "alt+shift"
}

// actionDef defines the default modifier and key for an action
type actionDef struct {
	modifier string // "primary", "secondary", or "none"
	key      string // "j", "k", "enter", etc.
}

func (d actionDef) resolve(kb *KeyBindingsConfig) string {
	switch d.modifier {
	case "primary":
		return kb.PrimaryKey(d.key)
	case "secondary":
		return kb.SecondaryKey(d.key)
	default:
		return d.key
	}
}

// actionRegistry maps action names to their default keybindings
// Users can override any of these in the [actions] section of keybindings.toml
var actionRegistry = map[string]actionDef{
	// Chat actions
	"stop_generation":    {"primary", "k"},
	"retry_failed":       {"primary", "r"},
	"regenerate":         {"primary", "g"},
	"edit_resend":        {"primary", "e"},
	"new_chat":           {"primary", "n"},
	"yank_last_response": {"primary", "y"},

	// Modal toggles
	"conversation_switcher": {"primary", "o"},
	"search_messages":       {"primary", "f"},
	"help":                  {"primary", "h"},

	// Main view - Scrolling
	"scroll_up":        {"none", "pgup"},
	"scroll_down":      {"none", "pgdown"},
	"scroll_up_line":   {"none", "up"},
	"scroll_down_line": {"none", "down"},
	"scroll_to_top":    {"none", "home"},
	"scroll_to_bottom": {"none", "end"},

	// Modal list navigation (no modifier needed inside modals)
	"list_down":   {"none", "down"},
	"list_up":     {"none", "up"},
	"list_select": {"none", "enter"},
	"list_delete": {"primary", "d"},
	"close_modal": {"none", "esc"},

	// Universal
	"quit":        {"primary", "q"},
	"clear_input": {"primary", "u"},
}

// DefaultKeybindings returns default configuration
func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{
		Modifiers: ModifierConfig{
			Primary:   "ctrl",
			Secondary: "ctrl+shift",
		},
	}
}

// LoadKeybindings reads keybindings.toml from the data directory,
// materializing the commented template on first run.
func LoadKeybindings(dataDir string) (*KeyBindingsConfig, error) {
	cfg := DefaultKeybindings()
	path := filepath.Join(dataDir, "keybindings.toml")

	err := loadOrCreate(path, cfg, func() error {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		return writeTemplate(path, keybindingsTemplate)
	})
	if err != nil {
		return nil, err
	}

	// Partial files fall back per field
	if cfg.Modifiers.Primary == "" {
		cfg.Modifiers.Primary = "ctrl"
	}
	if cfg.Modifiers.Secondary == "" {
		cfg.Modifiers.Secondary = "ctrl+shift"
	}
	return cfg, nil
}

const keybindingsTemplate = `# ATUI Keybindings Configuration
# Location: <data_directory>/keybindings.toml
# This file uses TOML format: https://toml.io

# ==============================================================================
# MODIFIER KEYS (Simple Configuration)
# ==============================================================================
# Change these to avoid conflicts with your window manager/terminal multiplexor
# Most users only need to customize these two settings

[modifiers]
primary = "ctrl"          # Default: ctrl (Options: ctrl, alt, meta, super)
secondary = "ctrl+shift"  # Default: ctrl+shift

# Examples of alternative modifier configurations:
#
# For terminals where Ctrl chords are scarce:
#   primary = "alt"
#   secondary = "alt+shift"
#
# For i3/sway users (Alt is window manager key):
#   primary = "super"
#   secondary = "super+shift"

# ==============================================================================
# PER-ACTION OVERRIDES (Advanced Configuration)
# ==============================================================================
# Optionally override specific actions for fine-grained control
# Uncomment and customize any actions you want to change

[actions]
# Examples (uncomment to use):
#
# Remap stop to avoid Ctrl+K line-kill habits:
#   stop_generation = "ctrl+x"
#
# Vim-style scrolling:
#   scroll_up_line = "ctrl+k"
#   scroll_down_line = "ctrl+j"
#
# Remap quit to avoid accidental exits:
#   quit = "ctrl+shift+q"
`

// Primary returns the primary modifier
func (kb *KeyBindingsConfig) Primary() string {
	if kb.Modifiers.Primary == "" {
		return "ctrl"
	}
	return kb.Modifiers.Primary
}

// Secondary returns the secondary modifier
func (kb *KeyBindingsConfig) Secondary() string {
	if kb.Modifiers.Secondary == "" {
		return "ctrl+shift"
	}
	return kb.Modifiers.Secondary
}

// PrimaryKey builds a chord with the primary modifier, e.g. "ctrl+s".
func (kb *KeyBindingsConfig) PrimaryKey(key string) string {
	return kb.Primary() + "+" + key
}

// SecondaryKey builds a chord with the secondary modifier. Terminals
// report shift+letter as the capital letter, so for single letters the
// shift part is folded into an uppercase key: "ctrl+shift"+"s" becomes
// "ctrl+S". Special keys keep the explicit shift ("ctrl+shift+f1").
func (kb *KeyBindingsConfig) SecondaryKey(key string) string {
	secondary := kb.Secondary()

	if isLowerLetter(key) && strings.Contains(strings.ToLower(secondary), "shift") {
		if mods := dropModifierPart(secondary, "shift"); mods != "" {
			return mods + "+" + strings.ToUpper(key)
		}
		return strings.ToUpper(key)
	}
	return secondary + "+" + key
}

func isLowerLetter(key string) bool {
	return len(key) == 1 && key[0] >= 'a' && key[0] <= 'z'
}

// dropModifierPart removes one named part from a "+"-joined chord.
func dropModifierPart(mods, drop string) string {
	var kept []string
	for _, part := range strings.Split(mods, "+") {
		if !strings.EqualFold(part, drop) {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "+")
}

// GetActionKey resolves an action to its current chord, user override
// first, then the registry default. Unknown actions resolve to "".
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if override := kb.Actions[action]; override != "" {
		return override
	}
	if def, ok := actionRegistry[action]; ok {
		return def.resolve(kb)
	}
	return ""
}

// DisplayActionKey formats an action's chord for help text and footers,
// e.g. "ctrl+o" renders as "Ctrl+O".
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	if key := kb.GetActionKey(action); key != "" {
		return capitalizeKeybinding(key)
	}
	return ""
}

func capitalizeKeybinding(key string) string {
	parts := strings.Split(key, "+")

	hasShift := false
	for _, part := range parts {
		if strings.EqualFold(part, "shift") {
			hasShift = true
		}
	}

	var out []string
	for i, part := range parts {
		switch {
		case part == "":
		case len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z':
			// A folded capital letter means shift; spell it back out.
			if !hasShift && i > 0 {
				out = append(out, "Shift")
			}
			out = append(out, part)
		default:
			out = append(out, strings.ToUpper(part[:1])+part[1:])
		}
	}
	return strings.Join(out, "+")
}

// Validate checks if the configuration is valid
// Returns (isValid, warningMessage)
func (kb *KeyBindingsConfig) Validate() (bool, string) {
	primary := kb.Primary()
	secondary := kb.Secondary()

	if primary == "" || secondary == "" {
		return false, "Modifiers cannot be empty"
	}
	if primary == "shift" || secondary == "shift" {
		return false, "Shift alone conflicts with typing"
	}
	if strings.Contains(primary, "alt") || strings.Contains(secondary, "alt") {
		return true, "Warning: Alt may be grabbed by your window manager or terminal"
	}
	return true, ""
}
