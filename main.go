package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"atui/api"
	"atui/config"
	"atui/storage"
	"atui/ui"
)

const Version = "v0.1.0"

// errStartupFailed signals that the failure was already shown in a modal,
// so cobra only needs to set the exit code.
var errStartupFailed = errors.New("startup failed")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atui",
		Short: "Terminal chat client for the Atlas backend",
		Long: "ATUI is a terminal chat client for the Atlas fabrication-operations\n" +
			"assistant. Running it without a subcommand opens the chat view.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSetTokenCmd())
	cmd.AddCommand(newEncryptCredentialsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "atui %s\n", Version)
		},
	}
}

func newSetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <token>",
		Short: "Store the backend bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			creds, err := openCredentials(cfg.DataDir())
			if err != nil {
				return err
			}
			if creds == nil {
				return nil
			}

			if err := creds.SetToken(args[0]); err != nil {
				return err
			}

			if creds.Method() == config.SecuritySSHKey {
				fmt.Fprintln(cmd.OutOrStdout(), "Token stored, encrypted with your SSH key.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Token stored in plain text. Run 'atui encrypt-credentials' to encrypt it.")
			}
			return nil
		},
	}
}

func newEncryptCredentialsCmd() *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "encrypt-credentials",
		Short: "Encrypt the stored token with an SSH key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			creds, err := openCredentials(cfg.DataDir())
			if err != nil {
				return err
			}
			if creds == nil {
				return nil
			}

			if creds.Method() == config.SecuritySSHKey {
				fmt.Fprintln(cmd.OutOrStdout(), "Credentials are already encrypted.")
				return nil
			}

			if keyPath == "" {
				if keys := config.FindSSHKeys(); len(keys) > 0 {
					keyPath = keys[0]
				} else {
					created, err := config.CreateATUIKey("")
					if err != nil {
						return fmt.Errorf("no SSH key found and key generation failed: %w", err)
					}
					keyPath = created
					fmt.Fprintf(cmd.OutOrStdout(), "Generated %s. Protect it with: ssh-keygen -p -f %s\n", created, created)
				}
			}

			keyPath = config.ExpandPath(keyPath)
			if err := encryptWithKey(creds, keyPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Credentials encrypted with %s.\n", keyPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key to encrypt with (default: discover in ~/.ssh)")
	return cmd
}

func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return showStartupError("Configuration Error",
			fmt.Sprintf("Failed to load configuration:\n\n%v", err))
	}

	config.InitDebugLog(cfg.DataDir())

	keys, err := config.LoadKeybindings(cfg.DataDir())
	if err != nil {
		return showStartupError("Keybindings Error",
			fmt.Sprintf("Failed to load keybindings:\n\n%v\n\nFix or delete keybindings.toml in your data directory.", err))
	}
	if ok, warning := keys.Validate(); !ok {
		return showStartupError("Keybindings Error", warning)
	} else if warning != "" && config.DebugLog != nil {
		config.DebugLog.Printf("[Keybindings] %s", warning)
	}

	creds, err := openCredentials(cfg.DataDir())
	if err != nil {
		return showStartupError("Credentials Error",
			fmt.Sprintf("Failed to load credentials:\n\n%v", err))
	}
	if creds == nil {
		// Passphrase prompt cancelled.
		return nil
	}

	// The app still works against the backend without the cache, just with
	// no offline copies.
	cache, err := storage.OpenCache(cfg.DataDir())
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Cache] unavailable: %v", err)
		}
		cache = nil
	}
	if cache != nil {
		defer cache.Close()
	}

	var tokens api.TokenSource = creds
	if t := os.Getenv("ATUI_TOKEN"); t != "" {
		tokens = staticToken(t)
	}

	client, err := api.NewClient(cfg.BackendURL, time.Duration(cfg.RequestTimeout)*time.Second, tokens)
	if err != nil {
		return showStartupError("Backend Error",
			fmt.Sprintf("Invalid backend configuration:\n\n%v", err))
	}

	p := tea.NewProgram(
		ui.NewAppView(cfg, keys, client, cache, creds, Version),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running atui: %w", err)
	}
	return nil
}

// staticToken satisfies api.TokenSource for the ATUI_TOKEN override.
type staticToken string

func (t staticToken) Token() (string, error) {
	return string(t), nil
}

// openCredentials loads the credential store, prompting for the SSH key
// passphrase when the encrypted store needs one. Returns (nil, nil) when
// the user cancels the prompt.
func openCredentials(dataDir string) (*config.CredentialStore, error) {
	creds, err := config.LoadCredentials(dataDir)
	if err == nil {
		return creds, nil
	}
	if !strings.Contains(err.Error(), "passphrase required") {
		return nil, err
	}

	keyPath := credentialKeyPath()
	errMsg := ""
	for {
		passphrase, cancelled, err := promptPassphrase(keyPath, errMsg)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return nil, nil
		}

		creds, err = config.LoadCredentialsWithPassphrase(dataDir, passphrase)
		if err == nil {
			return creds, nil
		}
		errMsg = "Incorrect passphrase. Please try again."
	}
}

// encryptWithKey enables SSH key encryption, prompting for the key's
// passphrase when it has one.
func encryptWithKey(creds *config.CredentialStore, keyPath string) error {
	err := creds.EnableEncryption(keyPath)
	if err == nil || !strings.Contains(err.Error(), "passphrase required") {
		return err
	}

	errMsg := ""
	for {
		passphrase, cancelled, perr := promptPassphrase(keyPath, errMsg)
		if perr != nil {
			return perr
		}
		if cancelled {
			return fmt.Errorf("encryption cancelled")
		}

		creds.SetPassphrase(passphrase)
		if err = creds.EnableEncryption(keyPath); err == nil {
			return nil
		}
		errMsg = "Incorrect passphrase. Please try again."
	}
}

// promptPassphrase runs the passphrase modal as its own program.
func promptPassphrase(keyPath, errMsg string) (passphrase string, cancelled bool, err error) {
	modal := ui.NewPassphraseModal(keyPath)
	if errMsg != "" {
		modal = modal.WithError(errMsg)
	}

	final, err := tea.NewProgram(modal, tea.WithAltScreen()).Run()
	if err != nil {
		return "", false, err
	}

	pm, ok := final.(ui.PassphraseModal)
	if !ok || pm.IsCancelled() {
		return "", true, nil
	}
	return pm.GetPassphrase(), false, nil
}

// credentialKeyPath reports which SSH key decryption will use, for display
// in the passphrase prompt.
func credentialKeyPath() string {
	if keys := config.FindSSHKeys(); len(keys) > 0 {
		return keys[0]
	}
	return "~/.ssh/id_ed25519"
}

// showStartupError displays the failure in a modal and reports a failed
// start to cobra.
func showStartupError(title, message string) error {
	p := tea.NewProgram(ui.NewErrorModal(title, message), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return errStartupFailed
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errStartupFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
