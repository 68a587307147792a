package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/atui",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Backend: BackendConfig{
			URL:            "http://localhost:8080/api",
			RequestTimeout: 30,
		},
		Chat: ChatConfig{
			DefaultModel:    "gpt-4o",
			DefaultProvider: "openai",
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# ATUI System Configuration
# Location: ~/.config/atui/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the local cache and user config are stored
data_directory = "~/.local/share/atui"
`
}

func GenerateUserConfigTemplate() string {
	return `# ATUI User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[backend]
# Atlas backend base URL
url = "http://localhost:8080/api"

# Timeout for non-streaming requests, in seconds
request_timeout_seconds = 30

[chat]
# Default model for new conversations
default_model = "gpt-4o"

# Default provider for new conversations
default_provider = "openai"

# Name used to greet you in new chats (optional)
user_name = ""
`
}
