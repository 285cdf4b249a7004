package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template returns a starter config for format "toml" or "yaml".
func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

// WriteTemplate writes a starter config to path, picking the format from its extension.
func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `auth_url = "http://127.0.0.1:8080"
ws_url = "ws://127.0.0.1:9948/test_websocket"
username = ""
reconnect_delay = "3s"
dial_timeout = "10s"
write_timeout = "5s"
security_mode = "development"
status_addr = "127.0.0.1:9949"
cors_origins = ["http://localhost:3000"]
log_level = "info"
`

const yamlTemplate = `auth_url: http://127.0.0.1:8080
ws_url: ws://127.0.0.1:9948/test_websocket
username: ""
reconnect_delay: 3s
dial_timeout: 10s
write_timeout: 5s
security_mode: development
status_addr: 127.0.0.1:9949
cors_origins:
  - http://localhost:3000
log_level: info
`
