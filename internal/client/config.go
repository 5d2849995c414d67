package client

import (
	"os"
	"path/filepath"
)

// Config holds client configuration
type Config struct {
	TokenFile string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		TokenFile: getEnvOrDefault("SKIRMISH_TOKEN_FILE", defaultTokenFile()),
	}
}

// LoadToken reads the persisted reconnect token, if any.
func (c *Config) LoadToken() (string, error) {
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// SaveToken persists the reconnect token across client restarts.
func (c *Config) SaveToken(token string) error {
	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(c.TokenFile, []byte(token), 0600)
}

// DeleteToken drops the persisted token. Called on voluntary quit and
// when the server rejects the token.
func (c *Config) DeleteToken() error {
	err := os.Remove(c.TokenFile)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skirmish/token"
	}
	return filepath.Join(home, ".skirmish", "token")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
