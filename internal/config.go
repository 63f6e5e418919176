package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can use "30s" / "2m"
// style values, which yaml.v3 does not parse into time.Duration itself.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the client's settings, loaded from an optional YAML file
type Config struct {
	ServerURL     string   `yaml:"server_url"`
	DataDir       string   `yaml:"data_dir"`
	MediaDir      string   `yaml:"media_dir"`
	StreamTimeout Duration `yaml:"stream_timeout"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".optimai")
	return &Config{
		ServerURL:     "http://localhost:3000",
		DataDir:       dataDir,
		MediaDir:      filepath.Join(dataDir, "media"),
		StreamTimeout: Duration(2 * time.Minute),
	}, nil
}

// DefaultConfigPath returns the default location of the config file
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".optimai", "config.yaml"), nil
}

// LoadConfig reads the YAML config at path, filling unset fields with
// defaults. A missing file is not an error; defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if fileCfg.ServerURL != "" {
		cfg.ServerURL = fileCfg.ServerURL
	}
	if fileCfg.DataDir != "" {
		cfg.DataDir = fileCfg.DataDir
		// The media dir follows the data dir unless set explicitly.
		cfg.MediaDir = filepath.Join(fileCfg.DataDir, "media")
	}
	if fileCfg.MediaDir != "" {
		cfg.MediaDir = fileCfg.MediaDir
	}
	if fileCfg.StreamTimeout > 0 {
		cfg.StreamTimeout = fileCfg.StreamTimeout
	}

	return cfg, nil
}

// Save writes the config as YAML, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ChatListPath returns the path of the chat-list database
func (c *Config) ChatListPath() string {
	return filepath.Join(c.DataDir, "chats.db")
}

// EnsureDataDir ensures the data directory exists
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
