// Package config handles configuration loading and management for wo.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for wo.
type Config struct {
	DBPath      string        `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	RepoPath    string        `mapstructure:"repo_path" yaml:"repo_path" json:"repo_path"`
	WorktreeDir string        `mapstructure:"worktree_dir" yaml:"worktree_dir" json:"worktree_dir"`
	Slack       SlackConfig   `mapstructure:"slack" yaml:"slack" json:"slack"`
	Agent       AgentConfig   `mapstructure:"agent" yaml:"agent" json:"agent"`
	Monitor     MonitorConfig `mapstructure:"monitor" yaml:"monitor" json:"monitor"`
	Web         WebConfig     `mapstructure:"web" yaml:"web" json:"web"`
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token" json:"bot_token"`
}

// AgentConfig holds defaults for launched agents.
type AgentConfig struct {
	Model string `mapstructure:"model" yaml:"model" json:"model"`
	// MaxBudget is the per-run spend cap in USD. Zero means no cap.
	MaxBudget float64 `mapstructure:"max_budget" yaml:"max_budget" json:"max_budget"`
	// MaxTurns caps agent turns. Zero means no cap.
	MaxTurns       int    `mapstructure:"max_turns" yaml:"max_turns" json:"max_turns"`
	PermissionMode string `mapstructure:"permission_mode" yaml:"permission_mode" json:"permission_mode"`
	// OutputDir receives agent output files. Empty means a directory next
	// to the database.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	// TerminalCommand opens visible agents, with {script} replaced by the
	// launch script path.
	TerminalCommand string `mapstructure:"terminal_command" yaml:"terminal_command" json:"terminal_command"`
}

// MonitorConfig holds reconciliation loop settings.
type MonitorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
}

// WebConfig holds dashboard server settings.
type WebConfig struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

// Addr returns the dashboard listen address.
func (w WebConfig) Addr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (WO_DB_PATH, WO_REPO_PATH, WO_WORKTREE_DIR, SLACK_BOT_TOKEN)
// 2. Project config (.wo.yaml in current directory or parent)
// 3. User config (~/.config/wo/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	return load(getUserConfigDir(), findProjectConfig())
}

func load(userConfigDir, projectConfig string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Slack.BotToken = expandEnv(cfg.Slack.BotToken)
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.RepoPath = expandHome(cfg.RepoPath)
	cfg.Agent.OutputDir = expandHome(cfg.Agent.OutputDir)
	if cfg.RepoPath == "" {
		cfg.RepoPath = workingDir()
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("db_path", "WO_DB_PATH")
	_ = v.BindEnv("repo_path", "WO_REPO_PATH")
	_ = v.BindEnv("worktree_dir", "WO_WORKTREE_DIR")
	_ = v.BindEnv("slack.bot_token", "SLACK_BOT_TOKEN")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("repo_path", "")
	v.SetDefault("worktree_dir", ".worktrees")

	v.SetDefault("slack.bot_token", "")

	v.SetDefault("agent.model", "sonnet")
	v.SetDefault("agent.max_budget", 0.0)
	v.SetDefault("agent.max_turns", 0)
	v.SetDefault("agent.permission_mode", "acceptEdits")
	v.SetDefault("agent.output_dir", "")
	v.SetDefault("agent.terminal_command", "")

	v.SetDefault("monitor.poll_interval", "5s")

	v.SetDefault("web.host", "127.0.0.1")
	v.SetDefault("web.port", 8787)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DBPath:      defaultDBPath(),
		RepoPath:    workingDir(),
		WorktreeDir: ".worktrees",
		Agent: AgentConfig{
			Model:          "sonnet",
			PermissionMode: "acceptEdits",
		},
		Monitor: MonitorConfig{
			PollInterval: 5 * time.Second,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
	}
}

// defaultDBPath returns ~/.work_orchestrator/wo.db.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".work_orchestrator", "wo.db")
	}
	return filepath.Join(home, ".work_orchestrator", "wo.db")
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// getUserConfigDir returns the XDG config directory for wo.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "wo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "wo")
	}
	return filepath.Join(home, ".config", "wo")
}

// findProjectConfig searches for .wo.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findConfigFrom(cwd)
}

func findConfigFrom(dir string) string {
	for {
		configPath := filepath.Join(dir, ".wo.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path != "~" && !hasHomePrefix(path) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func hasHomePrefix(path string) bool {
	return len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator)
}
