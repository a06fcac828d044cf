package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !strings.HasSuffix(cfg.DBPath, filepath.Join(".work_orchestrator", "wo.db")) {
		t.Errorf("expected db under ~/.work_orchestrator, got %q", cfg.DBPath)
	}

	if cfg.WorktreeDir != ".worktrees" {
		t.Errorf("expected worktree dir '.worktrees', got %q", cfg.WorktreeDir)
	}

	if cfg.Agent.Model != "sonnet" {
		t.Errorf("expected default model 'sonnet', got %q", cfg.Agent.Model)
	}

	if cfg.Agent.PermissionMode != "acceptEdits" {
		t.Errorf("expected permission mode 'acceptEdits', got %q", cfg.Agent.PermissionMode)
	}

	if cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.Monitor.PollInterval)
	}

	if cfg.Web.Addr() != "127.0.0.1:8787" {
		t.Errorf("expected web addr 127.0.0.1:8787, got %q", cfg.Web.Addr())
	}

	if cfg.RepoPath == "" {
		t.Error("expected repo path to default to the working directory")
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
db_path: /var/lib/wo/wo.db
repo_path: /src/app
worktree_dir: trees
slack:
  bot_token: xoxb-file
agent:
  model: opus
  max_budget: 2.5
  max_turns: 40
  permission_mode: bypassPermissions
  output_dir: /tmp/agents
  terminal_command: "kitty --hold {script}"
monitor:
  poll_interval: 2s
web:
  host: 0.0.0.0
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.DBPath != "/var/lib/wo/wo.db" || cfg.RepoPath != "/src/app" || cfg.WorktreeDir != "trees" {
		t.Errorf("paths = %q %q %q", cfg.DBPath, cfg.RepoPath, cfg.WorktreeDir)
	}

	if cfg.Slack.BotToken != "xoxb-file" {
		t.Errorf("expected bot_token 'xoxb-file', got %q", cfg.Slack.BotToken)
	}

	want := AgentConfig{
		Model:           "opus",
		MaxBudget:       2.5,
		MaxTurns:        40,
		PermissionMode:  "bypassPermissions",
		OutputDir:       "/tmp/agents",
		TerminalCommand: "kitty --hold {script}",
	}
	if cfg.Agent != want {
		t.Errorf("agent = %+v, want %+v", cfg.Agent, want)
	}

	if cfg.Monitor.PollInterval != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %v", cfg.Monitor.PollInterval)
	}

	if cfg.Web.Addr() != "0.0.0.0:9000" {
		t.Errorf("expected web addr 0.0.0.0:9000, got %q", cfg.Web.Addr())
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("agent:\n  model: haiku\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Agent.Model != "haiku" || cfg.Agent.PermissionMode != "acceptEdits" || cfg.Web.Port != 8787 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	userDir := t.TempDir()
	userConfig := `
db_path: /user/wo.db
worktree_dir: user-trees
agent:
  model: opus
`
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(userConfig), 0644); err != nil {
		t.Fatal(err)
	}
	projectConfig := filepath.Join(t.TempDir(), ".wo.yaml")
	if err := os.WriteFile(projectConfig, []byte("agent:\n  model: haiku\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WO_DB_PATH", "/env/wo.db")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")

	cfg, err := load(userDir, projectConfig)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.DBPath != "/env/wo.db" {
		t.Errorf("env should win for db_path, got %q", cfg.DBPath)
	}
	if cfg.WorktreeDir != "user-trees" {
		t.Errorf("user config should apply, got %q", cfg.WorktreeDir)
	}
	if cfg.Agent.Model != "haiku" {
		t.Errorf("project config should override user config, got %q", cfg.Agent.Model)
	}
	if cfg.Slack.BotToken != "xoxb-env" {
		t.Errorf("expected token from env, got %q", cfg.Slack.BotToken)
	}
}

func TestLoad_NoFiles(t *testing.T) {
	cfg, err := load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Agent.Model != "sonnet" || cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/wo/wo.db"); got != filepath.Join(home, "wo", "wo.db") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome changed an absolute path: %q", got)
	}
	if got := expandHome("~user/x"); got != "~user/x" {
		t.Errorf("expandHome changed ~user: %q", got)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/wo"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestFindConfigFrom(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFrom(nested); got != "" && strings.HasPrefix(got, root) {
		t.Errorf("found unexpected config %q", got)
	}

	configPath := filepath.Join(root, "a", ".wo.yaml")
	if err := os.WriteFile(configPath, []byte("worktree_dir: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFrom(nested); got != configPath {
		t.Errorf("findConfigFrom = %q, want %q", got, configPath)
	}
}
