package agent

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// ClaudeBinary is the agent executable.
const ClaudeBinary = "claude"

// Launch defaults.
const (
	DefaultModel          = "sonnet"
	DefaultPermissionMode = "acceptEdits"
)

// Options configures one agent launch. Zero values fall back to the
// manager's defaults.
type Options struct {
	// Model is passed to the agent with --model.
	Model string
	// MaxBudget is forwarded as --max-budget-usd; the agent enforces it.
	MaxBudget *float64
	// PermissionMode is passed with --permission-mode.
	PermissionMode string
	// MaxTurns is forwarded as --max-turns when positive.
	MaxTurns int
	// MCPConfig is the tool-configuration file passed with --mcp-config.
	MCPConfig string
	// Visible runs the agent in a terminal window instead of detached.
	Visible bool
}

// merge returns o with empty fields taken from defaults.
func (o Options) merge(defaults Options) Options {
	if o.Model == "" {
		o.Model = defaults.Model
	}
	if o.MaxBudget == nil {
		o.MaxBudget = defaults.MaxBudget
	}
	if o.PermissionMode == "" {
		o.PermissionMode = defaults.PermissionMode
	}
	if o.MaxTurns == 0 {
		o.MaxTurns = defaults.MaxTurns
	}
	if o.MCPConfig == "" {
		o.MCPConfig = defaults.MCPConfig
	}
	return o
}

// ClaudeArgs builds the agent arguments. structured asks for a single JSON
// result record on stdout.
func ClaudeArgs(prompt string, o Options, structured bool) []string {
	args := []string{"-p", prompt}
	if structured {
		args = append(args, "--output-format", "json")
	}
	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}
	if o.MaxBudget != nil && *o.MaxBudget > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(*o.MaxBudget, 'f', -1, 64))
	}
	if o.PermissionMode != "" {
		args = append(args, "--permission-mode", o.PermissionMode)
	}
	if o.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(o.MaxTurns))
	}
	if o.MCPConfig != "" {
		args = append(args, "--mcp-config", o.MCPConfig)
	}
	return args
}

// runFiles are the per-launch files under the output directory.
type runFiles struct {
	Output string
	PID    string
	Script string
}

func newRunFiles(dir, taskID string, at time.Time) runFiles {
	base := filepath.Join(dir, fmt.Sprintf("agent-%s-%s", taskID, at.Format("20060102-150405")))
	return runFiles{Output: base + ".json", PID: base + ".pid", Script: base + ".sh"}
}

// TerminalScript renders the bash script a visible agent runs in. It
// records its own pid in pidFile, tees the agent's output into outputFile
// and waits for Enter before closing.
func TerminalScript(taskID, dir, pidFile, outputFile string, args []string) string {
	claude := shellquote.Join(append([]string{ClaudeBinary}, args...)...)
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "cd %s\n", shellquote.Join(dir))
	fmt.Fprintf(&b, "echo $$ > %s\n", shellquote.Join(pidFile))
	fmt.Fprintf(&b, "echo %s\n", shellquote.Join("=== Agent started for task: "+taskID+" ==="))
	fmt.Fprintf(&b, "echo %s\n", shellquote.Join("=== Working in: "+dir+" ==="))
	b.WriteString("echo ''\n")
	fmt.Fprintf(&b, "%s 2>&1 | tee %s\n", claude, shellquote.Join(outputFile))
	b.WriteString("EXIT_CODE=${PIPESTATUS[0]}\n")
	b.WriteString("echo ''\n")
	b.WriteString("echo \"=== Agent finished (exit code: $EXIT_CODE) ===\"\n")
	b.WriteString("echo 'Press Enter to close...'\n")
	b.WriteString("read\n")
	return b.String()
}
