package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/ashewang/work-orchestrator/internal/exec"
)

// TerminalHost opens a launcher script in an interactive terminal window.
// The host process, not the agent, is its direct child.
type TerminalHost interface {
	Open(ctx context.Context, script string) error
}

// ScriptPlaceholder marks where the script path goes in a terminal command.
const ScriptPlaceholder = "{script}"

// ErrNoTerminal is returned when no terminal command is configured.
var ErrNoTerminal = errors.New("no terminal command configured")

// CommandTerminal runs a configured command to open a terminal, for example
// `open -a Terminal` or `gnome-terminal -- bash {script}`.
type CommandTerminal struct {
	argv    []string
	starter exec.Starter
}

// DefaultTerminalCommand returns the platform's terminal command, or "" if
// there is no sensible default.
func DefaultTerminalCommand() string {
	if runtime.GOOS == "darwin" {
		return "open -a Terminal"
	}
	return ""
}

// NewCommandTerminal parses command into a terminal host. The script path
// replaces ScriptPlaceholder or is appended.
func NewCommandTerminal(command string, starter exec.Starter) (*CommandTerminal, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultTerminalCommand()
	}
	if strings.TrimSpace(command) == "" {
		return nil, ErrNoTerminal
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse terminal command: %w", err)
	}
	return &CommandTerminal{argv: argv, starter: starter}, nil
}

// Argv returns the command line that opens script.
func (t *CommandTerminal) Argv(script string) []string {
	argv := make([]string, 0, len(t.argv)+1)
	replaced := false
	for _, a := range t.argv {
		if strings.Contains(a, ScriptPlaceholder) {
			a = strings.ReplaceAll(a, ScriptPlaceholder, script)
			replaced = true
		}
		argv = append(argv, a)
	}
	if !replaced {
		argv = append(argv, script)
	}
	return argv
}

// Open starts the terminal command without waiting for it.
func (t *CommandTerminal) Open(_ context.Context, script string) error {
	argv := t.Argv(script)
	_, err := t.starter.Start(exec.StartSpec{
		Name:       argv[0],
		Args:       argv[1:],
		OutputPath: script + ".log",
	})
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	return nil
}

// Verify CommandTerminal implements TerminalHost at compile time.
var _ TerminalHost = (*CommandTerminal)(nil)
