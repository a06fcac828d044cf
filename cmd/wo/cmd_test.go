package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestParseSubtasks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		titles   []string
		wantErr  string
		checkDep bool
	}{
		{
			name: "mapping with subtasks key",
			input: `subtasks:
  - title: Cart page
    priority: 2
  - title: Payment form
    depends_on: [cart-page]
`,
			titles:   []string{"Cart page", "Payment form"},
			checkDep: true,
		},
		{
			name: "bare list",
			input: `- title: One
- title: Two
  description: second
`,
			titles: []string{"One", "Two"},
		},
		{
			name:   "empty document",
			input:  "",
			titles: nil,
		},
		{
			name: "missing title",
			input: `subtasks:
  - description: nothing to call it
`,
			wantErr: "subtask 1 has no title",
		},
		{
			name:    "not yaml",
			input:   "subtasks: [unclosed",
			wantErr: "parse subtasks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs, err := parseSubtasks([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseSubtasks() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSubtasks() error = %v", err)
			}
			if len(specs) != len(tt.titles) {
				t.Fatalf("got %d subtasks, want %d", len(specs), len(tt.titles))
			}
			for i, title := range tt.titles {
				if specs[i].Title != title {
					t.Errorf("subtask %d title = %q, want %q", i, specs[i].Title, title)
				}
			}
			if tt.checkDep {
				if specs[0].Priority == nil || *specs[0].Priority != 2 {
					t.Errorf("priority = %v, want 2", specs[0].Priority)
				}
				if len(specs[1].DependsOn) != 1 || specs[1].DependsOn[0] != "cart-page" {
					t.Errorf("depends_on = %v", specs[1].DependsOn)
				}
			}
		})
	}
}

func TestAgentFlagsOptions(t *testing.T) {
	var f agentFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)

	if err := fs.Parse([]string{"-m", "opus", "--max-turns", "10", "--visible"}); err != nil {
		t.Fatal(err)
	}
	opts := f.options(fs)
	if opts.Model != "opus" || opts.MaxTurns != 10 || !opts.Visible {
		t.Errorf("options = %+v", opts)
	}
	if opts.MaxBudget != nil {
		t.Errorf("MaxBudget = %v, want nil when the flag is unset", *opts.MaxBudget)
	}

	if err := fs.Parse([]string{"--max-budget", "0"}); err != nil {
		t.Fatal(err)
	}
	opts = f.options(fs)
	if opts.MaxBudget == nil || *opts.MaxBudget != 0 {
		t.Errorf("MaxBudget = %v, want explicit 0", opts.MaxBudget)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 30*time.Minute, "2h30m"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestProjectID(t *testing.T) {
	old := flagProject
	t.Cleanup(func() { flagProject = old })

	flagProject = ""
	if got := projectID(); got != "default" {
		t.Errorf("projectID() = %q, want default", got)
	}
	flagProject = "web"
	if got := projectID(); got != "web" {
		t.Errorf("projectID() = %q, want web", got)
	}
}
