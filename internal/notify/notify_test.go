package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

func TestSlackSend_NotConfigured(t *testing.T) {
	s := NewSlack("")
	_, err := s.Send(context.Background(), "#dev", "hello")
	var nerr *Error
	if !errors.As(err, &nerr) || !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want *Error wrapping ErrNotConfigured", err)
	}
	if s.Configured() {
		t.Error("sink without token should not be configured")
	}
}

func TestSlackSend(t *testing.T) {
	var gotForm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		gotForm = r.Form.Get("channel") + "|" + r.Form.Get("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	s := NewSlack("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
	receipt, err := s.Send(context.Background(), "#dev", "hello", TaskBlocks(&models.Task{ID: "a", Title: "A", Status: models.TaskStatusDone}, "web")...)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if receipt.Channel != "C123" || receipt.Timestamp != "1700000000.000100" || receipt.Text != "hello" {
		t.Errorf("receipt = %+v", receipt)
	}
	if gotForm != "#dev|hello" {
		t.Errorf("posted %q", gotForm)
	}
}

func TestSlackSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	s := NewSlack("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
	_, err := s.Send(context.Background(), "#nope", "hello")
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Channel != "#nope" {
		t.Fatalf("err = %v, want *Error for #nope", err)
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("err = %v, want the API error", err)
	}
}

func TestTaskText(t *testing.T) {
	got := TaskText(&models.Task{ID: "fix", Title: "Fix", Status: models.TaskStatusInProgress}, "web")
	want := ":large_blue_circle: *Task Update*\n*Fix* (`fix`)\nStatus: *in-progress* | Project: web"
	if got != want {
		t.Errorf("TaskText = %q, want %q", got, want)
	}
}

func TestReviewRequestText(t *testing.T) {
	task := &models.Task{ID: "fix", Title: "Fix", BranchName: "task/fix"}
	if got := ReviewRequestText(task); strings.Contains(got, "View Pull Request") {
		t.Errorf("no PR link expected: %q", got)
	}
	task.PRURL = "https://example.com/pr/1"
	if got := ReviewRequestText(task); !strings.HasSuffix(got, "\n<https://example.com/pr/1|View Pull Request>") {
		t.Errorf("ReviewRequestText = %q", got)
	}
}

func TestStatusText(t *testing.T) {
	s := &models.ProjectSummary{
		Counts: map[models.TaskStatus]int{models.TaskStatusDone: 1, models.TaskStatusTodo: 2},
		Total:  3,
	}
	got := StatusText("web", s)
	if !strings.Contains(got, "Done: 1") || !strings.HasSuffix(got, "Progress: 33% (1/3)") {
		t.Errorf("StatusText = %q", got)
	}
	if got := StatusText("empty", &models.ProjectSummary{Counts: map[models.TaskStatus]int{}}); !strings.HasSuffix(got, "Progress: 0% (0/0)") {
		t.Errorf("StatusText(empty) = %q", got)
	}
}

func TestAgentCompletionText(t *testing.T) {
	task := &models.Task{ID: "fix", Title: "Fix"}
	run := &models.AgentRun{Model: "sonnet", PID: 123}

	got := AgentCompletionText(task, run, models.RunStatusCompleted, strings.Repeat("x", 300))
	if !strings.HasPrefix(got, ":white_check_mark: Agent completed for task *Fix* (`fix`)\nModel: sonnet | PID: 123\n") {
		t.Errorf("AgentCompletionText = %q", got)
	}
	if !strings.HasSuffix(got, "Summary: "+strings.Repeat("x", 200)) {
		t.Error("summary should be cut to 200 characters")
	}

	got = AgentCompletionText(task, &models.AgentRun{Model: "sonnet", PID: models.Unmonitorable}, models.RunStatusFailed, "")
	if !strings.HasPrefix(got, ":x: Agent failed") || !strings.Contains(got, "PID: unknown") || strings.Contains(got, "Summary") {
		t.Errorf("AgentCompletionText = %q", got)
	}
}
