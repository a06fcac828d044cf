package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// summaryLimit caps raw output stored as a run summary, in characters.
const summaryLimit = 500

// EmptyOutputSummary is stored for runs that produced no output.
const EmptyOutputSummary = "(empty output)"

// NotAnObjectSummary is stored for runs whose output is JSON other than an
// object, such as null.
const NotAnObjectSummary = "Error reading output: output is JSON but not an object"

// Outcome is the classified result of a finished run.
type Outcome struct {
	Status   models.RunStatus
	Summary  string
	ExitCode int
}

// Classify reads a finished run's output and decides its outcome. exitCode
// is the authoritative exit status when the process handle was available,
// or nil when the process was found dead by probing.
//
// A JSON object output supplies its "result" as the summary and means
// success unless the exit code says otherwise. JSON that is not an object
// is unreadable. Other output is stored truncated and counts as failure
// when it mentions an error. Empty or unreadable output is a failure.
func Classify(outputFile string, exitCode *int) Outcome {
	summary, inferred := readOutput(outputFile)
	code := inferred
	if exitCode != nil {
		code = *exitCode
	}
	status := models.RunStatusCompleted
	if code != 0 {
		status = models.RunStatusFailed
	}
	return Outcome{Status: status, Summary: summary, ExitCode: code}
}

// readOutput returns the summary and the exit code implied by the output.
func readOutput(path string) (string, int) {
	if path == "" {
		return "Error reading output: no output file recorded", 1
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading output: %v", err), 1
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return EmptyOutputSummary, 1
	}

	var value any
	if err := json.Unmarshal(data, &value); err == nil {
		record, ok := value.(map[string]any)
		if !ok {
			return NotAnObjectSummary, 1
		}
		result, ok := record["result"]
		if !ok {
			return truncate(content, summaryLimit), 0
		}
		if s, ok := result.(string); ok {
			return s, 0
		}
		return fmt.Sprint(result), 0
	}

	if strings.Contains(strings.ToLower(content), "error") {
		return truncate(content, summaryLimit), 1
	}
	return truncate(content, summaryLimit), 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
