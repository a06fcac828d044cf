package state

import (
	"fmt"
	"math"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// ProjectSummary counts a project's tasks, subtasks included, by status.
// ProgressPct is the share of done tasks rounded to one decimal.
func (tx *Tx) ProjectSummary(projectID string) (*models.ProjectSummary, error) {
	rows, err := tx.q.Query(`SELECT status, COUNT(*) FROM tasks WHERE project_id = ? GROUP BY status`, projectID)
	if err != nil {
		return nil, fmt.Errorf("summarize project %s: %w", projectID, err)
	}
	defer rows.Close()

	sum := &models.ProjectSummary{ProjectID: projectID, Counts: make(map[models.TaskStatus]int)}
	for _, s := range models.TaskStatuses {
		sum.Counts[s] = 0
	}
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Counts[status] = n
		sum.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarize project %s: %w", projectID, err)
	}
	if sum.Total > 0 {
		pct := float64(sum.Counts[models.TaskStatusDone]) / float64(sum.Total) * 100
		sum.ProgressPct = math.Round(pct*10) / 10
	}
	return sum, nil
}

// ProjectSummary counts a project's tasks by status.
func (db *DB) ProjectSummary(projectID string) (*models.ProjectSummary, error) {
	return read(db, func(tx *Tx) (*models.ProjectSummary, error) { return tx.ProjectSummary(projectID) })
}
