package web

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/internal/worktrees"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// TaskDetail is a task with its audit log.
type TaskDetail struct {
	models.Task
	Events []models.TaskEvent `json:"events"`
}

func (s *Server) index(c *gin.Context) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.db.ListProjects()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(projects))
}

func (s *Server) getProject(c *gin.Context) {
	project, ok := s.project(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// projectTasks returns top-level tasks with their subtasks nested. The
// optional status query parameter filters the top level.
func (s *Server) projectTasks(c *gin.Context) {
	status := models.TaskStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + string(status)})
		return
	}

	var tasks []models.Task
	err := s.db.View(func(tx *state.Tx) error {
		var err error
		tasks, err = tx.ListTasks(state.TaskFilter{ProjectID: c.Param("id"), Status: status})
		if err != nil {
			return err
		}
		for i := range tasks {
			tasks[i].Subtasks, err = tx.ListTasks(state.TaskFilter{ProjectID: tasks[i].ProjectID, ParentID: tasks[i].ID})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

func (s *Server) projectSummary(c *gin.Context) {
	summary, err := s.db.ProjectSummary(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) readyTasks(c *gin.Context) {
	tasks, err := s.db.ReadyTasks(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

func (s *Server) projectSlots(c *gin.Context) {
	status := models.SlotStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + string(status)})
		return
	}
	slots, err := s.db.ListSlots(c.Param("id"), status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(slots))
}

func (s *Server) getTask(c *gin.Context) {
	var detail *TaskDetail
	err := s.db.View(func(tx *state.Tx) error {
		task, err := tx.GetTask(c.Param("id"))
		if err != nil || task == nil {
			return err
		}
		events, err := tx.TaskEvents(task.ID)
		if err != nil {
			return err
		}
		detail = &TaskDetail{Task: *task, Events: nonNil(events)}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) taskRuns(c *gin.Context) {
	runs, err := s.db.ListRuns(state.RunFilter{TaskID: c.Param("id")})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(runs))
}

func (s *Server) listRuns(c *gin.Context) {
	status := models.RunStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + string(status)})
		return
	}
	runs, err := s.db.ListRuns(state.RunFilter{Status: status, ProjectID: c.Query("project")})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(runs))
}

// listWorktrees never fails: a repository git cannot read yields an empty
// list.
func (s *Server) listWorktrees(c *gin.Context) {
	if s.cfg.Worktrees == nil {
		c.JSON(http.StatusOK, []worktrees.Entry{})
		return
	}
	entries, err := s.cfg.Worktrees.List(c.Request.Context(), s.cfg.Repo)
	if err != nil {
		log.Printf("[web] list worktrees of %s: %v", s.cfg.Repo, err)
		c.JSON(http.StatusOK, []worktrees.Entry{})
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (s *Server) project(c *gin.Context) (*models.Project, bool) {
	project, err := s.db.GetProject(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	return project, true
}

func (s *Server) fail(c *gin.Context, err error) {
	log.Printf("[web] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
