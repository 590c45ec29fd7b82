package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/diegoavarela/task-list-sub000/internal/log"
	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/service"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

func StartServer(port string, store storage.Store) error {
	svc := service.NewTaskService(store, log.GetLogger())
	log.GetLogger().Infof("Starting task server on :%s", port)
	return http.ListenAndServe(":"+port, NewRouter(svc))
}

// NewRouter wires every task endpoint onto a fresh ServeMux.
func NewRouter(svc *service.TaskService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthHandler)
	mux.HandleFunc("GET /tasks", listTasksHandler(svc))
	mux.HandleFunc("POST /tasks", createTaskHandler(svc))
	mux.HandleFunc("GET /tasks/{id}", getTaskHandler(svc))
	mux.HandleFunc("DELETE /tasks/{id}", deleteTaskHandler(svc))
	mux.HandleFunc("POST /tasks/{id}/dependencies", addDependencyHandler(svc))
	mux.HandleFunc("DELETE /tasks/{id}/dependencies/{dep}", removeDependencyHandler(svc))
	mux.HandleFunc("GET /tasks/{id}/blocked", blockedHandler(svc))
	mux.HandleFunc("POST /tasks/{id}/complete", completionHandler(svc, true))
	mux.HandleFunc("POST /tasks/{id}/reopen", completionHandler(svc, false))
	mux.HandleFunc("POST /tasks/{id}/move", moveTaskHandler(svc))
	mux.HandleFunc("GET /tasks/{id}/recurrence", describeHandler(svc))
	mux.HandleFunc("PUT /tasks/{id}/recurrence", setRecurrenceHandler(svc))
	mux.HandleFunc("GET /check", checkHandler(svc))
	return mux
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Task server is running"))
}

type createTaskRequest struct {
	Name             string                    `json:"name"`
	ParentTaskID     *string                   `json:"parent_task_id"`
	Dependencies     []string                  `json:"dependencies"`
	DueDate          string                    `json:"due_date"`
	DueTime          *string                   `json:"due_time"`
	Priority         models.Priority           `json:"priority"`
	Company          string                    `json:"company"`
	Category         string                    `json:"category"`
	Tags             []string                  `json:"tags"`
	Notes            string                    `json:"notes"`
	RecurringPattern *models.RecurrencePattern `json:"recurring_pattern"`
}

type dependencyRequest struct {
	DependsOn string `json:"depends_on"`
}

type moveRequest struct {
	Index *int                  `json:"index"`
	Sort  service.SortDirection `json:"sort"`
}

type completionResponse struct {
	Task           models.Task  `json:"task"`
	NextOccurrence *models.Task `json:"next_occurrence,omitempty"`
}

func listTasksHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var parent *string
		if p := r.URL.Query().Get("parent"); p != "" {
			parent = &p
		}
		tasks, err := svc.ListTasks(parent, service.ParseSortDirection(r.URL.Query().Get("sort")))
		if err != nil {
			writeServiceError(w, "Failed to list tasks", err)
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func createTaskHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.GetLogger().Errorf("Invalid JSON in POST /tasks: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		draft := models.TaskDraft{
			Name:             req.Name,
			ParentTaskID:     req.ParentTaskID,
			Dependencies:     req.Dependencies,
			DueDate:          time.Now().UTC(),
			DueTime:          req.DueTime,
			Priority:         req.Priority,
			Company:          req.Company,
			Category:         req.Category,
			Tags:             req.Tags,
			Notes:            req.Notes,
			IsRecurring:      req.RecurringPattern != nil,
			RecurringPattern: req.RecurringPattern,
		}
		if req.DueDate != "" {
			due, err := time.Parse(dateLayout, req.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
				return
			}
			draft.DueDate = due
		}
		created, err := svc.CreateTask(draft)
		if err != nil {
			writeServiceError(w, "Failed to create task", err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getTaskHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.GetTask(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, "Failed to get task", err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func deleteTaskHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteTask(r.PathValue("id")); err != nil {
			writeServiceError(w, "Failed to delete task", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addDependencyHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dependencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DependsOn == "" {
			writeError(w, http.StatusBadRequest, "Missing 'depends_on' parameter")
			return
		}
		id := r.PathValue("id")
		if err := svc.AddDependency(id, req.DependsOn); err != nil {
			writeServiceError(w, "Failed to add dependency", err)
			return
		}
		writeTask(w, svc, id)
	}
}

func removeDependencyHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := svc.RemoveDependency(id, r.PathValue("dep")); err != nil {
			writeServiceError(w, "Failed to remove dependency", err)
			return
		}
		writeTask(w, svc, id)
	}
}

func blockedHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Blocked(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, "Failed to compute blocked status", err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func completionHandler(svc *service.TaskService, completed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		next, err := svc.SetCompleted(id, completed)
		if err != nil {
			writeServiceError(w, "Failed to update completion", err)
			return
		}
		task, err := svc.GetTask(id)
		if err != nil {
			writeServiceError(w, "Failed to get task", err)
			return
		}
		writeJSON(w, http.StatusOK, completionResponse{Task: task, NextOccurrence: next})
	}
}

func moveTaskHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
			writeError(w, http.StatusBadRequest, "Missing 'index' parameter")
			return
		}
		id := r.PathValue("id")
		dir := service.ParseSortDirection(string(req.Sort))
		if err := svc.MoveTask(id, *req.Index, dir); err != nil {
			writeServiceError(w, "Failed to move task", err)
			return
		}
		task, err := svc.GetTask(id)
		if err != nil {
			writeServiceError(w, "Failed to get task", err)
			return
		}
		siblings, err := svc.ListTasks(task.ParentTaskID, dir)
		if err != nil {
			writeServiceError(w, "Failed to list tasks", err)
			return
		}
		writeJSON(w, http.StatusOK, siblings)
	}
}

func describeHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.GetTask(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, "Failed to get task", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"recurring_pattern": task.RecurringPattern,
			"description":       service.Describe(task.RecurringPattern),
		})
	}
}

// setRecurrenceHandler takes a pattern body; a JSON null clears the recurrence.
func setRecurrenceHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pattern *models.RecurrencePattern
		if err := json.NewDecoder(r.Body).Decode(&pattern); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id := r.PathValue("id")
		if err := svc.SetRecurrence(id, pattern); err != nil {
			writeServiceError(w, "Failed to set recurrence", err)
			return
		}
		writeTask(w, svc, id)
	}
}

func checkHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Check(); err != nil {
			writeServiceError(w, "Dependency check failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "No dependency cycles found"})
	}
}

func writeTask(w http.ResponseWriter, svc *service.TaskService, id string) {
	task, err := svc.GetTask(id)
	if err != nil {
		writeServiceError(w, "Failed to get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// writeServiceError maps service errors onto status codes. Validation
// failures carry the offending pattern fields.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	var perr *service.PatternError
	switch {
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": perr.Error(), "fields": perr.Fields})
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrCircularDependency), errors.Is(err, service.ErrDuplicateDependency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSelfDependency),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrNameTooLong),
		errors.Is(err, service.ErrNestingTooDeep),
		errors.Is(err, service.ErrRecurrenceOnSubtask),
		errors.Is(err, service.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.GetLogger().Errorf("%s: %v", msg, err)
		writeError(w, http.StatusInternalServerError, msg+": "+err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
