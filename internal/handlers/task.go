package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/chepyr/go-todo-web/internal/db"
	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GET / - list the current owner's tasks, newest first
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}
	h.renderTaskList(w, r, owner, http.StatusOK, TaskForm{}, "")
}

// POST /add
func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}

	form, err := parseTaskForm(w, r)
	if err != nil {
		h.renderTaskList(w, r, owner, http.StatusBadRequest, form, formMessage(err))
		return
	}

	task := &models.Task{UserID: owner}
	form.applyTo(task)

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.TaskRepo.Create(ctx, task); err != nil {
		log.Error().Err(err).Int64("owner", owner).Msg("create task")
		sendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}

	h.WSHub.BroadcastTaskEvent(owner, EventTaskCreated, task)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /edit/{id}
func (h *Handler) EditTaskForm(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	task, ok := h.findTask(ctx, w, r, owner)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "edit", pageData{Task: task, Form: taskFormFrom(task)})
}

// POST /edit/{id} - overwrite title, description, priority and due date
func (h *Handler) EditTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	task, ok := h.findTask(ctx, w, r, owner)
	if !ok {
		return
	}

	form, err := parseTaskForm(w, r)
	if err != nil {
		h.render(w, r, http.StatusBadRequest, "edit", pageData{Task: task, Form: form, Error: formMessage(err)})
		return
	}
	form.applyTo(task)

	if !h.saveTask(ctx, w, task) {
		return
	}
	h.WSHub.BroadcastTaskEvent(owner, EventTaskUpdated, task)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /delete/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	task, ok := h.findTask(ctx, w, r, owner)
	if !ok {
		return
	}

	err := h.TaskRepo.Delete(ctx, task.ID, owner)
	if errors.Is(err, db.ErrNotFound) {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("task_id", task.ID).Msg("delete task")
		sendError(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}

	h.WSHub.BroadcastTaskEvent(owner, EventTaskDeleted, task)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /toggle/{id}
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.currentOwner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	task, ok := h.findTask(ctx, w, r, owner)
	if !ok {
		return
	}
	task.Completed = !task.Completed

	if !h.saveTask(ctx, w, task) {
		return
	}
	h.WSHub.BroadcastTaskEvent(owner, EventTaskToggled, task)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderTaskList(w http.ResponseWriter, r *http.Request, owner int64, status int, form TaskForm, formErr string) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	tasks, err := h.TaskRepo.ListByOwner(ctx, owner)
	if err != nil {
		log.Error().Err(err).Int64("owner", owner).Msg("list tasks")
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	h.render(w, r, status, "index", pageData{Tasks: tasks, Form: form, Error: formErr})
}

// findTask loads the {id} task within the owner scope. A task that is missing,
// or that belongs to someone else, is answered with 404.
func (h *Handler) findTask(ctx context.Context, w http.ResponseWriter, r *http.Request, owner int64) (*models.Task, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(w, "Task not found", http.StatusNotFound)
		return nil, false
	}

	task, err := h.TaskRepo.GetByID(ctx, id, owner)
	if errors.Is(err, db.ErrNotFound) {
		sendError(w, "Task not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Int64("task_id", id).Msg("get task")
		sendError(w, "Failed to load task", http.StatusInternalServerError)
		return nil, false
	}
	return task, true
}

func (h *Handler) saveTask(ctx context.Context, w http.ResponseWriter, task *models.Task) bool {
	err := h.TaskRepo.Update(ctx, task)
	if errors.Is(err, db.ErrNotFound) {
		sendError(w, "Task not found", http.StatusNotFound)
		return false
	}
	if err != nil {
		log.Error().Err(err).Int64("task_id", task.ID).Msg("update task")
		sendError(w, "Failed to update task", http.StatusInternalServerError)
		return false
	}
	return true
}
