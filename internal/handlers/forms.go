package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/go-todo-web/internal/models"
)

const (
	maxFormBytes   = 1 << 20 // 1MB
	dueDateLayout  = "2006-01-02"
	minPasswordLen = 4
	maxPasswordLen = 72 // bcrypt input limit, in bytes
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// FormError is a rejected form submission. It is always answered with 400.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// TaskForm is the add/edit form after trimming and parsing.
type TaskForm struct {
	Title       string
	Description string
	Priority    string
	DueDateRaw  string
	DueDate     *time.Time
}

func taskFormFrom(task *models.Task) TaskForm {
	return TaskForm{
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		DueDateRaw:  task.DueDateValue(),
		DueDate:     task.DueDate,
	}
}

// applyTo overwrites every mutable task field from the form.
func (f TaskForm) applyTo(task *models.Task) {
	task.Title = f.Title
	task.Description = f.Description
	task.Priority = f.Priority
	task.DueDate = f.DueDate
}

// parseTaskForm returns whatever was submitted even when it also returns a
// *FormError, so the page can be re-rendered with the user's input.
func parseTaskForm(w http.ResponseWriter, r *http.Request) (TaskForm, error) {
	if err := parseForm(w, r); err != nil {
		return TaskForm{}, err
	}

	form := TaskForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Priority:    strings.TrimSpace(r.PostFormValue("priority")),
		DueDateRaw:  strings.TrimSpace(r.PostFormValue("due_date")),
	}
	if form.Title == "" {
		return form, &FormError{Field: "title", Message: "Title is required"}
	}
	if form.DueDateRaw != "" {
		d, err := time.Parse(dueDateLayout, form.DueDateRaw)
		if err != nil {
			return form, &FormError{Field: "due_date", Message: "Due date must be a valid date in YYYY-MM-DD format"}
		}
		form.DueDate = &d
	}
	return form, nil
}

type credentialsForm struct {
	Username string
	Email    string
	Password string
	Next     string
}

func parseCredentialsForm(w http.ResponseWriter, r *http.Request) (credentialsForm, error) {
	if err := parseForm(w, r); err != nil {
		return credentialsForm{}, err
	}
	return credentialsForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Next:     r.PostFormValue("next"),
	}, nil
}

func validateRegistration(form credentialsForm) error {
	if form.Username == "" {
		return &FormError{Field: "username", Message: "Username is required"}
	}
	if !isValidEmail(form.Email) {
		return &FormError{Field: "email", Message: "Invalid email"}
	}
	if len(form.Password) < minPasswordLen {
		return &FormError{Field: "password", Message: "Password must be at least 4 characters long"}
	}
	if len(form.Password) > maxPasswordLen {
		return &FormError{Field: "password", Message: "Password must be at most 72 bytes long"}
	}
	return nil
}

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &FormError{Message: "Form is too large"}
		}
		return &FormError{Message: "Malformed form submission"}
	}
	return nil
}

func formMessage(err error) string {
	var formErr *FormError
	if errors.As(err, &formErr) {
		return formErr.Message
	}
	return "Invalid form submission"
}
