package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"slices"

	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index", "edit", "login", "register"}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	rd := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		rd.pages[name] = tmpl
	}
	return rd, nil
}

// pageData is shared by every page; each template reads the fields it needs.
type pageData struct {
	MultiUser  bool
	Identity   Identity
	LoggedIn   bool
	Tasks      []*models.Task
	Task       *models.Task
	Form       TaskForm
	Error      string
	Username   string
	Email      string
	Next       string
	Priorities []string
}

// render executes the page into a buffer first so a template failure can
// still produce a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := h.Renderer.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown template")
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data.MultiUser = h.MultiUser
	data.Identity, data.LoggedIn = IdentityFromContext(r.Context())
	data.Priorities = priorityOptions(data.Form.Priority)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("render template")
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// priorityOptions lists the select choices. Priority is free text, so a
// stored value outside the presets is offered too and stays selected.
func priorityOptions(current string) []string {
	options := []string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}
	if current != "" && !slices.Contains(options, current) {
		options = append(options, current)
	}
	return options
}
