package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/conorfennell/quizgen/internal/editor"
	"github.com/conorfennell/quizgen/internal/export"
	"github.com/conorfennell/quizgen/internal/sets"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Archiver records exported files. It may be nil.
type Archiver interface {
	Commit(name string, data []byte) error
}

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"correct": func(q domain.Question, i int) bool {
		for _, n := range domain.NormalizeCorrect(q.Correct) {
			if n == i+1 {
				return true
			}
		}
		return false
	},
}

// Server holds the dependencies for the HTTP server.
//
// The store and the editor session are single-user state, so every request
// runs to completion under mu before the next one is handled.
type Server struct {
	mu        sync.Mutex
	store     *sets.Store
	session   *editor.Session
	archive   Archiver
	router    chi.Router
	templates *template.Template
	log       *slog.Logger
}

// NewServer creates and configures a new server. The store must be loaded.
func NewServer(store *sets.Store, archive Archiver, logger *slog.Logger) (*Server, error) {
	tpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:     store,
		session:   editor.NewSession(),
		archive:   archive,
		router:    chi.NewRouter(),
		templates: tpl,
		log:       logger,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(s.serialize)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/", s.handleIndex())

	r.Route("/api", func(api chi.Router) {
		api.Get("/sets", s.handleListSets())
		api.Post("/sets", s.handleCreateSet())
		api.Put("/sets/{id}", s.handleRenameSet())
		api.Delete("/sets/{id}", s.handleDeleteSet())
		api.Post("/sets/{id}/activate", s.handleActivateSet())

		api.Get("/questions", s.handleListQuestions())
		api.Post("/questions/{index}/edit", s.handleEditQuestion())
		api.Delete("/questions/{index}", s.handleDeleteQuestion())

		api.Get("/editor", s.handleGetEditor())
		api.Put("/editor", s.handleUpdateEditor())
		api.Post("/editor/toggle/{choice}", s.handleToggle())
		api.Post("/editor/save", s.handleSave())
		api.Post("/editor/cancel", s.handleCancel())

		api.Get("/export.csv", s.handleExport("csv"))
		api.Get("/export.xlsx", s.handleExport("xlsx"))
	})
	return nil
}

// serialize makes each request run to completion before the next starts.
func (s *Server) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type setSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Questions int    `json:"questions"`
	Active    bool   `json:"active"`
}

func (s *Server) summaries() []setSummary {
	active := s.store.ActiveID()
	all := s.store.Sets()
	out := make([]setSummary, len(all))
	for i, set := range all {
		out[i] = setSummary{ID: set.ID, Name: set.Name, Questions: len(set.Questions), Active: set.ID == active}
	}
	return out
}

func (s *Server) activeQuestions() []domain.Question {
	set, _ := s.store.Active()
	return set.Questions
}

// activeChanged keeps the editor's similar list in step with the active set.
func (s *Server) activeChanged() {
	s.session.Refresh(s.activeQuestions())
}

// handleIndex renders the editor page.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, _ := s.store.Active()
		data := map[string]any{
			"Sets":    s.summaries(),
			"Active":  active,
			"Session": s.session,
		}
		var buf bytes.Buffer
		if err := s.templates.ExecuteTemplate(&buf, "index", data); err != nil {
			s.log.Error("Error rendering index", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}

func (s *Server) handleListSets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, r, http.StatusOK, map[string]any{
			"sets":     s.summaries(),
			"activeId": s.store.ActiveID(),
		})
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		id, err := s.store.CreateSet(req.Name)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		s.activeChanged()
		writeOK(w, r, http.StatusCreated, map[string]string{"id": id})
	}
}

func (s *Server) handleRenameSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.store.RenameSet(chi.URLParam(r, "id"), req.Name); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeOK(w, r, http.StatusOK, s.summaries())
	}
}

// handleDeleteSet deletes a set. The caller has already confirmed.
func (s *Server) handleDeleteSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.DeleteSet(chi.URLParam(r, "id")); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.activeChanged()
		writeOK(w, r, http.StatusOK, s.summaries())
	}
}

func (s *Server) handleActivateSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.SetActive(chi.URLParam(r, "id")); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.activeChanged()
		writeOK(w, r, http.StatusOK, s.summaries())
	}
}

func (s *Server) handleListQuestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, r, http.StatusOK, s.activeQuestions())
	}
}

func (s *Server) handleEditQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || !s.session.Edit(s.store, index) {
			writeError(w, r, http.StatusNotFound, "question not found")
			return
		}
		writeOK(w, r, http.StatusOK, s.session)
	}
}

// handleDeleteQuestion deletes a question. The caller has already confirmed.
func (s *Server) handleDeleteQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid question index")
			return
		}
		if err := s.session.DeleteQuestion(s.store, index); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeOK(w, r, http.StatusOK, s.activeQuestions())
	}
}

func (s *Server) handleGetEditor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, r, http.StatusOK, s.session)
	}
}

// editorUpdate carries the fields the page changed; absent fields are kept.
type editorUpdate struct {
	Question  *string         `json:"question"`
	Choices   []*string       `json:"choices"`
	TimeLimit json.RawMessage `json:"timeLimit"`
}

func (s *Server) handleUpdateEditor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editorUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Choices) > 4 {
			writeError(w, r, http.StatusBadRequest, "at most 4 choices")
			return
		}

		for i, c := range req.Choices {
			if c != nil {
				s.session.SetChoice(i, *c)
			}
		}
		if len(req.TimeLimit) > 0 {
			s.session.SetTimeLimit(domain.ParseTimeLimit(strings.Trim(string(req.TimeLimit), `"`)))
		}
		if req.Question != nil {
			s.session.SetText(*req.Question, s.activeQuestions())
		}
		writeOK(w, r, http.StatusOK, s.session)
	}
}

func (s *Server) handleToggle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "choice"))
		if err != nil || n < 1 || n > 4 {
			writeError(w, r, http.StatusBadRequest, "choice must be 1 to 4")
			return
		}
		s.session.Toggle(n - 1)
		writeOK(w, r, http.StatusOK, s.session)
	}
}

func (s *Server) handleSave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saved, err := s.session.Save(s.store)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.activeChanged()
		writeOK(w, r, http.StatusOK, map[string]any{
			"saved":   saved,
			"editor":  s.session,
			"current": s.activeQuestions(),
		})
	}
}

func (s *Server) handleCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.Cancel()
		writeOK(w, r, http.StatusOK, s.session)
	}
}

// handleExport serves the active set as a file download.
// An empty set produces no file.
func (s *Server) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, ok := s.store.Active()
		if !ok {
			writeError(w, r, http.StatusNotFound, "no active set")
			return
		}

		var buf bytes.Buffer
		var err error
		contentType := "text/csv"
		switch format {
		case "xlsx":
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			err = export.WriteXLSX(&buf, set)
		default:
			err = export.WriteCSV(&buf, set)
		}
		if errors.Is(err, export.ErrEmptySet) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			s.log.Error("Error exporting set", "set", set.ID, "format", format, "error", err)
			writeError(w, r, http.StatusInternalServerError, "")
			return
		}

		name := export.Filename(set.Name, format)
		if s.archive != nil {
			if err := s.archive.Commit(name, buf.Bytes()); err != nil {
				s.log.Warn("Failed to archive export", "file", name, "error", err)
			}
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "'")+`"`)
		_, _ = buf.WriteTo(w)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sets.ErrLastSet):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, sets.ErrSetNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		s.log.Error("Store operation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "")
	}
}
