package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/academy-portal/guard"
	"github.com/jrsteele09/academy-portal/internal/utils"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"

	pageIndex      = "index.html"
	pageLogin      = "login.html"
	pageDashboard  = "dashboard.html"
	pageTable      = "table.html"
	pageDetail     = "detail.html"
	pageEnrollment = "enrollment.html"
	pageNotFound   = "not_found.html"

	pageWorkshopRegistration = "workshop_registration.html"
)

var pageFiles = []string{pageIndex, pageLogin, pageDashboard, pageTable, pageDetail, pageEnrollment, pageWorkshopRegistration, pageNotFound}

var templateFuncs = template.FuncMap{
	"cell": func(row map[string]any, key string) string {
		return utils.CellText(row[key])
	},
	"text": utils.CellText,
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// pages holds every page parsed together with the shared layout.
type pages struct {
	byName map[string]*template.Template
}

func loadPages() (*pages, error) {
	p := &pages{byName: make(map[string]*template.Template, len(pageFiles))}
	for _, name := range pageFiles {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), "layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p.byName[name] = tmpl
	}
	return p, nil
}

// PageData is the model every page renders with. Content is page specific.
type PageData struct {
	AppName string
	Title   string
	Shell   guard.Shell
	Sidebar []navLink
	Error   string
	Notice  string
	Content any
}

// render executes page inside the layout. The page is rendered to a buffer first so a
// template failure never leaves a half written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any, errMsg string) {
	shell, ok := guard.ShellFromContext(r.Context())
	if !ok {
		shell = guard.Shell{Session: s.sessions.Snapshot(), Path: r.URL.Path, ShowNav: true}
	}
	data := PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Shell:   shell,
		Error:   errMsg,
		Notice:  r.URL.Query().Get("notice"),
		Content: content,
	}
	if shell.ShowSidebar {
		data.Sidebar = sidebarFor(shell.Role(), r.URL.Path)
	}

	tmpl, ok := s.pages.byName[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Err(err).Str("page", page).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
