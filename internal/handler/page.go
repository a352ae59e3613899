package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/index.html
var templateFS embed.FS

const pageTemplate = "templates/index.html"

type pageData struct {
	Dev    bool
	WSPath string
}

// page renders the chat UI. In development the template is parsed on every
// request; in production it is parsed once.
type page struct {
	dev  bool
	tmpl *template.Template
}

func newPage(dev bool) (*page, error) {
	p := &page{dev: dev}
	if !dev {
		tmpl, err := template.ParseFS(templateFS, pageTemplate)
		if err != nil {
			return nil, err
		}
		p.tmpl = tmpl
	}
	return p, nil
}

func (p *page) template() (*template.Template, error) {
	if p.tmpl != nil {
		return p.tmpl, nil
	}
	return template.ParseFS(templateFS, pageTemplate)
}

// ServePage handles every path not matched by another route
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	log.Debug().Str("remote", r.RemoteAddr).Msgf("[%s %s] Request received", r.Method, r.URL.Path)

	tmpl, err := h.page.template()
	if err != nil {
		log.Error().Err(err).Msg("[Page] ❌ Template parse error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if h.page.dev {
		w.Header().Set("Cache-Control", "no-store")
	}

	if err := tmpl.Execute(w, pageData{Dev: h.page.dev, WSPath: "/ws"}); err != nil {
		log.Error().Err(err).Msg("[Page] ❌ Template execute error")
	}
}
