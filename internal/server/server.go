// Package server exposes the program over HTTP: an HTML view for the
// congregation's phones and a small JSON API for the kiosk UI.
package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/internal/scanflow"
	"github.com/wardtools/wardprogram/internal/utils"
	"github.com/wardtools/wardprogram/pkg/storage"
)

//go:embed web
var WebFS embed.FS

type Server struct {
	DB       *storage.DB
	Loader   *loader.Loader
	Username string
	Password string

	mu   sync.Mutex
	flow scanflow.Flow
	tmpl *template.Template
}

func New(db *storage.DB, l *loader.Loader, user, pass string) (*Server, error) {
	s := &Server{
		DB:       db,
		Loader:   l,
		Username: user,
		Password: pass,
	}
	tmpl, err := template.New("program").Funcs(template.FuncMap{
		"node": s.renderNode,
	}).ParseFS(WebFS, "web/templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	s.tmpl = tmpl
	return s, nil
}

func (s *Server) Start(addr string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// Handler builds the route table. Exposed separately from Start so the
// routes can be driven by httptest.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API Group
	mux.HandleFunc("GET /api/program", s.basicAuth(s.handleProgram))
	mux.HandleFunc("GET /api/profiles", s.basicAuth(s.handleProfiles))
	mux.HandleFunc("POST /api/profiles/select", s.basicAuth(s.handleSelectProfile))
	mux.HandleFunc("DELETE /api/profiles", s.basicAuth(s.handleRemoveProfile))
	mux.HandleFunc("POST /api/scan/start", s.basicAuth(s.handleScanStart))
	mux.HandleFunc("POST /api/scan/decoded", s.basicAuth(s.handleScanDecoded))
	mux.HandleFunc("POST /api/scan/confirm", s.basicAuth(s.handleScanConfirm))
	mux.HandleFunc("POST /api/scan/cancel", s.basicAuth(s.handleScanCancel))
	mux.HandleFunc("POST /api/network-restored", s.basicAuth(s.handleNetworkRestored))

	// HTML view
	mux.HandleFunc("GET /{$}", s.basicAuth(s.handleProgramPage))

	// Static Files
	staticRoot, err := fs.Sub(WebFS, "web/static")
	if err != nil {
		return nil, err
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))))

	return mux, nil
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
