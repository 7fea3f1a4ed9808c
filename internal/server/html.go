package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/internal/utils"
	"github.com/wardtools/wardprogram/pkg/program"
)

type pageData struct {
	UnitName    string
	UnitAddress string
	Date        string
	Nodes       []program.Node
	Offline     bool
	Message     string
	HasProgram  bool
}

// handleProgramPage reloads the program and renders it as HTML.
// Fetch failures fall back to the cached render inside the loader, so
// this stays a single call.
func (s *Server) handleProgramPage(w http.ResponseWriter, r *http.Request) {
	st := s.Loader.Load(r.Context(), "")

	data := pageData{
		Offline: st.Offline,
		Message: st.Message,
	}
	for _, n := range st.Nodes {
		h, ok := n.(program.HeaderNode)
		if !ok {
			data.Nodes = append(data.Nodes, n)
			continue
		}
		// Header fields render in the page header, not the body.
		switch h.Field {
		case "unitName":
			data.UnitName = h.Text
		case "unitAddress":
			data.UnitAddress = h.Text
		case "date":
			data.Date = h.Text
		}
	}
	data.HasProgram = st.Status == loader.StatusLoaded || st.Status == loader.StatusLoadedFromCache

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "page", data); err != nil {
		utils.Log.Errorf("Failed to render program page: %v", err)
	}
}

// renderNode executes the per-kind template for one node. All values
// pass through html/template's contextual escaping; placeholder
// tokens were decoded into node fields long before this point.
func (s *Server) renderNode(n program.Node) (template.HTML, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, n.NodeKind(), n); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
