package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/internal/scanflow"
	"github.com/wardtools/wardprogram/pkg/program"
	"github.com/wardtools/wardprogram/pkg/storage"
)

type programResponse struct {
	Status     loader.Status     `json:"status"`
	Offline    bool              `json:"offline"`
	Message    string            `json:"message,omitempty"`
	SourceURL  string            `json:"sourceUrl,omitempty"`
	Profile    *storage.Profile  `json:"profile,omitempty"`
	RenderedAt *time.Time        `json:"renderedAt,omitempty"`
	Nodes      []json.RawMessage `json:"nodes"`
}

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	var st loader.SessionState
	if r.URL.Query().Get("reload") == "true" {
		st = s.Loader.Load(r.Context(), "")
	} else {
		st = s.Loader.State()
	}

	resp := programResponse{
		Status:    st.Status,
		Offline:   st.Offline,
		Message:   st.Message,
		SourceURL: st.SourceURL,
		Profile:   st.Profile,
		Nodes:     marshalNodes(st.Nodes),
	}
	if !st.RenderedAt.IsZero() {
		t := st.RenderedAt
		resp.RenderedAt = &t
	}
	writeJSON(w, resp)
}

type profilesResponse struct {
	Profiles   []storage.Profile `json:"profiles"`
	SelectedID string            `json:"selectedId,omitempty"`
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.DB.ListProfiles(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := profilesResponse{Profiles: profiles}
	if selected, err := s.DB.GetSelected(r.Context()); err == nil && selected != nil {
		resp.SelectedID = selected.ID
	}
	writeJSON(w, resp)
}

type selectRequest struct {
	ID string `json:"id"`
}

// handleSelectProfile switches the active profile and fully reloads
// the program view from its URL.
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st := s.Loader.SwitchProfile(r.Context(), req.ID)
	writeJSON(w, programResponse{
		Status:    st.Status,
		Offline:   st.Offline,
		Message:   st.Message,
		SourceURL: st.SourceURL,
		Profile:   st.Profile,
		Nodes:     marshalNodes(st.Nodes),
	})
}

func (s *Server) handleRemoveProfile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if err := s.DB.RemoveProfile(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type scanResponse struct {
	State string `json:"state"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flow.Begin(); err != nil {
		writeJSONStatus(w, http.StatusConflict, scanResponse{State: s.flow.State().String(), Error: err.Error()})
		return
	}
	writeJSON(w, scanResponse{State: s.flow.State().String()})
}

type decodedRequest struct {
	Data string `json:"data"`
}

func (s *Server) handleScanDecoded(w http.ResponseWriter, r *http.Request) {
	var req decodedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flow.Decoded(req.Data); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, scanflow.ErrNotScanning) {
			status = http.StatusConflict
		}
		writeJSONStatus(w, status, scanResponse{State: s.flow.State().String(), Error: err.Error()})
		return
	}
	writeJSON(w, scanResponse{State: s.flow.State().String(), URL: s.flow.Candidate().URL})
}

// handleScanConfirm commits the scanned source and loads it, which
// creates or updates its profile.
func (s *Server) handleScanConfirm(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	candidate, err := s.flow.Confirm()
	s.mu.Unlock()
	if err != nil {
		writeJSONStatus(w, http.StatusConflict, scanResponse{Error: err.Error()})
		return
	}

	st := s.Loader.Load(r.Context(), candidate.URL)
	writeJSON(w, programResponse{
		Status:    st.Status,
		Offline:   st.Offline,
		Message:   st.Message,
		SourceURL: st.SourceURL,
		Profile:   st.Profile,
		Nodes:     marshalNodes(st.Nodes),
	})
}

func (s *Server) handleScanCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow.Cancel()
	writeJSON(w, scanResponse{State: s.flow.State().String()})
}

// handleNetworkRestored hides the offline indicator. No automatic
// refetch; reload happens via explicit action.
func (s *Server) handleNetworkRestored(w http.ResponseWriter, r *http.Request) {
	s.Loader.NetworkRestored()
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// marshalNodes flattens render nodes into kind-tagged JSON objects.
func marshalNodes(nodes []program.Node) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(nodes))
	for _, n := range nodes {
		wrapped := map[string]interface{}{"kind": n.NodeKind()}
		switch node := n.(type) {
		case program.HeaderNode:
			wrapped["field"] = node.Field
			wrapped["text"] = node.Text
		case program.RowNode:
			wrapped["label"] = node.Label
			wrapped["value"] = node.Value
		case program.HymnNode:
			wrapped["label"] = node.Label
			wrapped["number"] = node.Number
			wrapped["title"] = node.Title
		case program.LeaderNode:
			wrapped["name"] = node.Name
			wrapped["phone"] = node.Phone
			wrapped["position"] = node.Position
		case program.StatementNode:
			wrapped["text"] = node.Text
		case program.StatementLinkNode:
			wrapped["before"] = node.Before
			wrapped["after"] = node.After
			wrapped["url"] = node.URL
			wrapped["urlText"] = node.URLText
		case program.LinkNode:
			wrapped["text"] = node.Text
			wrapped["url"] = node.URL
		case program.IconLinkNode:
			wrapped["text"] = node.Text
			wrapped["url"] = node.URL
			if node.ImageURL != "" {
				wrapped["imageUrl"] = node.ImageURL
			}
		case program.DividerNode:
			if node.Caption != "" {
				wrapped["caption"] = node.Caption
			}
		}
		raw, err := json.Marshal(wrapped)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}
