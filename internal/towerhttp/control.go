package towerhttp

import (
	"encoding/json"
	"net/http"
)

// controlRequest is the union of every shape POST /control/source accepts
//. Exactly one operation field is expected to be meaningfully
// set per request; handleControlSource checks them in a fixed order.
type controlRequest struct {
	Mode         string `json:"mode"`
	FilePath     string `json:"file_path"`
	SetPrimary   string `json:"set_primary"`
	PushOverride string `json:"push_override"`
	PopOverride  bool   `json:"pop_override"`
}

// handleControlSource implements POST /control/source. It validates node
// existence against the Registry and never auto-creates a node except for
// mode=file, which decodes and registers a new FileNode under the given
// path before selecting it. Returns 200 on success, 400 on any validation
// failure (unknown node name, missing file_path, unreadable file, or a
// request with no recognized operation).
func (s *Server) handleControlSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	switch {
	case req.Mode != "":
		s.handleModeSwitch(w, req)
	case req.SetPrimary != "":
		s.handleSetPrimary(w, req.SetPrimary)
	case req.PushOverride != "":
		s.handlePushOverride(w, req.PushOverride)
	case req.PopOverride:
		s.Graph.Overrides().Pop()
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "no recognized operation in request", http.StatusBadRequest)
	}
}

func (s *Server) handleModeSwitch(w http.ResponseWriter, req controlRequest) {
	switch req.Mode {
	case "file":
		if req.FilePath == "" {
			http.Error(w, "file mode requires file_path", http.StatusBadRequest)
			return
		}
		node, err := s.Registry.RegisterFile(req.FilePath, req.FilePath)
		if err != nil {
			http.Error(w, "could not load file: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.Graph.SetPrimary(node)
		w.WriteHeader(http.StatusOK)
	case "tone", "silence":
		node, ok := s.Registry.Lookup(req.Mode)
		if !ok {
			http.Error(w, "mode node not registered: "+req.Mode, http.StatusBadRequest)
			return
		}
		s.Graph.SetPrimary(node)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "unknown mode: "+req.Mode, http.StatusBadRequest)
	}
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, name string) {
	node, ok := s.Registry.Lookup(name)
	if !ok {
		http.Error(w, "unknown node: "+name, http.StatusBadRequest)
		return
	}
	// set_primary(x); set_primary(x) is a documented no-op at the second
	// call: SetPrimary already just overwrites the field, so a repeat call
	// with the same node is naturally idempotent without special-casing.
	s.Graph.SetPrimary(node)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePushOverride(w http.ResponseWriter, name string) {
	node, ok := s.Registry.Lookup(name)
	if !ok {
		http.Error(w, "unknown node: "+name, http.StatusBadRequest)
		return
	}
	s.Graph.Overrides().Push(node)
	w.WriteHeader(http.StatusOK)
}
