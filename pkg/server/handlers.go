package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/parse"
	"mercator-hq/arbor/pkg/resolve"
	"mercator-hq/arbor/pkg/tree"
)

// ParseRequest is the body of POST /v1/parse.
type ParseRequest struct {
	// Resource names the format of Source, e.g. "toml".
	Resource string `json:"resource"`

	// Backend is the explicit backend id. Empty means the override,
	// default or auto selection applies.
	Backend string `json:"backend,omitempty"`

	Source string `json:"source"`

	// Fallback tries other backends serving Resource when the chosen one
	// is not available.
	Fallback bool `json:"fallback,omitempty"`

	// MaxDepth limits the depth of the rendered tree. Zero uses the
	// server limit; larger values are capped by it.
	MaxDepth int `json:"max_depth,omitempty"`
}

// ResolveResponse is the body of GET /v1/resolve.
type ResolveResponse struct {
	Requested    string               `json:"requested,omitempty"`
	Effective    string               `json:"effective"`
	Resource     string               `json:"resource,omitempty"`
	Backend      string               `json:"backend"`
	Key          string               `json:"key"`
	Capabilities backend.Capabilities `json:"capabilities"`
}

// ResourceStatus describes one registered resource.
type ResourceStatus struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

// BackendsResponse is the body of GET /v1/backends.
type BackendsResponse struct {
	Default   string                  `json:"default"`
	Backends  []resolve.BackendStatus `json:"backends"`
	Resources []ResourceStatus        `json:"resources"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	// JSON escaping can grow the source; leave headroom for the envelope.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.config.MaxSourceBytes+4096)

	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Resource == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "resource is required")
		return
	}
	if int64(len(req.Source)) > s.config.MaxSourceBytes {
		writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge,
			fmt.Sprintf("source is %d bytes, limit is %d", len(req.Source), s.config.MaxSourceBytes))
		return
	}

	ctx := r.Context()
	lang := tree.NewLanguage(req.Resource)
	src := []byte(req.Source)

	var (
		t   *tree.Tree
		err error
	)
	switch {
	case req.Fallback && req.Backend != "":
		chain := append([]string{req.Backend}, s.parser.DefaultChain(ctx, req.Resource)...)
		t, err = s.parser.ParseWithFallback(ctx, lang, src, chain...)
	case req.Fallback:
		t, err = s.parser.ParseWithFallback(ctx, lang, src)
	default:
		t, err = s.parser.Parse(ctx, lang, src, parse.WithBackend(req.Backend))
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	depth := s.config.MaxTreeDepth
	if req.MaxDepth > 0 && (depth <= 0 || req.MaxDepth < depth) {
		depth = req.MaxDepth
	}
	writeJSON(w, http.StatusOK, t.View(depth))
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	resp := BackendsResponse{
		Default:  s.parser.Engine().ResolveEffective(r.Context(), ""),
		Backends: s.parser.Engine().Status(),
	}
	resources := s.parser.Resources()
	for _, name := range resources.Resources() {
		resp.Resources = append(resp.Resources, ResourceStatus{Name: name, Keys: resources.Keys(name)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requested := r.URL.Query().Get("backend")
	resource := r.URL.Query().Get("resource")

	var (
		desc backend.Descriptor
		err  error
	)
	if resource != "" {
		desc, err = s.parser.Check(ctx, resource, requested)
	} else {
		desc, err = s.parser.Engine().Check(ctx, requested)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ResolveResponse{
		Requested:    backend.NormalizeID(requested),
		Effective:    s.parser.Engine().ResolveEffective(ctx, requested),
		Resource:     resource,
		Backend:      desc.ID,
		Key:          desc.Key,
		Capabilities: desc.Capabilities.Clone(),
	})
}
