package runtime

import (
	"net/http"
	"strings"

	"github.com/drblury/flowbind/binder"
	"github.com/drblury/flowbind/internal/runtime/binding"
	"github.com/drblury/flowbind/internal/runtime/jsoncodec"
)

const defaultWebUIPort = 8081

// BindingInfo describes one resolved binding for the web UI.
type BindingInfo struct {
	Handler     string         `json:"handler"`
	Component   string         `json:"component"`
	Mode        string         `json:"mode"`
	Channel     string         `json:"channel"`
	Direction   string         `json:"direction"`
	Destination string         `json:"destination"`
	ContentType string         `json:"content_type,omitempty"`
	Stats       *StatsSnapshot `json:"stats,omitempty"`
}

// BridgeInfo describes a running or finished stream bridge.
type BridgeInfo struct {
	Handler string `json:"handler"`
	Channel string `json:"channel"`
	State   string `json:"state"`
	Sent    int64  `json:"sent"`
	Error   string `json:"error,omitempty"`
}

// BindingsView is the /api/bindings response.
type BindingsView struct {
	Binder   binder.Capabilities `json:"binder"`
	Bindings []BindingInfo       `json:"bindings"`
	Bridges  []BridgeInfo        `json:"bridges"`
}

// StartWebUIServer mounts the bindings API when the web UI is enabled.
func (s *Service) StartWebUIServer() {
	if !s.Conf.WebUIEnabled {
		return
	}

	port := s.Conf.WebUIPort
	if port == 0 {
		port = defaultWebUIPort
	}

	s.RegisterHTTPHandler(port, "/api/bindings", http.HandlerFunc(s.handleGetBindings))
}

// BindingsView snapshots the resolved plan, its statistics and the bridges.
func (s *Service) BindingsView() BindingsView {
	view := BindingsView{
		Binder:   s.capabilities,
		Bindings: []BindingInfo{},
		Bridges:  []BridgeInfo{},
	}

	s.mu.RLock()
	plan := s.plan
	stats := make(map[string]StatsSnapshot, len(s.stats))
	for name, st := range s.stats {
		stats[name] = st.Snapshot()
	}
	s.mu.RUnlock()

	if plan != nil {
		for _, b := range plan.Bindings() {
			props := s.Conf.Binding(b.Channel)
			info := BindingInfo{
				Handler:     b.Handler,
				Component:   b.Component,
				Channel:     b.Channel,
				Direction:   b.Direction.String(),
				Destination: props.Destination,
				ContentType: props.ContentType,
			}
			if h, ok := plan.Handler(b.Handler); ok {
				info.Mode = h.Mode.String()
			}
			if st, ok := stats[b.Handler]; ok && b.Direction == binding.DirectionIn {
				info.Stats = &st
			}
			view.Bindings = append(view.Bindings, info)
		}
	}

	for _, b := range s.Bridges() {
		info := BridgeInfo{
			Handler: b.Handler(),
			Channel: b.Channel(),
			State:   b.State().String(),
			Sent:    b.Sent(),
		}
		if err := b.Err(); err != nil {
			info.Error = err.Error()
		}
		view.Bridges = append(view.Bridges, info)
	}
	return view
}

func (s *Service) handleGetBindings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.Conf != nil && len(s.Conf.WebUICORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := s.getAllowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	// Preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := jsoncodec.Encode(w, s.BindingsView()); err != nil {
		s.Logger.Error("Failed to encode bindings", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin returns the Access-Control-Allow-Origin value for
// requestOrigin, or "" when it is not allowed.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.WebUICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
