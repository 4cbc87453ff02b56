package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/parking.assist/internal/httputil"
	"github.com/banshee-data/parking.assist/internal/version"
)

// AttachAdminRoutes registers the loopback-only debug pages on mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("Version", fmt.Sprintf("%s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime))
	debug.KVFunc("Latest reading", func() any {
		r := s.store.Latest()
		return fmt.Sprintf("%s %s", r.Distance, r.Band)
	})
	debug.KVFunc("Tail subscribers", func() any { return s.store.Subscribers() })

	debug.HandleFunc("reading", "latest reading with band and age", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.status())
	})

	// Server-Sent Events, one JSON reading per event as the sensor loop
	// publishes them.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.store.Subscribe()
		defer s.store.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case rd, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(rd)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
