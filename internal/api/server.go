// Package api serves the latest distance reading over HTTP, plus the status,
// health, metrics and static display routes.
package api

import (
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/banshee-data/parking.assist/internal/httputil"
	"github.com/banshee-data/parking.assist/internal/monitoring"
	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/reading"
	"github.com/banshee-data/parking.assist/internal/sensor"
	"github.com/banshee-data/parking.assist/internal/timeutil"
	"github.com/banshee-data/parking.assist/internal/version"
)

// ANSI escape codes used by LoggingMiddleware.
const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server reads from a reading.Store; it never writes to it.
type Server struct {
	store *reading.Store
	clock timeutil.Clock

	// Static serves every path no other route matches. Nil disables it.
	Static fs.FS
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewServer(store *reading.Store, clock timeutil.Clock) *Server {
	return &Server{store: store, clock: clock}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration at debug level.
// The display polls several times a second, so nothing is logged at info.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Debugf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Router returns the application routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/data", s.showData).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/status", s.showStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics).Methods(http.MethodGet)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.MethodNotAllowed(w)
	})
	if s.Static != nil {
		r.PathPrefix("/").Handler(http.FileServer(http.FS(s.Static))).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

// Handler wraps Router with CORS so the display can be served from anywhere.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
	)(s.Router())
}

// ServeMux mounts the application under "/" and the debug routes under
// /debug/.
func (s *Server) ServeMux() *http.ServeMux {
	m := http.NewServeMux()
	m.Handle("/", s.Handler())
	s.AttachAdminRoutes(m)
	return m
}

type dataResponse struct {
	Distance sensor.Distance `json:"distance"`
}

// showData is the display's polling endpoint. Before the first valid
// reading the distance is -1.
func (s *Server) showData(w http.ResponseWriter, r *http.Request) {
	httputil.AllowAnyOrigin(w)
	httputil.WriteJSONOK(w, dataResponse{Distance: s.store.Latest().Distance})
}

type statusResponse struct {
	Distance  sensor.Distance `json:"distance"`
	Band      proximity.Band  `json:"band"`
	Label     string          `json:"label"`
	Indicator string          `json:"indicator"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	AgeMillis *int64          `json:"age_ms,omitempty"`
	Version   string          `json:"version"`
}

func (s *Server) status() statusResponse {
	latest := s.store.Latest()
	resp := statusResponse{
		Distance:  latest.Distance,
		Band:      latest.Band,
		Label:     latest.Band.Label(),
		Indicator: "none",
		Version:   version.Version,
	}
	if c, ok := proximity.IndicatorFor(latest.Band); ok {
		resp.Indicator = c.String()
	}
	if latest.HasData() {
		ts := latest.Timestamp
		age := s.clock.Since(ts).Milliseconds()
		resp.Timestamp, resp.AgeMillis = &ts, &age
	}
	return resp
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}
