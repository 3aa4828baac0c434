package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/audiolibrelab/soundrecorder/internal/audio"
	"github.com/audiolibrelab/soundrecorder/internal/prompt"
	"github.com/audiolibrelab/soundrecorder/internal/service"
	"github.com/audiolibrelab/soundrecorder/internal/session"
)

// Server represents the web server for controlling the recorder
type Server struct {
	service service.Service
	port    string
	router  chi.Router
}

// RecordingsResponse represents the JSON response for the recordings endpoint
type RecordingsResponse struct {
	Recordings []service.RecordingInfo `json:"recordings"`
	TotalCount int                     `json:"total_count"`
	Directory  string                  `json:"directory"`
}

// DevicesResponse represents the JSON response for the devices endpoint
type DevicesResponse struct {
	Backend string         `json:"backend"`
	Devices []audio.Device `json:"devices"`
}

// New creates a web server for svc. The caller runs the service.
func New(svc service.Service, port string) *Server {
	s := &Server{
		service: svc,
		port:    port,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/record", s.handleRecord)
	r.Post("/play", s.handlePlay)
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
	r.Get("/api/recordings", s.handleRecordings)
	r.Get("/api/recordings/stream/{name}", s.handleRecordingStream)
	r.Get("/api/devices", s.handleDevices)

	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting Sound Recorder Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("Shutting down web server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleIndex serves the main web UI
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	htmlContent, err := os.ReadFile("web/static/index.html")
	if err != nil {
		htmlContent = []byte(getDefaultHTML())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(htmlContent)
}

// handleRecord presses the Record button. An optional "name" form value
// is used as the save name when the press stops a recording. A capture that
// fails right after starting answers 503; one that fails later only shows
// up as last_error in /status and /events.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form data", "error", err)
		return
	}

	ctx := r.Context()
	if name := r.FormValue("name"); name != "" {
		ctx = prompt.WithName(ctx, name)
	}

	if err := s.service.ToggleRecord(ctx); err != nil {
		s.sendServiceError(w, "record", err)
		return
	}

	s.sendSuccess(w)
}

// handlePlay presses the Play button.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.service.TogglePlay(r.Context()); err != nil {
		s.sendServiceError(w, "play", err)
		return
	}

	s.sendSuccess(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.service.GetStatus())
}

// handleEvents streams display snapshots as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snapshots, cancel := s.service.Subscribe()
	defer cancel()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}

			data, err := json.Marshal(snap)
			if err != nil {
				slog.Error("Failed to encode snapshot", "error", err)
				return
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))

			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, "Failed to list recordings", "error", err)
		return
	}
	if recordings == nil {
		recordings = []service.RecordingInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RecordingsResponse{
		Recordings: recordings,
		TotalCount: len(recordings),
		Directory:  s.service.GetConfig().Output.Directory,
	})
}

// handleRecordingStream serves a saved recording with range support.
func (s *Server) handleRecordingStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path, err := s.service.RecordingPath(name)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		http.Error(w, "Error opening file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.service.ListDevices()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.sendErrorResponse(w, status, err.Error(), "endpoint", "devices")
		return
	}
	if devices == nil {
		devices = []audio.Device{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DevicesResponse{
		Backend: s.service.GetConfig().Audio.CaptureBackend,
		Devices: devices,
	})
}

func (s *Server) sendSuccess(w http.ResponseWriter) {
	status := s.service.GetStatus()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": status.LastMessage,
		"status":  status,
	})
}

// sendServiceError maps session and service errors onto status codes.
func (s *Server) sendServiceError(w http.ResponseWriter, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrNothingToPlay):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, audio.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	}
	s.sendErrorResponse(w, status, err.Error(), "action", action)
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
