package previewserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"insar-viewer/internal/logging"
	"insar-viewer/internal/session"
)

// Default figure sizes in pixels
const (
	DefaultFigureSize = 900
	DefaultPanelSize  = 450
	maxImageSize      = 4096
)

// Server serves rendered products to the desktop frontend over loopback HTTP
type Server struct {
	session    *session.Session
	figureSize int
	panelSize  int
	logger     zerolog.Logger

	mu         sync.Mutex
	server     *http.Server
	previewURL string
}

// NewServer creates a preview server over sess
func NewServer(sess *session.Session, figureSize, panelSize int) *Server {
	if figureSize <= 0 {
		figureSize = DefaultFigureSize
	}
	if panelSize <= 0 {
		panelSize = DefaultPanelSize
	}
	return &Server{
		session:    sess,
		figureSize: figureSize,
		panelSize:  panelSize,
		logger:     logging.Component("previewserver"),
	}
}

// GetURL returns the base URL, "" before Start
func (s *Server) GetURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewURL
}

// SetSizes changes the default figure and panel sizes
func (s *Server) SetSizes(figureSize, panelSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if figureSize > 0 {
		s.figureSize = figureSize
	}
	if panelSize > 0 {
		s.panelSize = panelSize
	}
}

func (s *Server) sizes() (figure, panel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.figureSize, s.panelSize
}

// corsMiddleware adds CORS headers to allow requests from Wails frontend
// On macOS/Linux, Wails uses wails://wails origin which requires CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Allow all origins (needed for wails://wails on macOS/Linux)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		// Handle preflight OPTIONS request
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/catalog", s.handleCatalog)
	mux.HandleFunc("/render/", s.handleRender)
	mux.HandleFunc("/compare", s.handleCompare)
	mux.HandleFunc("/readout/", s.handleReadout)
	return corsMiddleware(mux)
}

// Start listens on a random loopback port and serves in the background
func (s *Server) Start() error {
	return s.StartOn("127.0.0.1:0")
}

// StartOn listens on addr and serves in the background
func (s *Server) StartOn(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start preview server: %w", err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.server = server
	s.previewURL = fmt.Sprintf("http://%s", listener.Addr().String())
	url := s.previewURL
	s.mu.Unlock()
	s.logger.Info().Str("url", url).Msg("preview server started")

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("preview server stopped")
		}
	}()

	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
