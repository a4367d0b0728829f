// Package web serves the capture form on a loopback address: the form page,
// report generation, photo previews and the saved draft.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/a3tai/capture-report/internal/config"
	"github.com/a3tai/capture-report/internal/report"
)

const (
	shutdownTimeout = 5 * time.Second

	// multipartOverhead is allowed on top of two photos for the text fields.
	multipartOverhead = 1 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

// Server is the form web server.
type Server struct {
	config  *config.Config
	service *report.Service
	router  *mux.Router
	log     log.Interface
}

// NewServer creates the web server and registers its routes.
func NewServer(cfg *config.Config, service *report.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("report service cannot be nil")
	}

	s := &Server{
		config:  cfg,
		service: service,
		router:  mux.NewRouter(),
		log:     log.WithField("component", "web"),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	s.router.HandleFunc("/report", s.handleReport).Methods(http.MethodPost)
	s.router.HandleFunc("/api/photos", s.handlePhotoPreview).Methods(http.MethodPost)
	s.router.HandleFunc("/api/draft", s.handleDraftLoad).Methods(http.MethodGet)
	s.router.HandleFunc("/api/draft", s.handleDraftSave).Methods(http.MethodPut)
	s.router.HandleFunc("/api/draft", s.handleDraftClear).Methods(http.MethodDelete)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router wrapped in the CORS, recovery and access log
// middleware.
func (s *Server) Handler() http.Handler {
	origin := "http://" + s.config.Address()

	var h http.Handler = s.router
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(h)
	h = handlers.CombinedLoggingHandler(accessLog{s.log}, h)
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Address()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("serving capture form")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve web form: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

func (s *Server) maxUploadSize() int64 {
	limit := s.config.MaxPhotoSize
	if limit <= 0 {
		limit = config.DefaultMaxPhotoSize
	}
	return 2*limit + multipartOverhead
}

// accessLog writes gorilla access log lines through apex/log.
type accessLog struct {
	log log.Interface
}

func (a accessLog) Write(p []byte) (int, error) {
	a.log.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

type recoveryLogger struct {
	log log.Interface
}

func (r recoveryLogger) Println(v ...interface{}) {
	r.log.Error(strings.TrimSpace(fmt.Sprintln(v...)))
}
