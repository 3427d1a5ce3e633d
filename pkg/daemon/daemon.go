// Package daemon serves the MaaS webhook power driver API. MaaS sends the
// machine's system_id in a request header and expects a JSON body whose
// status field reads "running" or "stopped" for power queries.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/internal/config"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultListen   = "0.0.0.0:3000"
	DefaultIDHeader = "system_id"
)

// Status values reported to MaaS.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusUnknown = "unknown"
	StatusOK      = "ok"
)

// Server answers webhook requests. Every request resolves the machine and
// opens its own controller session through NewController, so no state is
// shared between requests apart from the read-only config. RequestTimeout
// bounds the handling of a single request.
type Server struct {
	Config         *config.Config
	NewController  func() (powerunifi.Controller, error)
	Credentials    unifi.Credentials
	IDHeader       string
	RequestTimeout time.Duration
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router() builds the chi router with the webhook routes.
func (s *Server) Router() http.Handler {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(
		requestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Timeout(timeout),
	)
	router.Get("/power-status", s.powerStatus)
	router.Post("/power-on", s.powerAction(unifi.ActionOn))
	router.Post("/power-off", s.powerAction(unifi.ActionOff))
	router.Post("/power-cycle", s.powerAction(unifi.ActionCycle))
	return router
}

// ListenAndServe() serves the router on addr until ctx is cancelled, then
// shuts the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("listen", addr).Str("id_header", s.idHeader()).Msg("serving MaaS webhook")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down webhook server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func (s *Server) idHeader() string {
	if s.IDHeader == "" {
		return DefaultIDHeader
	}
	return s.IDHeader
}

func (s *Server) powerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.machineID(w, r)
	if !ok {
		return
	}
	ctl, err := s.NewController()
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, err := powerunifi.GetMachinePower(r.Context(), s.Config, ctl, id, s.Credentials)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := StatusUnknown
	switch state {
	case unifi.PortOn:
		status = StatusRunning
	case unifi.PortOff:
		status = StatusStopped
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: status})
}

func (s *Server) powerAction(action unifi.PowerAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.machineID(w, r)
		if !ok {
			return
		}
		ctl, err := s.NewController()
		if err != nil {
			writeError(w, r, err)
			return
		}

		err = powerunifi.SetMachinePower(r.Context(), s.Config, ctl, powerunifi.PowerParams{
			MaasID:      id,
			Action:      action,
			Credentials: s.Credentials,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: StatusOK})
	}
}

func (s *Server) machineID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(s.idHeader())
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("missing %s header", s.idHeader()),
		})
		return "", false
	}
	return id, true
}

// StatusCode() maps an error from the power routines to the HTTP status
// returned to MaaS.
func StatusCode(err error) int {
	var (
		notFound   *config.NotFoundError
		deviceErr  *unifi.DeviceNotFoundError
		portErr    *unifi.PortNotFoundError
		authErr    *unifi.AuthError
		networkErr *unifi.NetworkError
		ctlErr     *unifi.ControllerError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &deviceErr), errors.As(err, &portErr):
		return http.StatusNotFound
	case errors.As(err, &networkErr):
		if networkErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &authErr), errors.As(err, &ctlErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	// the timeout middleware answers once the request deadline has passed
	timedOut := errors.Is(r.Context().Err(), context.DeadlineExceeded)
	if timedOut {
		status = http.StatusGatewayTimeout
	}
	log.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("webhook request failed")
	if !timedOut {
		writeJSON(w, status, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// requestID tags each request with the X-Request-Id sent by the caller, or
// a new UUID, and echoes it in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs each request through zerolog once it has been served.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
