// Package devserver is an in-memory implementation of the todo REST API,
// used by `todo serve` for local work and by tests.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// Page size bounds for GET /todo.
const (
	defaultLimit = model.DefaultLimit
	maxLimit     = 100
)

// Server serves the /todo resource from a Store.
type Server struct {
	store  *Store
	logger *log.Logger
	token  string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithToken requires "Authorization: Bearer <token>" on every /todo call.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// New returns a server over store. A nil store gets a fresh empty one.
func New(store *Store, opts ...Option) *Server {
	if store == nil {
		store = NewStore()
	}
	s := &Server{store: store, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the backing store, mostly for seeding.
func (s *Server) Store() *Store { return s.store }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "up"})
	})

	r.Route("/todo", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", s.findHandler)
		r.Post("/", s.createHandler)
		r.Get("/{id}", s.getHandler)
		r.Put("/{id}", s.updateHandler)
		r.Delete("/{id}", s.deleteHandler)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
		)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.EqualFold(got, "Bearer "+s.token) {
				respondWithError(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) findHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": s.store.Find(q)})
}

func (s *Server) createHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCandidate(w, r)
	if !ok {
		return
	}
	t, err := s.store.Create(c)
	if err != nil {
		s.respondWithStoreError(w, "create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, t)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithStoreError(w, "get", err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCandidate(w, r)
	if !ok {
		return
	}
	t, err := s.store.Update(chi.URLParam(r, "id"), c)
	if err != nil {
		s.respondWithStoreError(w, "update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		s.respondWithStoreError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondWithStoreError(w http.ResponseWriter, op string, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  ve.Error(),
			"fields": ve.Fields,
		})
	case errors.Is(err, errNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("store failure", "op", op, "err", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to "+op+" todo")
	}
}

func parseQuery(r *http.Request) (Query, error) {
	v := r.URL.Query()
	q := Query{
		Search: strings.TrimSpace(v.Get("search")),
		Status: model.StatusAll,
		Page:   1,
		Limit:  defaultLimit,
		SortBy: v.Get("sortBy"),
		Order:  v.Get("order"),
	}
	if s := v.Get("status"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("invalid status %q", s)
		}
		q.Status = n
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid page %q", s)
		}
		q.Page = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid limit %q", s)
		}
		if n > maxLimit {
			n = maxLimit
		}
		q.Limit = n
	}
	return q, nil
}

func decodeCandidate(w http.ResponseWriter, r *http.Request) (model.Candidate, bool) {
	var c model.Candidate
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&c); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxError):
			respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset))
		case errors.As(err, &typeError):
			respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("Request body contains an invalid value for the %q field", typeError.Field))
		case errors.Is(err, io.EOF):
			respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
		default:
			respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
		}
		return c, false
	}
	return c, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// ListenAndServe runs the server on addr until ctx is cancelled, then shuts
// down with a five second grace period.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
