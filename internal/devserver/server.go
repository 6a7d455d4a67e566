package devserver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/discuss/internal/errors"
	"github.com/vango-dev/discuss/pkg/comments"
	"github.com/vango-dev/discuss/pkg/toast"
)

// ServerOptions configures the dev server.
type ServerOptions struct {
	// Addr is the listen address, e.g. "localhost:7070".
	Addr string

	// Store holds the comments. A new empty store is used when nil.
	Store *Store

	// Hub receives activity notifications and serves /ws/notifications.
	Hub *toast.Hub

	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer

	// FailDeletes makes every DELETE respond 500.
	FailDeletes bool

	// Latency is added before every API response.
	Latency time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the development comments API.
type Server struct {
	options    ServerOptions
	store      *Store
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// NewServer creates a dev server and wires its routes.
func NewServer(options ServerOptions) *Server {
	s := &Server{
		options: options,
		store:   options.Store,
		logger:  options.Logger,
	}
	if s.store == nil {
		s.store = NewStore()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.delay)
		r.Get("/discussions/{discussionID}/comments", s.handleList)
		r.Post("/discussions/{discussionID}/comments", s.handleCreate)
		r.Delete("/comments/{commentID}", s.handleDelete)
	})

	if s.options.Hub != nil {
		r.Handle("/ws/notifications", s.options.Hub)
	}
	if s.options.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:              s.options.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("dev server listening", "addr", s.options.Addr, "fail_deletes", s.options.FailDeletes)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	if s.options.Hub != nil {
		s.options.Hub.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List(chi.URLParam(r, "discussionID")))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	discussionID := chi.URLParam(r, "discussionID")

	var in comments.CreateCommentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("E401").WithDetail(err.Error()))
		return
	}

	c, err := s.store.Create(discussionID, in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.notify(toast.TypeInfo, "Comment Added", "discussion "+discussionID)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "commentID")

	if s.options.FailDeletes {
		writeError(w, http.StatusInternalServerError,
			errors.Newf(errors.CategoryRemote, "deletes are disabled on this server"))
		return
	}

	c, ok := s.store.Delete(commentID)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("E404").WithDetail("comment "+commentID))
		return
	}

	s.notify(toast.TypeWarning, "Comment Removed", "discussion "+c.DiscussionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notify(level toast.Type, title, message string) {
	if s.options.Hub != nil {
		toast.WithTitle(s.options.Hub, level, title, message)
	}
}

// delay applies the configured latency, giving up when the client leaves.
func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := s.options.Latency; d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Message: err.Error()}
	var de *errors.DiscussError
	if stderrors.As(err, &de) {
		body = errorBody{Code: de.Code, Message: de.Message, Detail: de.Detail}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
