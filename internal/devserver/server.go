package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
)

const maxRequestBody = 1 << 20

// Options configures a Server.
type Options struct {
	APIKey string
	Logger *zap.Logger
	// KeepAlive is the interval between ka frames. Defaults to one minute.
	KeepAlive time.Duration
	// ConnectionTimeout is advertised in connection_ack. Defaults to five minutes.
	ConnectionTimeout time.Duration
}

// Server serves POST /graphql, the realtime endpoint on GET /graphql and
// GET /health.
type Server struct {
	repo              Repository
	apiKey            string
	logger            *zap.Logger
	hub               *Hub
	upgrader          websocket.Upgrader
	keepAlive         time.Duration
	connectionTimeout time.Duration
}

// New creates a Server over repo.
func New(repo Repository, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = time.Minute
	}
	if opts.ConnectionTimeout <= 0 {
		opts.ConnectionTimeout = api.DefaultConnectionTimeout
	}

	return &Server{
		repo:   repo,
		apiKey: opts.APIKey,
		logger: opts.Logger,
		hub:    NewHub(opts.Logger),
		upgrader: websocket.Upgrader{
			Subprotocols:    []string{api.Subprotocol},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local development tool; browsers on any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		keepAlive:         opts.KeepAlive,
		connectionTimeout: opts.ConnectionTimeout,
	}
}

// Hub returns the realtime hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Api-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", s.handleHealth)
	router.Post("/graphql", s.handleGraphQL)
	router.Get("/graphql", s.handleRealtime)

	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") != s.apiKey {
		writeErrors(w, http.StatusUnauthorized, gqlError(errorTypeUnauthorized, "invalid API key"))
		return
	}

	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, gqlError(errorTypeValidation, "invalid request body: %v", err))
		return
	}

	op, err := ParseOperation(req.Query, req.OperationName)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, gqlError(errorTypeValidation, "%v", err))
		return
	}
	if op.Type == string(ast.Subscription) {
		writeErrors(w, http.StatusBadRequest, gqlError(errorTypeValidation, "subscriptions are served over the websocket"))
		return
	}

	results, errs := execute(r.Context(), s.repo, op, req.Variables)
	if errs != nil {
		s.logger.Warn("operation failed",
			zap.Strings("fields", op.FieldNames()),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(errs),
		)
	}

	data := make(map[string]any, len(results))
	for _, res := range results {
		v, err := project(res.value, res.field.SelectionSet)
		if err != nil {
			errs = append(errs, gqlError(errorTypeValidation, "%s: %v", res.field.Name, err)...)
		}
		data[res.field.Alias] = v
	}
	writeJSON(w, http.StatusOK, response{Data: data, Errors: errs})

	for _, res := range results {
		if !res.notify {
			continue
		}
		if kind, ok := api.KindForMutation(res.field.Name); ok {
			s.hub.Publish(kind.Field(), res.value)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, errs api.GraphQLErrors) {
	writeJSON(w, status, response{Errors: errs})
}

// requestLogger logs every request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
