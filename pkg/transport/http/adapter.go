package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/debug"
	"github.com/lucidbot/chatrelay/pkg/observability"
	"github.com/lucidbot/chatrelay/pkg/transport"
)

// Adapter serves the chat relay over HTTP. Chat routes are mounted both
// at the root and under /api so the web front end can use either prefix.
type Adapter struct {
	creator  transport.ChatCreator
	status   transport.StatusReporter // nil disables the status route
	inflight *transport.InFlightRegistry
	router   chi.Router
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// AllowedOrigins for CORS. Empty disables the CORS middleware.
	AllowedOrigins []string

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:    1 << 20, // 1 MB
		AllowedOrigins: []string{"http://localhost:3000"},
		MetricsPath:    "/metrics",
	}
}

// NewAdapter creates an HTTP adapter for creator. status is optional.
// Middleware is applied to the creator in the given order.
func NewAdapter(creator transport.ChatCreator, status transport.StatusReporter, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}

	a := &Adapter{
		creator:  creator,
		status:   status,
		inflight: transport.NewInFlightRegistry(),
		config:   cfg,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httpRequestIDMiddleware)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(observability.MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, promhttp.Handler())
	}

	r.Group(a.chatRoutes)
	r.Route("/api", a.chatRoutes)

	a.router = r
	return a
}

func (a *Adapter) chatRoutes(r chi.Router) {
	r.Post("/chat", a.handleChat)
	r.Post("/chat/stream", a.handleChatStream)
	if a.status != nil {
		r.Get("/chat/test", a.handleStatus)
	}
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// InFlight returns the registry of active streams.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware propagates X-Request-ID. A client supplied ID is
// kept, otherwise a new one is generated. The ID is placed in the request
// context and echoed in the response headers.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = api.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleChat handles POST /chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeChatRequest(w, r)
	if !ok {
		return
	}
	req.Stream = false

	rw := newSSEResponseWriter(w)
	if err := a.creator.CreateChat(r.Context(), req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleChatStream handles POST /chat/stream. The stream is registered in
// the in-flight registry so shutdown can end it in-band.
func (a *Adapter) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeChatRequest(w, r)
	if !ok {
		return
	}
	req.Stream = true

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Request IDs are client-controlled and may repeat.
	streamID := api.NewStreamID()
	a.inflight.Register(streamID, cancel)
	defer a.inflight.Remove(streamID)
	debug.Log("stream", "stream registered",
		"stream_id", streamID,
		"request_id", transport.RequestIDFromContext(ctx),
	)

	rw := newSSEResponseWriter(w)
	if err := a.creator.CreateChat(ctx, req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStatus handles GET /chat/test.
func (a *Adapter) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.status.Status(r.Context()))
}

// decodeChatRequest validates the content type, limits the body size and
// decodes the JSON body. On failure it writes a plain-text error.
func (a *Adapter) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*api.ChatRequest, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorText(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return nil, false
		}
	}

	if a.config.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	}

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorText(w,
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize),
				http.StatusRequestEntityTooLarge,
			)
			return nil, false
		}
		transport.WriteErrorText(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	debug.Log("transport", "chat request decoded",
		"request_id", transport.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"turns", len(req.Messages),
	)
	return &req, true
}

// writeHandlerError writes an error returned by the handler. Once the
// stream has begun it ends the stream with an error frame and the done
// sentinel; before that it answers with a status code and plain text.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	apiErr := transport.AsAPIError(err)

	if rw.streaming() {
		ctx := context.Background()
		if werr := rw.WriteFrame(ctx, api.ErrorFrame(apiErr.Message)); werr != nil {
			if !errors.Is(werr, ErrWriterCompleted) {
				slog.Debug("error frame not delivered", "error", werr.Error())
			}
			return
		}
		_ = rw.WriteFrame(ctx, api.DoneFrame())
		return
	}

	if rw.Started() {
		slog.Warn("handler failed after response was written", "error", apiErr.Error())
		return
	}

	transport.WriteAPIError(w, apiErr)
}
