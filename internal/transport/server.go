package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxRequestSize bounds a direct call body. Sealed mails carry attachments
// by reference, so this is generous.
const maxRequestSize = 16 << 20

// Handler answers direct calls. Implementations must not panic on
// malformed payloads and should return a generic failure instead.
type Handler interface {
	HandleCall(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// HandleCall calls f(ctx, req).
func (f HandlerFunc) HandleCall(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// ServerOpts holds configuration for the direct-call server.
type ServerOpts struct {
	Handler Handler
	Logger  zerolog.Logger
	// ShutdownTimeout bounds graceful shutdown. Defaults to 5s.
	ShutdownTimeout time.Duration
}

// Server serves direct calls over HTTP.
type Server struct {
	router *gin.Engine
	opts   ServerOpts
}

// NewServer builds the router. It does not listen.
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("transport: handler is required")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID())

	s := &Server{router: router, opts: opts}
	router.POST(DirectPath, s.handleDirect)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	served := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.opts.Logger.Warn().Err(err).Msg("direct-call server shutdown")
		}
	}()

	s.opts.Logger.Info().Str("addr", ln.Addr().String()).Msg("direct-call server listening")

	err := srv.Serve(ln)
	close(served)
	<-stopped
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("transport: serve: %w", err)
	}
	return nil
}

func (s *Server) handleDirect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.opts.Logger.Debug().Err(err).Str("request_id", c.GetString("request_id")).Msg("malformed direct call")
		c.JSON(http.StatusBadRequest, Failure(ErrInvalidRequest.Error()))
		return
	}
	if err := validate(&req); err != nil {
		s.opts.Logger.Debug().Err(err).Str("request_id", c.GetString("request_id")).Msg("invalid direct call")
		c.JSON(http.StatusBadRequest, Failure(ErrInvalidRequest.Error()))
		return
	}

	resp := s.opts.Handler.HandleCall(c.Request.Context(), &req)
	if resp == nil {
		resp = Failure("internal error")
	}
	c.JSON(http.StatusOK, resp)
}

func validate(req *Request) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}
	if err := req.Sender.Keys.Validate(); err != nil {
		return fmt.Errorf("%w: sender keys: %v", ErrInvalidRequest, err)
	}
	if req.Kind != KindPing && len(req.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidRequest)
	}
	return nil
}

// requestID echoes or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
