package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finances/internal/amqp"
	"finances/internal/core"
	"finances/internal/log"
	"finances/internal/middleware/ratelimit"
	"finances/internal/middleware/security"
	"finances/internal/middleware/trace"
	"finances/internal/services"
	"finances/internal/uploads"
)

// Ledger is the part of services.Ledger the API needs.
type Ledger interface {
	Create(ctx context.Context, in services.NewTransaction) (core.Transaction, error)
	Transactions(ctx context.Context) ([]core.Transaction, error)
	Balance(ctx context.Context) (core.Balance, error)
}

// Importer runs an import synchronously.
type Importer interface {
	Import(ctx context.Context, fileName string) (services.ImportResult, error)
}

// ImportPublisher queues an import for a worker.
type ImportPublisher interface {
	PublishImportRequested(ctx context.Context, msg *amqp.ImportRequestedMessage) error
}

// Options wires the server to its collaborators. With a Publisher set,
// imports are queued; otherwise they run inside the request.
type Options struct {
	Ledger          Ledger
	Importer        Importer
	Uploads         uploads.Source
	Publisher       ImportPublisher
	MaxUploadBytes  int64
	ImportRateLimit int
	Logger          *log.Logger

	// Ready reports whether dependencies are usable; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	ledger         Ledger
	importer       Importer
	uploads        uploads.Source
	publisher      ImportPublisher
	maxUploadBytes int64
	ready          func(ctx context.Context) error

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	s := &Server{
		ledger:         opts.Ledger,
		importer:       opts.Importer,
		uploads:        opts.Uploads,
		publisher:      opts.Publisher,
		maxUploadBytes: maxUpload,
		ready:          opts.Ready,
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.ImportRateLimit}),
	}

	ips := security.NewClientIPResolver()
	limitImports := s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Import rate limit exceeded",
			log.FieldComponent, log.ComponentRateLimit,
			log.FieldClientIP, ips.ClientIP(r))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /balance", s.handleBalance)
	mux.Handle("POST /transactions/import", limitImports(http.HandlerFunc(s.handleImport)))

	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(logger.WithComponent(log.ComponentHTTP))(handler)
	handler = trace.NewMiddleware(ips.ClientIP, logger).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
