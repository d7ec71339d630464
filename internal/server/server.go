package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// BuildInfo identifies the running binary in logs and health output.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries every dependency the handlers need. The mongo client is the
// single long-lived session created at startup; handlers never open their
// own connections.
type Config struct {
	Addr  string // e.g. ":5000"
	Build BuildInfo

	Client *mongo.Client
	DB     *mongo.Database
	Store  BlobStore
	Users  *mongo.Collection
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler
	client     *mongo.Client
	db         *mongo.Database
	files      *mongo.Collection
	version    string
}

func New(cfg Config) *Server {
	mux := http.NewServeMux()

	srv := &Server{
		client:  cfg.Client,
		db:      cfg.DB,
		version: cfg.Build.Version,
	}
	// Health probes the store's own files collection, which tracks the
	// configured bucket name rather than assuming the default.
	if gs, ok := cfg.Store.(*GridFSStore); ok {
		srv.files = gs.FilesCollection()
	}

	// Liveness string at the root. The mux treats "/" as a catch-all, so
	// anything unmatched 404s here instead of answering the probe.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("SEO server listening"))
	})

	mux.Handle("/users", cfg.usersHandler(cfg.Users))
	mux.Handle("/upload/", cfg.uploadHandler(cfg.Store))
	mux.Handle("/files/", cfg.listFilesHandler(cfg.Store))
	mux.Handle("/download/", cfg.downloadHandler(cfg.Store))
	mux.HandleFunc("/health", srv.HandleHealth)
	mux.Handle("/metrics", NewPrometheusExporter().Handler())

	// Wrap middleware: requestID -> CORS -> logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.httpServer = s
	srv.handler = handler
	return srv
}

// Handler exposes the full middleware-wrapped handler, mainly for tests that
// mount the server on httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
