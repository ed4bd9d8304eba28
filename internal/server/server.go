package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/config"
)

// Module provides the HTTP server and makes sure it is started with the app.
var Module = fx.Options(
	fx.Provide(NewHTTPServer),
	fx.Invoke(func(*HTTPServer) {}),
)

const shutdownTimeout = 5 * time.Second

// HTTPServer serves handler on SERVER_HOST:SERVER_PORT for the lifetime of
// the fx application.
type HTTPServer struct {
	srv  *http.Server
	addr net.Addr
	log  *zap.Logger
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, handler http.Handler, log *zap.Logger) *HTTPServer {
	s := &HTTPServer{
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}

	lc.Append(fx.Hook{
		OnStart: s.start,
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return s.Shutdown(ctx)
		},
	})
	return s
}

// start binds the listener synchronously so a taken port fails app start.
func (s *HTTPServer) start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.srv.Addr)
	}
	s.addr = ln.Addr()
	s.log.Info("HTTP server listening", zap.String("addr", s.addr.String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown drains in-flight requests, giving up after five seconds.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Addr is the bound address, available once the app has started.
func (s *HTTPServer) Addr() string {
	if s.addr == nil {
		return s.srv.Addr
	}
	return s.addr.String()
}
