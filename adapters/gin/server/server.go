// Package server builds the gin engine and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/gin-gonic/gin"
)

// Server is a configured gin engine bound to an http.Server.
type Server struct {
	options *ServerOptions
	router  *gin.Engine
	http    *http.Server
}

// NewServer builds the router from opts.
func NewServer(opts ...ServerOption) *Server {
	options := DefaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}

	if helpers.IsProdEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	applyGlobalMiddlewares(router, options.GlobalMiddlewares)

	// Configure routing:
	// If a custom routing configurator is provided, use it.
	// Otherwise, use the default base URL group and route groups.
	if options.RoutingConfigurator != nil {
		options.RoutingConfigurator(router)
	} else {
		configureRouteGroups(router.Group(options.baseURL), options.RouteGroups)
	}

	return &Server{
		options: options,
		router:  router,
		http: &http.Server{
			Addr:              ":" + options.port,
			Handler:           router,
			ReadHeaderTimeout: options.readHeaderTimeout,
		},
	}
}

// Router exposes the engine, mostly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run listens on the configured port until ctx ends, then drains in-flight
// requests for at most the graceful timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen(constant.TCP, s.http.Addr)
	if err != nil {
		return blame.ServerStartFailed(err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	logger := s.options.log
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(listener)
	}()
	logger.Info(constant.ServerStarted, log.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return blame.ServerStartFailed(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.options.gracefulTimeOut)
	defer cancel()
	logger.Info("Gracefully shutting down server", log.Duration("timeout", s.options.gracefulTimeOut))
	err := s.http.Shutdown(shutdownCtx)
	logger.Info(constant.ServerStopped, log.Err(err))
	return err
}
