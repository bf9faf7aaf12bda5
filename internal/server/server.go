package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultListenAddress is the address the service listens on when none is configured.
	DefaultListenAddress = ":3000"
	// DefaultPath is the request path webhooks are delivered to.
	DefaultPath = "/"
	// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultShutdownTimeout bounds how long in-flight deliveries may drain.
	DefaultShutdownTimeout = 15 * time.Second

	networkConstant                = "tcp"
	readTimeoutConstant            = 30 * time.Second
	idleTimeoutConstant            = 60 * time.Second
	handlerMissingMessageConstant  = "http handler must be provided"
	listenErrorTemplateConstant    = "unable to listen on %s: %w"
	serveErrorTemplateConstant     = "http server failed: %w"
	shutdownErrorTemplateConstant  = "http server shutdown failed: %w"
	serverListeningMessageConstant = "http server listening"
	serverStoppingMessageConstant  = "http server stopping"
	serverStoppedMessageConstant   = "http server stopped"
	logFieldAddressConstant        = "address"
	logFieldPathConstant           = "path"
)

// ErrHandlerMissing indicates a server configured without a handler.
var ErrHandlerMissing = errors.New(handlerMissingMessageConstant)

// Configuration describes the listener.
type Configuration struct {
	ListenAddress     string
	Path              string
	Handler           http.Handler
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server serves a single handler at a single path.
type Server struct {
	listenAddress   string
	path            string
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
	ready           chan struct{}
	address         net.Addr
}

// NewServer applies defaults and constructs a Server.
func NewServer(configuration Configuration, logger *zap.Logger) (*Server, error) {
	if configuration.Handler == nil {
		return nil, ErrHandlerMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	listenAddress := strings.TrimSpace(configuration.ListenAddress)
	if len(listenAddress) == 0 {
		listenAddress = DefaultListenAddress
	}
	path := strings.TrimSpace(configuration.Path)
	if len(path) == 0 {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	readHeaderTimeout := configuration.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = DefaultReadHeaderTimeout
	}
	shutdownTimeout := configuration.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	mux := http.NewServeMux()
	mux.Handle(path, exactPath(path, configuration.Handler))

	return &Server{
		listenAddress: listenAddress,
		path:          path,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeoutConstant,
			IdleTimeout:       idleTimeoutConstant,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		ready:           make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound.
func (server *Server) Ready() <-chan struct{} {
	return server.ready
}

// Address returns the bound address. Valid after Ready is closed.
func (server *Server) Address() net.Addr {
	return server.address
}

// Serve blocks until ctx is cancelled or the listener fails. On
// cancellation it stops accepting connections and waits up to the shutdown
// timeout for in-flight requests.
func (server *Server) Serve(ctx context.Context) error {
	listener, listenError := net.Listen(networkConstant, server.listenAddress)
	if listenError != nil {
		return fmt.Errorf(listenErrorTemplateConstant, server.listenAddress, listenError)
	}
	server.address = listener.Addr()
	close(server.ready)

	server.logger.Info(
		serverListeningMessageConstant,
		zap.String(logFieldAddressConstant, server.address.String()),
		zap.String(logFieldPathConstant, server.path),
	)

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		if serveError := server.httpServer.Serve(listener); serveError != nil && !errors.Is(serveError, http.ErrServerClosed) {
			return fmt.Errorf(serveErrorTemplateConstant, serveError)
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		server.logger.Info(serverStoppingMessageConstant)
		shutdownContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), server.shutdownTimeout)
		defer cancel()
		if shutdownError := server.httpServer.Shutdown(shutdownContext); shutdownError != nil {
			return fmt.Errorf(shutdownErrorTemplateConstant, shutdownError)
		}
		return nil
	})

	waitError := group.Wait()
	server.logger.Info(serverStoppedMessageConstant)
	return waitError
}

func exactPath(path string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != path {
			http.NotFound(writer, request)
			return
		}
		handler.ServeHTTP(writer, request)
	})
}
